package env

import (
	"fmt"
	"os"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// WorkerID identifies this process in lock owners and message metadata.
func WorkerID() string {
	if id := os.Getenv("ROUTER_WORKER_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "router-0"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
