package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/estatedesk/lead-router/api/responses"
	pkgerrors "github.com/estatedesk/lead-router/pkg/errors"
	"github.com/estatedesk/lead-router/pkg/logger"
)

const (
	envHeader    = "X-Lead-Router-Env"
	checkTimeout = 2 * time.Second
)

// Pinger is a dependency the worker needs to be ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names one readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check; any failure reports 503 with the failing names.
func HealthReady(env string, logg *logger.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		failed := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := check.Pinger.Ping(ctx)
			cancel()
			if err != nil {
				failed[check.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "failed_checks", failed), "readiness check failed")
			}
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed)
			responses.WriteError(r.Context(), nil, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
