package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/estatedesk/lead-router/internal/settings"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/db"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/migrate"
)

const serviceName = "router-migrate"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the ones built into the binary")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	src := migrate.Embedded()
	if *dir != "" {
		src = migrate.OnDisk(*dir)
	}

	// validate only inspects files, so it runs without config or a database.
	if *cmd == "validate" {
		count, err := migrate.Validate(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d migrations valid in %s\n", count, src)
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"source": src.String(),
	})

	if cfg.DB.Driver != db.DriverPostgres {
		fmt.Fprintf(os.Stderr, "migrations target postgres; DB driver is %q\n", cfg.DB.Driver)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, src, *cmd)
	case "version":
		err = migrate.MigrateToVersion(ctx, sqlDB, src, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}

	// down may legitimately remove the settings table.
	if *cmd == "down" {
		return
	}
	summary, err := describeSettings(ctx, logg, settings.NewRepository(dbClient.DB()), cfg.Routing)
	if err != nil {
		logg.Error(ctx, "reading router_settings failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrations applied")
	fmt.Println(summary)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
