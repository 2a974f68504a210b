package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type dbCommand func(ctx context.Context, sqlDB *sql.DB) error

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; the default reads the embedded set")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	// create and validate work on files only.
	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exit(ctx, logg, "create migration failed", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		logg.Info(ctx, "migrations valid")
		return
	}

	commands := map[string]dbCommand{
		"up":     func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, *dir, "up") },
		"down":   func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, *dir, "down") },
		"status": func(ctx context.Context, sqlDB *sql.DB) error { return migrate.Run(ctx, sqlDB, *dir, "status") },
		"version": func(ctx context.Context, sqlDB *sql.DB) error {
			if *version == "" {
				return fmt.Errorf("missing -version")
			}
			return migrate.MigrateToVersion(ctx, sqlDB, *dir, *version)
		},
	}
	run, ok := commands[*cmd]
	if !ok {
		exit(ctx, logg, fmt.Sprintf("unknown -cmd value %q", *cmd), nil)
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "failed to connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "failed to extract sql.DB", err)
	}

	if err := run(ctx, sqlDB); err != nil {
		exit(ctx, logg, "migration command failed", err)
	}
	logg.Info(ctx, "migration command completed")
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
