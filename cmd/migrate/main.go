// Command migrate manages the YNetwork database schema.
//
//	migrate up              apply pending SQL migrations
//	migrate auto            auto-migrate models, then apply SQL migrations
//	migrate status          list applied and pending migrations
//	migrate down <version>  roll back one migration
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"ynetwork/internal/config"
	"ynetwork/internal/database"

	"gorm.io/gorm"
)

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, args []string) error
}

var commands = map[string]command{
	"up":     {run: migrateUp},
	"auto":   {run: migrateAuto},
	"status": {run: migrateStatus},
	"down":   {args: 1, run: migrateDown},
}

var errUsage = errors.New("usage: migrate <up|auto|status|down> [version]")

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(os.Args[1:]); err != nil {
		log.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok || len(args)-1 < cmd.args {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	return cmd.run(context.Background(), db, args[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ []string) error {
	migrations, err := database.Migrations()
	if err != nil {
		return err
	}
	if err := database.RunMigrations(ctx, db, migrations); err != nil {
		return err
	}
	slog.Info("sql migrations applied", slog.Int("known", len(migrations)))
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, _ []string) error {
	if err := database.ApplySchema(ctx, db); err != nil {
		return err
	}
	slog.Info("schema applied", slog.String("dialect", db.Dialector.Name()))
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("schema status",
		slog.String("dialect", status.Dialect),
		slog.Any("applied", status.AppliedVersions),
		slog.Int("pending", len(status.PendingMigrations)),
	)
	for _, m := range status.PendingMigrations {
		slog.Info("pending migration", slog.String("migration", m.String()))
	}
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	migrations, err := database.Migrations()
	if err != nil {
		return err
	}
	if err := database.RollbackMigration(ctx, db, migrations, version); err != nil {
		return err
	}
	slog.Info("migration rolled back", slog.Int("version", version))
	return nil
}
