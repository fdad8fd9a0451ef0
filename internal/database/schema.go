package database

import (
	"context"
	"fmt"
	"log/slog"

	"ynetwork/internal/middleware"

	"gorm.io/gorm"
)

// SchemaStatus describes what ApplySchema would do against db.
type SchemaStatus struct {
	Dialect           string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// supportsSQLMigrations reports whether the embedded PostgreSQL scripts can run on db.
func supportsSQLMigrations(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// ApplySchema auto-migrates every persistent model, then applies the SQL migrations on PostgreSQL.
func ApplySchema(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("dialect", db.Dialector.Name()))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if !supportsSQLMigrations(db) {
		return nil
	}

	migrations, err := Migrations()
	if err != nil {
		return err
	}
	if err := RunMigrations(ctx, db, migrations); err != nil {
		return fmt.Errorf("run sql migrations: %w", err)
	}
	return nil
}

// GetSchemaStatus lists applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	status := &SchemaStatus{Dialect: db.Dialector.Name()}
	if !supportsSQLMigrations(db) {
		return status, nil
	}

	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return nil, fmt.Errorf("failed to ensure migration logs table: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			status.AppliedVersions = append(status.AppliedVersions, m.Version)
		} else {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
