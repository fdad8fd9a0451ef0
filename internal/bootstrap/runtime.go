// Package bootstrap wires process-level dependencies before the HTTP server starts.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ynetwork/internal/cache"
	"ynetwork/internal/config"
	"ynetwork/internal/database"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime opens the database and Redis, then provisions the bootstrap admin when configured.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	if err := EnsureAdmin(context.Background(), cfg, repository.NewUserRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return db, cache.GetClient(), nil
}

// EnsureAdmin makes sure the configured admin account exists with the admin role and is not banned.
// An existing account keeps its password. It does nothing unless BOOTSTRAP_ADMIN is set, and never in production.
func EnsureAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || !cfg.BootstrapAdmin || cfg.IsProduction() {
		return nil
	}

	username := strings.TrimSpace(cfg.BootstrapAdminUsername)
	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if username == "" || email == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_EMAIL are required")
	}

	existing, err := users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing == nil {
		if existing, err = users.GetByEmail(ctx, email); err != nil {
			return err
		}
	}

	if existing != nil {
		if existing.IsAdmin() && !existing.IsBanned {
			return nil
		}
		if err := users.UpdateFields(ctx, existing.ID, map[string]any{
			"role":      models.RoleAdmin,
			"is_banned": false,
		}); err != nil {
			return err
		}
		slog.InfoContext(ctx, "bootstrap admin promoted", slog.Uint64("user_id", uint64(existing.ID)))
		return nil
	}

	if cfg.BootstrapAdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be set to create %q", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username:        username,
		UniversityEmail: email,
		Password:        string(hash),
		FirstName:       "YNetwork",
		LastName:        "Admin",
		Role:            models.RoleAdmin,
		AccountPrivacy:  models.PrivacyPublic,
		NotifyLikes:     true,
		NotifyComments:  true,
		NotifyFollows:   true,
		NotifyMessages:  true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	slog.InfoContext(ctx, "bootstrap admin created", slog.Uint64("user_id", uint64(admin.ID)), slog.String("username", username))
	return nil
}
