//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"ynetwork/internal/config"
	"ynetwork/internal/database"
	"ynetwork/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return &config.Config{
		DBDriver:   "postgres",
		DBHost:     u.Hostname(),
		DBPort:     port,
		DBUser:     u.User.Username(),
		DBPassword: password,
		DBName:     strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:  "disable",
		Env:        "test",
	}, nil
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	require.NoError(t, err)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := NewSeeder(db, Options{Users: 10, FollowsPerUser: 3, PostsPerUser: 2, Groups: 1, DirectChats: 3, MessagesPerChat: 2, FastHash: true, Seed: 1})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	sum, err := s.Run(ctx)
	require.NoError(t, err)

	var cnt int64
	require.NoError(t, db.Model(&models.Post{}).Count(&cnt).Error)
	assert.EqualValues(t, sum.Posts, cnt)

	require.NoError(t, s.ClearAll(ctx))
	require.NoError(t, db.Model(&models.User{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
}
