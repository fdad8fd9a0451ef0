// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"ynetwork/internal/database"
	"ynetwork/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var userSeq atomic.Uint64

// NewTestDB opens a fresh in-memory SQLite database with the full schema applied.
// The pool is pinned to one connection so every query sees the same in-memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.ApplySchema(context.Background(), db))
	return db
}

// CreateUser inserts a student with unique username and email.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	n := userSeq.Add(1)
	if username == "" {
		username = fmt.Sprintf("student%d", n)
	}
	u := &models.User{
		Username:        username,
		UniversityEmail: fmt.Sprintf("%s.%d@uni.example.edu", username, n),
		Password:        "hashed",
		FirstName:       "Test",
		LastName:        username,
		Role:            models.RoleStudent,
		AccountPrivacy:  models.PrivacyPublic,
		NotifyLikes:     true,
		NotifyComments:  true,
		NotifyFollows:   true,
		NotifyMessages:  true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
