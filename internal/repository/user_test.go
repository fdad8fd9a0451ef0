package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantUsername string
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "university_email"}).
					AddRow(1, "testuser", "test@uni.example.edu")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			wantUsername: "testuser",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(2, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.wantCode != "" {
				assert.True(t, models.IsCode(err, tt.wantCode), "got %v", err)
				assert.Nil(t, user)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.wantUsername, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success lowercases the address", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "university_email"}).AddRow(1, "test@uni.example.edu")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE university_email = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
			WithArgs("test@uni.example.edu", 1).
			WillReturnRows(rows)

		user, err := repo.GetByEmail(ctx, "Test@Uni.Example.edu")
		assert.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "test@uni.example.edu", user.UniversityEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE university_email = $1`)).
			WithArgs("ghost@uni.example.edu", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		user, err := repo.GetByEmail(ctx, "ghost@uni.example.edu")
		assert.NoError(t, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "newuser", UniversityEmail: "new@uni.example.edu"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SQLite(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bobby")
	carol := testutil.CreateUser(t, db, "carol_x")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice", UniversityEmail: "other@uni.example.edu", Password: "x"})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("update fields", func(t *testing.T) {
		require.NoError(t, repo.UpdateFields(ctx, alice.ID, map[string]any{"bio": "hello"}))
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Bio)
		assert.Equal(t, "hashed", got.Password)

		err = repo.UpdateFields(ctx, 9999, map[string]any{"bio": "x"})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("search treats wildcards literally", func(t *testing.T) {
		users, err := repo.Search(ctx, "BOB", 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, bob.ID, users[0].ID)

		users, err = repo.Search(ctx, "_x", 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, carol.ID, users[0].ID)
	})

	t.Run("suggested excludes self and followed users", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}).Error)

		users, err := repo.Suggested(ctx, alice.ID, 10)
		require.NoError(t, err)
		ids := make([]uint, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		assert.Equal(t, []uint{carol.ID}, ids)
	})

	t.Run("summaries", func(t *testing.T) {
		got, err := repo.GetSummaries(ctx, []uint{alice.ID, carol.ID, 9999})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "carol_x", got[carol.ID].Username)
	})

	t.Run("delete is soft and not repeatable", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, carol.ID))

		_, err := repo.GetByID(ctx, carol.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))

		var count int64
		require.NoError(t, db.Unscoped().Model(&models.User{}).Where("id = ?", carol.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count, "row is kept with deleted_at set")

		err = repo.Delete(ctx, carol.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}
