package repository

import (
	"context"
	"regexp"
	"testing"

	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "Nice post!", PostID: 1, AuthorID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "comment_count"=comment_count + 1 WHERE id = $1`)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Lifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	posts := NewPostRepository(db)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "")
	commenter := testutil.CreateUser(t, db, "")
	post := createPost(t, posts, author.ID, "discuss", models.VisibilityPublic)

	first := &models.Comment{PostID: post.ID, AuthorID: commenter.ID, Content: "first"}
	second := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "second"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, total, err := repo.ListByPost(ctx, post.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Author)

	require.NoError(t, repo.UpdateContent(ctx, first.ID, "edited"))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, repo.Delete(ctx, got))
	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	p, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CommentCount)
}
