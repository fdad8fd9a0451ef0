package service

import (
	"context"
	"testing"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_GetUserByIDUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newSocialFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "")

	got, err := f.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)
	assert.True(t, mr.Exists(cache.UserKey(u.ID)))

	bio := "Third year CS"
	_, err = f.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Bio: &bio})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UserKey(u.ID)), "profile edits invalidate the cached user")

	got, err = f.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, bio, got.Bio)

	_, err = f.users.GetUserByID(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserService_DeleteAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newSocialFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "")

	_, err := f.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.UserKey(u.ID)))

	require.NoError(t, f.users.DeleteAccount(ctx, u.ID))
	assert.False(t, mr.Exists(cache.UserKey(u.ID)))

	_, err = f.users.GetUserByID(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = f.users.DeleteAccount(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "")

	off := false
	private := models.PrivacyPrivate
	name := "  Ada "
	got, err := f.users.UpdateProfile(ctx, UpdateProfileInput{
		UserID: u.ID, FirstName: &name, AccountPrivacy: &private, NotifyLikes: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, models.PrivacyPrivate, got.AccountPrivacy)
	assert.False(t, got.NotifyLikes)
	assert.True(t, got.NotifyComments, "untouched preferences are kept")

	bad := "ftp:/broken"
	longBio := string(make([]byte, 161))
	_, err = f.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, ProfilePictureURL: &bad, Bio: &longBio})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "bio")
}

func TestUserService_SearchAndSuggested(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	me := testutil.CreateUser(t, f.db, "")
	alice := testutil.CreateUser(t, f.db, "alice_w")
	bob := testutil.CreateUser(t, f.db, "bobby")
	require.NoError(t, f.follows.Follow(ctx, me.ID, alice.ID))

	found, err := f.users.SearchUsers(ctx, "ALICE", Pagination{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)

	_, err = f.users.SearchUsers(ctx, "  ", Pagination{})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	suggested, err := f.users.Suggested(ctx, me.ID, 0)
	require.NoError(t, err)
	var ids []uint
	for _, u := range suggested {
		ids = append(ids, u.ID)
	}
	assert.Contains(t, ids, bob.ID)
	assert.NotContains(t, ids, alice.ID, "already followed")
	assert.NotContains(t, ids, me.ID)

	page, err := f.users.ListUsers(ctx, Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
}

func TestFollowService(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")

	assert.True(t, models.IsCode(f.follows.Follow(ctx, a.ID, a.ID), models.CodeValidation))
	assert.True(t, models.IsCode(f.follows.Follow(ctx, a.ID, 9999), models.CodeNotFound))

	require.NoError(t, f.follows.Follow(ctx, a.ID, b.ID))
	assert.True(t, models.IsCode(f.follows.Follow(ctx, a.ID, b.ID), models.CodeConflict))

	calls := f.notifier.ofType(models.NotificationNewFollower)
	require.Len(t, calls, 1)
	assert.Equal(t, b.ID, calls[0].RecipientID)
	assert.Equal(t, &models.NotificationTarget{Kind: models.TargetUser, ID: a.ID}, calls[0].In.Target)

	followers, err := f.follows.Followers(ctx, b.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	following, err := f.follows.Following(ctx, a.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, following, 1)

	require.NoError(t, f.follows.Unfollow(ctx, a.ID, b.ID))
	assert.True(t, models.IsCode(f.follows.Unfollow(ctx, a.ID, b.ID), models.CodeValidation))

	ok, err := f.follows.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchService(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	search := NewSearchService(f.users, f.posts)
	gopher := testutil.CreateUser(t, f.db, "gopher")
	f.post(t, gopher.ID, "gopher meetup tonight #gophercon", models.VisibilityPublic)
	f.post(t, gopher.ID, "gopher secrets", models.VisibilityPrivate)

	all, err := search.Search(ctx, 0, "gopher", "")
	require.NoError(t, err)
	assert.Len(t, all.Users, 1)
	assert.Len(t, all.Posts, 1)
	require.Len(t, all.Hashtags, 1)
	assert.Equal(t, "gophercon", all.Hashtags[0].Tag)

	tags, err := search.Search(ctx, 0, "#goph", SearchHashtags)
	require.NoError(t, err)
	assert.Empty(t, tags.Users)
	assert.Empty(t, tags.Posts)
	assert.Len(t, tags.Hashtags, 1)

	_, err = search.Search(ctx, 0, "gopher", "groups")
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = search.Search(ctx, 0, "", SearchAll)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
