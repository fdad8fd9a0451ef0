package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type notified struct {
	RecipientID uint
	In          NotifyInput
}

// recordingNotifier captures Notify calls instead of dispatching them.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notified
}

func (r *recordingNotifier) Notify(_ context.Context, recipientID uint, in NotifyInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notified{RecipientID: recipientID, In: in})
}

func (r *recordingNotifier) ofType(typ string) []notified {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notified
	for _, c := range r.calls {
		if c.In.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

type socialFixture struct {
	db       *gorm.DB
	notifier *recordingNotifier
	users    *UserService
	follows  *FollowService
	posts    *PostService
	comments *CommentService
	groups   *GroupService
	events   *EventService
	reports  *ModerationService
}

func newSocialFixture(t *testing.T) *socialFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	n := &recordingNotifier{}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	posts := NewPostService(postRepo, userRepo, followRepo, groupRepo, n)
	return &socialFixture{
		db:       db,
		notifier: n,
		users:    NewUserService(userRepo),
		follows:  NewFollowService(followRepo, userRepo, n),
		posts:    posts,
		comments: NewCommentService(commentRepo, userRepo, posts, n),
		groups:   NewGroupService(groupRepo, followRepo, userRepo, n),
		events:   NewEventService(repository.NewEventRepository(db), followRepo, userRepo, n),
		reports:  NewModerationService(repository.NewReportRepository(db), postRepo, commentRepo, userRepo),
	}
}

func (f *socialFixture) post(t *testing.T, authorID uint, content string, vis models.Visibility) *models.Post {
	t.Helper()
	p, err := f.posts.CreatePost(context.Background(), CreatePostInput{AuthorID: authorID, Content: content, Visibility: vis})
	require.NoError(t, err)
	return p
}

func (f *socialFixture) admin(t *testing.T) *models.User {
	t.Helper()
	u := testutil.CreateUser(t, f.db, "")
	require.NoError(t, f.db.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

func TestExtractHashtags(t *testing.T) {
	got := extractHashtags("Loving #GoLang and #go_lang, also #golang again", []string{"#Backend", "golang"})
	assert.Equal(t, []string{"backend", "go_lang", "golang"}, got)

	many := make([]string, 15)
	for i := range many {
		many[i] = strings.Repeat("a", i+1)
	}
	assert.Len(t, extractHashtags("", many), maxPostHashtags)
}

func TestPostService_CreatePost(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "")

	p, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, Content: "  Exam prep #Finals  "})
	require.NoError(t, err)
	assert.Equal(t, "Exam prep #Finals", p.Content)
	assert.Equal(t, models.VisibilityPublic, p.Visibility)
	assert.Equal(t, []string{"finals"}, p.Hashtags)
	require.NotNil(t, p.Author)
	assert.Equal(t, author.Username, p.Author.Username)

	tests := []struct {
		name  string
		in    CreatePostInput
		field string
	}{
		{"empty without media", CreatePostInput{Content: "   "}, "content"},
		{"too long", CreatePostInput{Content: strings.Repeat("x", maxPostLength+1)}, "content"},
		{"bad visibility", CreatePostInput{Content: "hi", Visibility: "friends"}, "visibility"},
		{"bad media url", CreatePostInput{Content: "hi", MediaURL: "not a url"}, "media_url"},
		{"bad hashtag", CreatePostInput{Content: "hi", Hashtags: []string{"no spaces"}}, "hashtags[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.AuthorID = author.ID
			_, err := f.posts.CreatePost(ctx, tt.in)
			require.Error(t, err)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	media, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: author.ID, MediaURL: "https://cdn.example.edu/a.png"})
	require.NoError(t, err)
	assert.Empty(t, media.Content)
}

func TestPostService_Visibility(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "")
	follower := testutil.CreateUser(t, f.db, "")
	stranger := testutil.CreateUser(t, f.db, "")
	require.NoError(t, f.follows.Follow(ctx, follower.ID, author.ID))

	public := f.post(t, author.ID, "public", models.VisibilityPublic)
	friends := f.post(t, author.ID, "followers", models.VisibilityFollowersOnly)
	private := f.post(t, author.ID, "private", models.VisibilityPrivate)

	visible := func(viewer, post uint) bool {
		_, err := f.posts.GetPost(ctx, viewer, post)
		if err != nil {
			require.True(t, models.IsCode(err, models.CodeNotFound), "unexpected error %v", err)
			return false
		}
		return true
	}

	assert.True(t, visible(stranger.ID, public.ID))
	assert.False(t, visible(stranger.ID, friends.ID))
	assert.True(t, visible(follower.ID, friends.ID))
	assert.False(t, visible(follower.ID, private.ID))
	assert.True(t, visible(author.ID, private.ID))

	count := func(viewer uint) int {
		posts, err := f.posts.ListUserPosts(ctx, viewer, author.ID, Pagination{})
		require.NoError(t, err)
		return len(posts)
	}
	assert.Equal(t, 1, count(stranger.ID))
	assert.Equal(t, 2, count(follower.ID))
	assert.Equal(t, 3, count(author.ID))

	feed, err := f.posts.Feed(ctx, follower.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, friends.ID, feed[0].ID, "newest first")

	pub, err := f.posts.PublicFeed(ctx, 0, Pagination{})
	require.NoError(t, err)
	require.Len(t, pub, 1)
}

func TestPostService_UpdateAndDelete(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "")
	other := testutil.CreateUser(t, f.db, "")
	admin := f.admin(t)

	p := f.post(t, author.ID, "draft #old", models.VisibilityPublic)

	content := "final #new"
	_, err := f.posts.UpdatePost(ctx, UpdatePostInput{UserID: other.ID, PostID: p.ID, Content: &content})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := f.posts.UpdatePost(ctx, UpdatePostInput{UserID: author.ID, PostID: p.ID, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "final #new", updated.Content)
	assert.Equal(t, []string{"new"}, updated.Hashtags)

	err = f.posts.DeletePost(ctx, other.ID, p.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	require.NoError(t, f.posts.DeletePost(ctx, admin.ID, p.ID))
	_, err = f.posts.GetPost(ctx, author.ID, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var refreshed models.User
	require.NoError(t, f.db.First(&refreshed, author.ID).Error)
	assert.Zero(t, refreshed.PostCount)
}

func TestPostService_LikesAndSaves(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, f.db, "")
	fan := testutil.CreateUser(t, f.db, "")
	p := f.post(t, author.ID, "like me", models.VisibilityPublic)

	liked, count, err := f.posts.ToggleLike(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	got, err := f.posts.GetPost(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Liked)

	likers, err := f.posts.Likers(ctx, fan.ID, p.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, fan.ID, likers[0].ID)

	liked, count, err = f.posts.ToggleLike(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, count)

	_, _, err = f.posts.ToggleLike(ctx, author.ID, p.ID)
	require.NoError(t, err)

	likes := f.notifier.ofType(models.NotificationLike)
	require.Len(t, likes, 2, "one per new like")
	assert.Equal(t, author.ID, likes[0].RecipientID)
	assert.Equal(t, fan.ID, likes[0].In.ActorID)
	assert.Equal(t, "liked your post.", likes[0].In.Content)
	assert.Equal(t, models.TargetPost, likes[0].In.Target.Kind)

	saved, err := f.posts.ToggleSave(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, saved)
	list, err := f.posts.SavedPosts(ctx, fan.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	saved, err = f.posts.ToggleSave(ctx, fan.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestPostService_HashtagsAndTrending(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")

	f.post(t, a.ID, "#ai is neat", models.VisibilityPublic)
	f.post(t, b.ID, "more #AI and #golang", models.VisibilityPublic)
	f.post(t, b.ID, "quiet #golang", models.VisibilityPrivate)
	f.post(t, a.ID, "#ai again", models.VisibilityPublic)

	tags, err := f.posts.TrendingHashtags(ctx, 5)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, models.TrendingHashtag{Tag: "ai", Count: 3}, tags[0])
	assert.Equal(t, models.TrendingHashtag{Tag: "golang", Count: 2}, tags[1])

	byTag, err := f.posts.PostsByHashtag(ctx, a.ID, "#GoLang", Pagination{})
	require.NoError(t, err)
	assert.Len(t, byTag, 1, "private posts are not listed by tag")

	_, err = f.posts.PostsByHashtag(ctx, a.ID, " ", Pagination{})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestPostService_GroupPosts(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "")
	outsider := testutil.CreateUser(t, f.db, "")

	private := false
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{
		CreatorID: owner.ID, Name: "Secret Lab", Description: "Invite only research group", Topic: "AI", IsPublic: &private,
	})
	require.NoError(t, err)

	_, err = f.posts.CreatePost(ctx, CreatePostInput{AuthorID: outsider.ID, Content: "let me in", GroupID: &g.ID})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	p, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: owner.ID, Content: "members only", GroupID: &g.ID})
	require.NoError(t, err)

	_, err = f.posts.GroupPosts(ctx, outsider.ID, g.ID, Pagination{})
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = f.posts.GetPost(ctx, outsider.ID, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	posts, err := f.posts.GroupPosts(ctx, owner.ID, g.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
}
