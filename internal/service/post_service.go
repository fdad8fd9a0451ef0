package service

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const (
	defaultPostsPP   = 20
	maxPostHashtags  = 10
	maxPostLength    = 2000
	trendingWindow   = 7 * 24 * time.Hour
	defaultTrendingN = 10
)

var inlineHashtag = regexp.MustCompile(`#([A-Za-z0-9_]{1,50})`)

type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	groupRepo  repository.GroupRepository
	notifier   Notifier
}

type CreatePostInput struct {
	AuthorID   uint              `json:"-"`
	Content    string            `json:"content" validate:"max=2000"`
	MediaURL   string            `json:"media_url" validate:"omitempty,url"`
	Visibility models.Visibility `json:"visibility" validate:"omitempty,oneof=public followers_only private"`
	Hashtags   []string          `json:"hashtags" validate:"max=10,dive,min=1,max=50,hashtag"`
	GroupID    *uint             `json:"group_id" validate:"omitempty,gt=0"`
}

type UpdatePostInput struct {
	UserID     uint               `json:"-"`
	PostID     uint               `json:"-"`
	Content    *string            `json:"content" validate:"omitempty,max=2000"`
	MediaURL   *string            `json:"media_url" validate:"omitempty,url"`
	Visibility *models.Visibility `json:"visibility" validate:"omitempty,oneof=public followers_only private"`
	Hashtags   []string           `json:"hashtags" validate:"omitempty,max=10,dive,min=1,max=50,hashtag"`
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	groupRepo repository.GroupRepository,
	notifier Notifier,
) *PostService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		groupRepo:  groupRepo,
		notifier:   notifier,
	}
}

// extractHashtags merges explicit tags with #tags found in content, lower-cased and de-duplicated.
func extractHashtags(content string, explicit []string) []string {
	tags := make([]string, 0, len(explicit))
	for _, t := range explicit {
		tags = append(tags, strings.ToLower(strings.TrimPrefix(t, "#")))
	}
	for _, m := range inlineHashtag.FindAllStringSubmatch(content, -1) {
		tags = append(tags, strings.ToLower(m[1]))
	}
	slices.Sort(tags)
	tags = slices.Compact(tags)
	if len(tags) > maxPostHashtags {
		tags = tags[:maxPostHashtags]
	}
	return tags
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && in.MediaURL == "" {
		return nil, models.NewFieldValidationError(map[string]string{"content": "is required when no media is attached"})
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}

	if in.GroupID != nil {
		if _, err := s.groupRepo.GetByID(ctx, *in.GroupID); err != nil {
			return nil, err
		}
		member, err := s.groupRepo.IsMember(ctx, *in.GroupID, in.AuthorID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, models.NewForbiddenError("You must be a member of this group to post in it")
		}
	}

	post := &models.Post{
		AuthorID:   in.AuthorID,
		Content:    content,
		MediaURL:   in.MediaURL,
		Visibility: in.Visibility,
		GroupID:    in.GroupID,
		Hashtags:   extractHashtags(content, in.Hashtags),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, in.AuthorID)
	cache.Invalidate(ctx, cache.TrendingTagsKey)

	return s.postRepo.GetByID(ctx, post.ID)
}

// canView applies visibility: private posts are author-only, followers_only posts need a follow,
// and posts inside a private group need membership.
func (s *PostService) canView(ctx context.Context, post *models.Post, viewerID uint) (bool, error) {
	if post.AuthorID == viewerID {
		return true, nil
	}
	if post.GroupID != nil {
		group, err := s.groupRepo.GetByID(ctx, *post.GroupID)
		if err != nil {
			return false, err
		}
		if !group.IsPublic {
			return s.groupRepo.IsMember(ctx, group.ID, viewerID)
		}
	}
	switch post.Visibility {
	case models.VisibilityPublic:
		return true, nil
	case models.VisibilityFollowersOnly:
		if viewerID == 0 {
			return false, nil
		}
		return s.followRepo.IsFollowing(ctx, viewerID, post.AuthorID)
	default:
		return false, nil
	}
}

// GetPost returns a post the viewer may see. Hidden posts are reported as missing.
func (s *PostService) GetPost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, post, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if err := s.markLiked(ctx, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	if in.Content != nil {
		post.Content = strings.TrimSpace(*in.Content)
	}
	if in.MediaURL != nil {
		post.MediaURL = *in.MediaURL
	}
	if in.Visibility != nil {
		post.Visibility = *in.Visibility
	}
	if post.Content == "" && post.MediaURL == "" {
		return nil, models.NewFieldValidationError(map[string]string{"content": "is required when no media is attached"})
	}
	if in.Content != nil || in.Hashtags != nil {
		post.Hashtags = extractHashtags(post.Content, in.Hashtags)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.TrendingTagsKey)
	return s.postRepo.GetByID(ctx, post.ID)
}

// DeletePost removes a post. Authors and admins may delete.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		admin, err := isAdmin(ctx, s.userRepo, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	if err := s.postRepo.Delete(ctx, post); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, post.AuthorID)
	cache.Invalidate(ctx, cache.TrendingTagsKey)
	return nil
}

// ListUserPosts returns a profile's posts filtered by what the viewer may see.
func (s *PostService) ListUserPosts(ctx context.Context, viewerID, authorID uint, p Pagination) ([]*models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	visibilities := []models.Visibility{models.VisibilityPublic}
	switch {
	case viewerID == authorID:
		visibilities = append(visibilities, models.VisibilityFollowersOnly, models.VisibilityPrivate)
	case viewerID != 0:
		following, err := s.followRepo.IsFollowing(ctx, viewerID, authorID)
		if err != nil {
			return nil, err
		}
		if following {
			visibilities = append(visibilities, models.VisibilityFollowersOnly)
		}
	}

	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, visibilities, p.Limit, p.offset())
	return s.finish(ctx, viewerID, posts, err)
}

// Feed returns the viewer's own posts and visible posts of everyone they follow.
func (s *PostService) Feed(ctx context.Context, userID uint, p Pagination) ([]*models.Post, error) {
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.Feed(ctx, userID, p.Limit, p.offset())
	return s.finish(ctx, userID, posts, err)
}

// PublicFeed returns public posts from everyone. viewerID may be 0.
func (s *PostService) PublicFeed(ctx context.Context, viewerID uint, p Pagination) ([]*models.Post, error) {
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.Public(ctx, p.Limit, p.offset())
	return s.finish(ctx, viewerID, posts, err)
}

func (s *PostService) GroupPosts(ctx context.Context, viewerID, groupID uint, p Pagination) ([]*models.Post, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPublic {
		member, err := s.groupRepo.IsMember(ctx, groupID, viewerID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, models.NewForbiddenError("This group is private")
		}
	}
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.ListByGroup(ctx, groupID, p.Limit, p.offset())
	return s.finish(ctx, viewerID, posts, err)
}

func (s *PostService) PostsByHashtag(ctx context.Context, viewerID uint, tag string, p Pagination) ([]*models.Post, error) {
	tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if tag == "" {
		return nil, models.NewFieldValidationError(map[string]string{"tag": "is required"})
	}
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.ListByHashtag(ctx, tag, p.Limit, p.offset())
	return s.finish(ctx, viewerID, posts, err)
}

func (s *PostService) SearchPosts(ctx context.Context, viewerID uint, query string, p Pagination) ([]*models.Post, error) {
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.Search(ctx, query, p.Limit, p.offset())
	return s.finish(ctx, viewerID, posts, err)
}

// TrendingHashtags returns the most used tags of the past week.
func (s *PostService) TrendingHashtags(ctx context.Context, limit int) ([]models.TrendingHashtag, error) {
	if limit <= 0 || limit > 50 {
		limit = defaultTrendingN
	}
	var tags []models.TrendingHashtag
	err := cache.Aside(ctx, cache.TrendingTagsKey, &tags, cache.TrendingTagsTTL, func() error {
		var err error
		tags, err = s.postRepo.Trending(ctx, time.Now().UTC().Add(-trendingWindow), defaultTrendingN*5)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(tags) > limit {
		tags = tags[:limit]
	}
	if tags == nil {
		tags = []models.TrendingHashtag{}
	}
	return tags, nil
}

// ToggleLike flips the user's like and notifies the author on a new like.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (bool, int, error) {
	post, err := s.GetPost(ctx, userID, postID)
	if err != nil {
		return false, 0, err
	}
	liked, count, err := s.postRepo.ToggleLike(ctx, userID, postID)
	if err != nil {
		return false, 0, err
	}
	if liked {
		s.notifier.Notify(ctx, post.AuthorID, NotifyInput{
			ActorID: userID,
			Type:    models.NotificationLike,
			Content: "liked your post.",
			Target:  &models.NotificationTarget{Kind: models.TargetPost, ID: post.ID},
		})
	}
	return liked, count, nil
}

func (s *PostService) Likers(ctx context.Context, viewerID, postID uint, p Pagination) ([]models.User, error) {
	if _, err := s.GetPost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	p = p.normalize(defaultUsersPP)
	users, err := s.postRepo.Likers(ctx, postID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// ToggleSave flips the user's bookmark on a post.
func (s *PostService) ToggleSave(ctx context.Context, userID, postID uint) (bool, error) {
	if _, err := s.GetPost(ctx, userID, postID); err != nil {
		return false, err
	}
	return s.postRepo.ToggleSave(ctx, userID, postID)
}

func (s *PostService) SavedPosts(ctx context.Context, userID uint, p Pagination) ([]*models.Post, error) {
	p = p.normalize(defaultPostsPP)
	posts, err := s.postRepo.Saved(ctx, userID, p.Limit, p.offset())
	return s.finish(ctx, userID, posts, err)
}

func (s *PostService) finish(ctx context.Context, viewerID uint, posts []*models.Post, err error) ([]*models.Post, error) {
	if err != nil {
		return nil, err
	}
	if posts == nil {
		return []*models.Post{}, nil
	}
	if err := s.markLiked(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) markLiked(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Liked = slices.Contains(liked, p.ID)
	}
	return nil
}

func isAdmin(ctx context.Context, users repository.UserRepository, userID uint) (bool, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin(), nil
}
