package service

import (
	"context"
	"strings"

	"ynetwork/internal/models"

	"golang.org/x/sync/errgroup"
)

// Search scopes.
const (
	SearchAll      = "all"
	SearchUsers    = "users"
	SearchPosts    = "posts"
	SearchHashtags = "hashtags"
)

const searchSectionLimit = 10

type SearchResult struct {
	Users    []models.User            `json:"users"`
	Posts    []*models.Post           `json:"posts"`
	Hashtags []models.TrendingHashtag `json:"hashtags"`
}

// SearchService runs the global search box across users, posts and hashtags.
type SearchService struct {
	users *UserService
	posts *PostService
}

func NewSearchService(users *UserService, posts *PostService) *SearchService {
	return &SearchService{users: users, posts: posts}
}

// Search queries each requested section concurrently. Posts honour the viewer's like state.
func (s *SearchService) Search(ctx context.Context, viewerID uint, query, scope string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewFieldValidationError(map[string]string{"q": "is required"})
	}
	if scope == "" {
		scope = SearchAll
	}
	switch scope {
	case SearchAll, SearchUsers, SearchPosts, SearchHashtags:
	default:
		return nil, models.NewFieldValidationError(map[string]string{"type": "must be one of: all, users, posts, hashtags"})
	}
	want := func(section string) bool { return scope == SearchAll || scope == section }

	out := &SearchResult{
		Users:    []models.User{},
		Posts:    []*models.Post{},
		Hashtags: []models.TrendingHashtag{},
	}
	page := Pagination{Page: 1, Limit: searchSectionLimit}

	g, gctx := errgroup.WithContext(ctx)
	if want(SearchUsers) {
		g.Go(func() error {
			users, err := s.users.SearchUsers(gctx, query, page)
			if err != nil {
				return err
			}
			out.Users = users
			return nil
		})
	}
	if want(SearchPosts) {
		g.Go(func() error {
			posts, err := s.posts.SearchPosts(gctx, viewerID, query, page)
			if err != nil {
				return err
			}
			out.Posts = posts
			return nil
		})
	}
	if want(SearchHashtags) {
		g.Go(func() error {
			tag := strings.ToLower(strings.TrimPrefix(query, "#"))
			if tag == "" {
				return nil
			}
			tags, err := s.posts.postRepo.SearchHashtags(gctx, tag, searchSectionLimit)
			if err != nil {
				return err
			}
			if tags != nil {
				out.Hashtags = tags
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
