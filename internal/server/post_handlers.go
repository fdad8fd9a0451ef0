package server

import (
	"strings"

	"ynetwork/internal/models"
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Hashtags are taken from #tags in the content plus the explicit list
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Post"
// @Security BearerAuth
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.AuthorID = currentUserID(c)

	post, err := s.postSvc.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Security BearerAuth
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postSvc.GetPost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.PostID = id

	post, err := s.postSvc.UpdatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Authors and admins only
// @Tags posts
// @Param id path int true "Post ID"
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postSvc.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postSvc.ListUserPosts(c.UserContext(), currentUserID(c), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/feed
// @Summary Home feed
// @Description Posts from followed users and the caller
// @Tags feed
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.postSvc.Feed(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPublicFeed handles GET /api/feed/public
// @Summary Public feed
// @Tags feed
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Post
// @Router /feed/public [get]
func (s *Server) GetPublicFeed(c *fiber.Ctx) error {
	posts, err := s.postSvc.PublicFeed(c.UserContext(), s.optionalUserID(c), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return respondError(c, models.NewFieldValidationError(map[string]string{"q": "is required"}))
	}
	posts, err := s.postSvc.SearchPosts(c.UserContext(), currentUserID(c), q, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Security BearerAuth
// @Success 200 {object} object{liked=bool,like_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, count, err := s.postSvc.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked, "like_count": count})
}

// GetLikers handles GET /api/posts/:id/likes
func (s *Server) GetLikers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.postSvc.Likers(c.UserContext(), currentUserID(c), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// ToggleSave handles POST /api/posts/:id/save
func (s *Server) ToggleSave(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	saved, err := s.postSvc.ToggleSave(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": saved})
}

// GetSavedPosts handles GET /api/saved-posts
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	posts, err := s.postSvc.SavedPosts(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetTrendingHashtags handles GET /api/hashtags/trending
func (s *Server) GetTrendingHashtags(c *fiber.Ctx) error {
	tags, err := s.postSvc.TrendingHashtags(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tags)
}

// GetHashtagPosts handles GET /api/hashtags/:tag/posts
func (s *Server) GetHashtagPosts(c *fiber.Ctx) error {
	posts, err := s.postSvc.PostsByHashtag(c.UserContext(), currentUserID(c), c.Params("tag"), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}
