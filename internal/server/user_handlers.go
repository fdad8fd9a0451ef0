package server

import (
	"ynetwork/internal/models"
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UserProfileResponse is a user as seen by another student.
type UserProfileResponse struct {
	*models.User
	IsFollowing bool `json:"is_following"`
}

// ListUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} service.UserPage
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page, err := s.userSvc.ListUsers(c.UserContext(), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	page.Users = hideEmails(page.Users)
	return c.JSON(page)
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userSvc.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update profile
// @Description Update names, bio, picture, privacy and notification preferences
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)

	user, err := s.userSvc.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me
// @Summary Delete account
// @Description Soft-deletes the caller's account and ends the current session
// @Tags users
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [delete]
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	if err := s.userSvc.DeleteAccount(c.UserContext(), currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	if err := s.endSession(c); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSuggestedUsers handles GET /api/users/suggested
// @Summary Suggested users
// @Description Popular users the caller does not follow yet
// @Tags users
// @Produce json
// @Param limit query int false "How many"
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /users/suggested [get]
func (s *Server) GetSuggestedUsers(c *fiber.Ctx) error {
	users, err := s.userSvc.Suggested(c.UserContext(), currentUserID(c), c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// SearchUsers handles GET /api/users/search?q=...
// @Summary Search users
// @Tags users
// @Produce json
// @Param q query string true "Query"
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userSvc.SearchUsers(c.UserContext(), c.Query("q"), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// GetUserByUsername handles GET /api/users/username/:username
// @Summary Get user by username
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Security BearerAuth
// @Success 200 {object} UserProfileResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/username/{username} [get]
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	user, err := s.userSvc.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, models.NewNotFoundError("User", c.Params("username")))
	}
	return s.respondProfile(c, user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Security BearerAuth
// @Success 200 {object} UserProfileResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userSvc.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return s.respondProfile(c, user)
}

func (s *Server) respondProfile(c *fiber.Ctx, user *models.User) error {
	viewerID := currentUserID(c)
	resp := UserProfileResponse{User: user}
	if user.ID != viewerID {
		user.UniversityEmail = ""
		following, err := s.followSvc.IsFollowing(c.UserContext(), viewerID, user.ID)
		if err != nil {
			return respondError(c, err)
		}
		resp.IsFollowing = following
	}
	return c.JSON(resp)
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow a user
// @Tags users
// @Param id path int true "User ID"
// @Security BearerAuth
// @Success 201 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.followSvc.Follow(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Followed"})
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Tags users
// @Param id path int true "User ID"
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.followSvc.Unfollow(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Unfollowed"})
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.followSvc.Followers(c.UserContext(), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.followSvc.Following(c.UserContext(), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// hideEmails strips university emails from users listed to someone else.
func hideEmails(users []models.User) []models.User {
	for i := range users {
		users[i].UniversityEmail = ""
	}
	return users
}
