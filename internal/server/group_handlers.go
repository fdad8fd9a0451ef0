package server

import (
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateGroup handles POST /api/groups
// @Summary Create a group
// @Description Creates the group and its group conversation with the caller as admin
// @Tags groups
// @Accept json
// @Produce json
// @Param request body service.CreateGroupInput true "Group"
// @Security BearerAuth
// @Success 201 {object} models.Group
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /groups [post]
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var in service.CreateGroupInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.CreatorID = currentUserID(c)

	group, err := s.groupSvc.CreateGroup(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// ListGroups handles GET /api/groups?topic=
func (s *Server) ListGroups(c *fiber.Ctx) error {
	page, err := s.groupSvc.ListGroups(c.UserContext(), currentUserID(c), c.Query("topic"), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetMyGroups handles GET /api/groups/mine
func (s *Server) GetMyGroups(c *fiber.Ctx) error {
	groups, err := s.groupSvc.MyGroups(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(groups)
}

// GetGroup handles GET /api/groups/:id
func (s *Server) GetGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	group, err := s.groupSvc.GetGroup(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// UpdateGroup handles PUT /api/groups/:id
func (s *Server) UpdateGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateGroupInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.GroupID = id

	group, err := s.groupSvc.UpdateGroup(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// DeleteGroup handles DELETE /api/groups/:id
func (s *Server) DeleteGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.groupSvc.DeleteGroup(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Group deleted"})
}

// JoinGroup handles POST /api/groups/:id/join
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	group, err := s.groupSvc.JoinGroup(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// LeaveGroup handles POST /api/groups/:id/leave
func (s *Server) LeaveGroup(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.groupSvc.LeaveGroup(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left group"})
}

// GetGroupMembers handles GET /api/groups/:id/members
func (s *Server) GetGroupMembers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.groupSvc.Members(c.UserContext(), currentUserID(c), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hideEmails(users))
}

// GetGroupPosts handles GET /api/groups/:id/posts
func (s *Server) GetGroupPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.postSvc.GroupPosts(c.UserContext(), currentUserID(c), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}
