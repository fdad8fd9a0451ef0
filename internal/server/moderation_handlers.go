package server

import (
	"ynetwork/internal/models"
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReport handles POST /api/reports
// @Summary Report content
// @Description Report a post, comment or user. Duplicate pending reports are rejected.
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body service.CreateReportInput true "Report"
// @Security BearerAuth
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /reports [post]
func (s *Server) CreateReport(c *fiber.Ctx) error {
	var in service.CreateReportInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ReporterID = currentUserID(c)

	report, err := s.moderationSvc.CreateReport(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// ListReports handles GET /api/moderation/reports?status=
// @Summary List reports
// @Tags moderation
// @Produce json
// @Param status query string false "pending, resolved_action_taken, resolved_no_action or dismissed"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} service.ReportPage
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/reports [get]
func (s *Server) ListReports(c *fiber.Ctx) error {
	page, err := s.moderationSvc.ListReports(c.UserContext(), models.ReportStatus(c.Query("status")), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetReport handles GET /api/moderation/reports/:id
// @Summary Get a report
// @Tags moderation
// @Produce json
// @Param id path int true "Report ID"
// @Security BearerAuth
// @Success 200 {object} models.Report
// @Failure 404 {object} models.ErrorResponse
// @Router /moderation/reports/{id} [get]
func (s *Server) GetReport(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.moderationSvc.GetReport(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// ResolveReport handles PUT /api/moderation/reports/:id
// @Summary Resolve a report
// @Description Only pending reports can be resolved. Action taken removes the content or bans the user.
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body service.ResolveReportInput true "Resolution"
// @Security BearerAuth
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Router /moderation/reports/{id} [put]
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.ResolveReportInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.AdminID = currentUserID(c)
	in.ReportID = id

	report, err := s.moderationSvc.ResolveReport(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// BanUser handles POST /api/moderation/users/:id/ban
// @Summary Ban a user
// @Tags moderation
// @Param id path int true "User ID"
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/users/{id}/ban [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.setBanned(c, true)
}

// UnbanUser handles DELETE /api/moderation/users/:id/ban
// @Summary Unban a user
// @Tags moderation
// @Param id path int true "User ID"
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /moderation/users/{id}/ban [delete]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.setBanned(c, false)
}

func (s *Server) setBanned(c *fiber.Ctx, banned bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if banned && id == currentUserID(c) {
		return respondError(c, models.NewValidationError("You cannot ban yourself"))
	}
	if err := s.moderationSvc.SetBanned(c.UserContext(), id, banned); err != nil {
		return respondError(c, err)
	}
	if banned {
		return c.JSON(fiber.Map{"message": "User banned"})
	}
	return c.JSON(fiber.Map{"message": "User unbanned"})
}
