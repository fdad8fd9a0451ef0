package server

import (
	"ynetwork/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FeatureFlagsResponse lists configured flag values and their evaluation for the caller.
type FeatureFlagsResponse struct {
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Inspect feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} FeatureFlagsResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	res := FeatureFlagsResponse{Raw: map[string]string{}, Evaluated: map[string]bool{}}
	if s.featureFlags != nil {
		res.Raw = s.featureFlags.Raw()
		res.Evaluated = s.featureFlags.Snapshot(currentUserID(c))
	}
	return c.JSON(res)
}

// FeatureRequired hides a route behind a flag. Disabled routes answer 404.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.featureFlags == nil || !s.featureFlags.Enabled(flag, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				fiber.NewError(fiber.StatusNotFound, "This feature is not available"))
		}
		return c.Next()
	}
}
