package server

import "github.com/gofiber/fiber/v2"

// Search handles GET /api/search?q=&type=all|users|posts|hashtags
// @Summary Global search
// @Tags search
// @Produce json
// @Param q query string true "Query"
// @Param type query string false "all, users, posts or hashtags"
// @Security BearerAuth
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} models.ErrorResponse
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	result, err := s.searchSvc.Search(c.UserContext(), currentUserID(c), c.Query("q"), c.Query("type"))
	if err != nil {
		return respondError(c, err)
	}
	result.Users = hideEmails(result.Users)
	return c.JSON(result)
}
