package server

import (
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateEvent handles POST /api/events
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var in service.CreateEventInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.CreatorID = currentUserID(c)

	event, err := s.eventSvc.CreateEvent(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// ListEvents handles GET /api/events?event_type=&q=&sortBy=
// Only upcoming events are listed.
func (s *Server) ListEvents(c *fiber.Ctx) error {
	page, err := s.eventSvc.ListEvents(c.UserContext(), service.ListEventsInput{
		Pagination: parsePagination(c),
		EventType:  c.Query("event_type"),
		Query:      c.Query("q"),
		SortBy:     c.Query("sortBy"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetEvent handles GET /api/events/:id
func (s *Server) GetEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	event, err := s.eventSvc.GetEvent(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

// UpdateEvent handles PUT /api/events/:id
func (s *Server) UpdateEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateEventInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.EventID = id

	event, err := s.eventSvc.UpdateEvent(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

// DeleteEvent handles DELETE /api/events/:id
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.eventSvc.DeleteEvent(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Event deleted"})
}

// JoinEvent handles POST /api/events/:id/join
func (s *Server) JoinEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	event, err := s.eventSvc.JoinEvent(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

// LeaveEvent handles POST /api/events/:id/leave
func (s *Server) LeaveEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.eventSvc.LeaveEvent(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left event"})
}
