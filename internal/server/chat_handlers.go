// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations
// @Summary Create or find a conversation
// @Description A direct conversation that already exists between the two users is returned with 200
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body service.CreateConversationInput true "Recipients"
// @Security BearerAuth
// @Success 200 {object} models.Conversation
// @Success 201 {object} models.Conversation
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	var in service.CreateConversationInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.InitiatorID = currentUserID(c)

	conv, created, err := s.chatSvc.CreateConversation(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(conv)
}

// GetConversations handles GET /api/conversations
// @Summary List conversations
// @Description Newest activity first, with other participants, last message and unread count
// @Tags conversations
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} service.ConversationPage
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	page, err := s.chatSvc.ListConversations(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetConversation handles GET /api/conversations/:id
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	conv, err := s.chatSvc.GetConversation(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Message history
// @Description Page 1 holds the newest messages; each page is returned oldest first
// @Tags conversations
// @Produce json
// @Param id path int true "Conversation ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	msgs, err := s.chatSvc.ListMessages(c.UserContext(), currentUserID(c), id, parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body service.SendMessageInput true "Message"
// @Security BearerAuth
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.SendMessageInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.SenderID = currentUserID(c)
	in.ConversationID = id

	msg, err := s.chatSvc.SendMessage(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkConversationRead handles PUT /api/conversations/:id/read
// @Summary Mark messages read
// @Description Marks every message up to last_message_id as read by the caller
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body service.MarkReadInput true "Last read message"
// @Security BearerAuth
// @Success 200 {object} object{marked=int}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/read [put]
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.MarkReadInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.ConversationID = id

	marked, err := s.chatSvc.MarkRead(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked": marked})
}
