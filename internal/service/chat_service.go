// Package service provides application business logic (chat, posts, users, etc.).
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/notifications"
	"ynetwork/internal/observability"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"

	"golang.org/x/sync/errgroup"
)

const (
	defaultConversationsPP = 20
	defaultMessagesPP      = 30
	newMessageNotice       = "sent you a new message."
)

// ChatService provides conversation and messaging business logic.
type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	realtime Realtime
	notifier Notifier
}

// CreateConversationInput is the input for creating or finding a conversation.
type CreateConversationInput struct {
	InitiatorID  uint                    `json:"-"`
	RecipientIDs []uint                  `json:"recipient_ids" validate:"required,min=1,max=50,dive,gt=0"`
	Type         models.ConversationType `json:"type" validate:"omitempty,oneof=one_to_one group"`
	GroupName    string                  `json:"group_name" validate:"max=100"`
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	SenderID       uint   `json:"-"`
	ConversationID uint   `json:"-"`
	Content        string `json:"content" validate:"required,notblank,max=5000"`
}

// MarkReadInput identifies the newest message the reader has seen.
type MarkReadInput struct {
	UserID         uint `json:"-"`
	ConversationID uint `json:"-"`
	LastMessageID  uint `json:"last_message_id" validate:"required,gt=0"`
}

// ConversationPage is one page of a user's conversations.
type ConversationPage struct {
	Conversations []*models.Conversation `json:"conversations"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	TotalPages    int                    `json:"totalPages"`
	TotalCount    int64                  `json:"totalCount"`
}

// NewChatService returns a new ChatService. realtime and notifier may be nil.
func NewChatService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	realtime Realtime,
	notifier Notifier,
) *ChatService {
	if realtime == nil {
		realtime = noopRealtime{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		realtime: realtime,
		notifier: notifier,
	}
}

// CreateConversation finds the existing direct conversation between the initiator and
// the recipient or creates a new conversation. The bool reports whether one was created.
func (s *ChatService) CreateConversation(ctx context.Context, in CreateConversationInput) (*models.Conversation, bool, error) {
	if err := validation.Struct(in); err != nil {
		return nil, false, err
	}
	if in.Type == "" {
		in.Type = models.ConversationOneToOne
	}

	participants := uniqueIDs(append([]uint{in.InitiatorID}, in.RecipientIDs...))
	switch in.Type {
	case models.ConversationOneToOne:
		if len(participants) != 2 {
			return nil, false, models.NewValidationError("A direct conversation needs exactly one other participant")
		}
	case models.ConversationGroup:
		if strings.TrimSpace(in.GroupName) == "" {
			return nil, false, models.NewFieldValidationError(map[string]string{"group_name": "is required"})
		}
		if len(participants) < 2 {
			return nil, false, models.NewValidationError("A group conversation needs at least one other participant")
		}
	}

	summaries, err := s.userRepo.GetSummaries(ctx, participants)
	if err != nil {
		return nil, false, err
	}
	for _, id := range participants {
		if _, ok := summaries[id]; !ok {
			return nil, false, models.NewNotFoundError("User", id)
		}
	}

	if in.Type == models.ConversationOneToOne {
		other := participants[0]
		if other == in.InitiatorID {
			other = participants[1]
		}
		existing, err := s.chatRepo.FindDirectConversation(ctx, in.InitiatorID, other)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return s.withParticipants(existing, participants, summaries), false, nil
		}
	}

	conv := &models.Conversation{
		Type:                 in.Type,
		LastMessageTimestamp: time.Now().UTC(),
	}
	if in.Type == models.ConversationOneToOne {
		key := models.DirectPairKey(participants[0], participants[1])
		conv.PairKey = &key
	} else {
		admin := in.InitiatorID
		conv.GroupName = strings.TrimSpace(in.GroupName)
		conv.GroupAdminID = &admin
	}

	if err := s.chatRepo.CreateConversation(ctx, conv, participants); err != nil {
		// Lost a race with a concurrent create for the same pair.
		if models.IsCode(err, models.CodeConflict) && in.Type == models.ConversationOneToOne {
			existing, findErr := s.chatRepo.FindDirectConversation(ctx, participants[0], participants[1])
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return s.withParticipants(existing, participants, summaries), false, nil
			}
		}
		return nil, false, err
	}

	s.withParticipants(conv, participants, summaries)
	for _, id := range participants {
		s.realtime.Emit(ctx, id, notifications.EventNewConversation, conv)
	}
	return conv, true, nil
}

func (s *ChatService) withParticipants(conv *models.Conversation, ids []uint, summaries map[uint]models.UserSummary) *models.Conversation {
	conv.Participants = make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		conv.Participants = append(conv.Participants, summaries[id])
	}
	return conv
}

// SendMessage persists a message, pushes it to the other participants and queues
// a new_message notification for each of them.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if models.ContentLength(in.Content) > models.MaxMessageLength {
		return nil, models.NewFieldValidationError(map[string]string{
			"content": fmt.Sprintf("must not exceed %d characters", models.MaxMessageLength),
		})
	}

	span, ctx := observability.NewSpan(ctx, "chat.send_message",
		observability.AttrUserID.Int64(int64(in.SenderID)),
		observability.AttrConversationID.Int64(int64(in.ConversationID)),
	)
	defer span.End()

	conv, err := s.chatRepo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	participants, err := s.chatRepo.ParticipantIDs(ctx, conv.ID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetAttributes(observability.AttrRecipients.Int(len(participants) - 1))
	if !slices.Contains(participants, in.SenderID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        strings.TrimSpace(in.Content),
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.MessagesSentTotal.WithLabelValues(string(conv.Type)).Inc()

	if summaries, err := s.userRepo.GetSummaries(ctx, []uint{in.SenderID}); err == nil {
		if sender, ok := summaries[in.SenderID]; ok {
			msg.SenderSummary = &sender
		}
	}

	target := &models.NotificationTarget{Kind: models.TargetConversation, ID: conv.ID}
	for _, id := range participants {
		if id == in.SenderID {
			continue
		}
		s.realtime.Emit(ctx, id, notifications.EventNewMessage, msg)
		s.notifier.Notify(ctx, id, NotifyInput{
			ActorID: in.SenderID,
			Type:    models.NotificationNewMessage,
			Content: newMessageNotice,
			Target:  target,
		})
	}
	return msg, nil
}

// ListConversations returns the user's conversations, most recently active first, each with
// the other participants, the last message and the unread count.
func (s *ChatService) ListConversations(ctx context.Context, userID uint, p Pagination) (*ConversationPage, error) {
	p = p.normalize(defaultConversationsPP)
	convs, total, err := s.chatRepo.ListUserConversations(ctx, userID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}

	page := &ConversationPage{
		Conversations: convs,
		Page:          p.Page,
		Limit:         p.Limit,
		TotalCount:    total,
		TotalPages:    totalPages(total, p.Limit),
	}
	if len(convs) == 0 {
		page.Conversations = []*models.Conversation{}
		return page, nil
	}

	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	var (
		participants map[uint][]models.UserSummary
		last         map[uint]*models.Message
		unread       map[uint]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.chatRepo.ParticipantsFor(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		last, err = s.chatRepo.LastMessagesFor(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = s.chatRepo.UnreadCountsFor(gctx, userID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range convs {
		others := make([]models.UserSummary, 0, len(participants[c.ID]))
		for _, u := range participants[c.ID] {
			if u.ID != userID {
				others = append(others, u)
			}
		}
		c.Participants = others
		c.LastMessage = last[c.ID]
		c.UnreadCount = unread[c.ID]
	}
	return page, nil
}

// ListMessages returns one page of history in chronological order. Page 1 holds the newest messages.
func (s *ChatService) ListMessages(ctx context.Context, userID, convID uint, p Pagination) ([]*models.Message, error) {
	p = p.normalize(defaultMessagesPP)
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.chatRepo.GetMessages(ctx, convID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// MarkRead records every message up to and including LastMessageID as read by the user.
// It returns how many messages were newly marked.
func (s *ChatService) MarkRead(ctx context.Context, in MarkReadInput) (int64, error) {
	if err := validation.Struct(in); err != nil {
		return 0, err
	}
	if err := s.requireParticipant(ctx, in.ConversationID, in.UserID); err != nil {
		return 0, err
	}

	msg, err := s.chatRepo.GetMessage(ctx, in.LastMessageID)
	if err != nil {
		return 0, err
	}
	if msg.ConversationID != in.ConversationID {
		return 0, models.NewNotFoundError("Message", in.LastMessageID)
	}

	return s.chatRepo.MarkReadUpTo(ctx, in.UserID, in.ConversationID, msg.CreatedAt, time.Now().UTC())
}

// GetConversation returns a conversation the user participates in, with all participants.
func (s *ChatService) GetConversation(ctx context.Context, userID, convID uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	participants, err := s.chatRepo.ParticipantsFor(ctx, []uint{convID})
	if err != nil {
		return nil, err
	}
	found := false
	for _, p := range participants[convID] {
		if p.ID == userID {
			found = true
			break
		}
	}
	if !found {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	conv.Participants = participants[convID]
	return conv, nil
}

func (s *ChatService) requireParticipant(ctx context.Context, convID, userID uint) error {
	if _, err := s.chatRepo.GetConversation(ctx, convID); err != nil {
		return err
	}
	ok, err := s.chatRepo.IsParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You are not a participant in this conversation")
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
