package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for conversation and message data operations.
type ChatRepository interface {
	FindDirectConversation(ctx context.Context, a, b uint) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	IsParticipant(ctx context.Context, convID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, convID uint) ([]uint, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	GetMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, error)
	ListUserConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, int64, error)
	ParticipantsFor(ctx context.Context, convIDs []uint) (map[uint][]models.UserSummary, error)
	LastMessagesFor(ctx context.Context, convIDs []uint) (map[uint]*models.Message, error)
	UnreadCountsFor(ctx context.Context, userID uint, convIDs []uint) (map[uint]int64, error)
	MarkReadUpTo(ctx context.Context, userID, convID uint, upTo, readAt time.Time) (int64, error)
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db, log: observability.NewRepoLogger("messages")}
}

// FindDirectConversation returns the one_to_one conversation between a and b, or nil when none exists.
func (r *chatRepository) FindDirectConversation(ctx context.Context, a, b uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("type = ? AND pair_key = ?", models.ConversationOneToOne, models.DirectPairKey(a, b)).
		Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// CreateConversation inserts the conversation and its participant rows atomically.
// A concurrent insert of the same direct pair surfaces as a CONFLICT error.
func (r *chatRepository) CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error {
	if conv.LastMessageTimestamp.IsZero() {
		conv.LastMessageTimestamp = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		rows := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			rows = append(rows, models.ConversationParticipant{ConversationID: conv.ID, UserID: id})
		}
		return tx.Create(&rows).Error
	})
	if isUniqueViolation(err) {
		return models.NewConflictError("conversation already exists")
	}
	if err != nil {
		r.log.Failed(ctx, "create_conversation", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.Uint64("conversation_id", uint64(conv.ID)), slog.Int("participants", len(participantIDs)))
	return nil
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, notFoundOr(err, "Conversation", id)
	}
	return &conv, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *chatRepository) ParticipantIDs(ctx context.Context, convID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", convID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// addParticipant adds userID to convID within tx. Re-adding is a no-op.
func addParticipant(tx *gorm.DB, convID, userID uint) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ConversationParticipant{ConversationID: convID, UserID: userID}).Error
}

func removeParticipant(tx *gorm.DB, convID, userID uint) error {
	return tx.Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&models.ConversationParticipant{}).Error
}

// CreateMessage persists msg and advances the conversation's last_message_timestamp in one transaction.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	defer observability.TrackQuery("create", "messages")()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message_timestamp": msg.CreatedAt,
				"updated_at":             msg.CreatedAt,
			}).Error
	})
	if err != nil {
		r.log.Failed(ctx, "create_message", err)
		return models.NewInternalError(err)
	}
	r.log.Created(ctx, slog.Uint64("message_id", uint64(msg.ID)), slog.Uint64("conversation_id", uint64(msg.ConversationID)))
	return nil
}

func (r *chatRepository) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFoundOr(err, "Message", id)
	}
	return &msg, nil
}

// GetMessages returns one page of history in chronological order.
// The page is selected newest-first so offset 0 is always the latest messages.
func (r *chatRepository) GetMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Preload("Sender", publicUser).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	reverseMessages(messages)
	for _, m := range messages {
		attachSender(m)
	}
	return messages, nil
}

// ListUserConversations returns a page of the user's conversations, most recently active first.
func (r *chatRepository) ListUserConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, int64, error) {
	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Conversation{}).
			Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var conversations []*models.Conversation
	err := scope().
		Select("conversations.*").
		Order("conversations.last_message_timestamp DESC").
		Order("conversations.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return conversations, total, nil
}

type participantRow struct {
	ConversationID    uint
	ID                uint
	Username          string
	FirstName         string
	LastName          string
	ProfilePictureURL string
}

// ParticipantsFor loads the public profile of every participant of every listed conversation in one query.
func (r *chatRepository) ParticipantsFor(ctx context.Context, convIDs []uint) (map[uint][]models.UserSummary, error) {
	out := make(map[uint][]models.UserSummary, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}

	var rows []participantRow
	err := r.db.WithContext(ctx).
		Table("conversation_participants cp").
		Select("cp.conversation_id, "+userSummaryColumns).
		Joins("JOIN users ON users.id = cp.user_id AND users.deleted_at IS NULL").
		Where("cp.conversation_id IN ?", convIDs).
		Order("cp.conversation_id ASC, users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, row := range rows {
		out[row.ConversationID] = append(out[row.ConversationID], models.UserSummary{
			ID:                row.ID,
			Username:          row.Username,
			FirstName:         row.FirstName,
			LastName:          row.LastName,
			ProfilePictureURL: row.ProfilePictureURL,
		})
	}
	return out, nil
}

// LastMessagesFor loads the newest message of each listed conversation in one query.
func (r *chatRepository) LastMessagesFor(ctx context.Context, convIDs []uint) (map[uint]*models.Message, error) {
	out := make(map[uint]*models.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id")

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("id IN (?)", latest).
		Preload("Sender", publicUser).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, m := range messages {
		attachSender(m)
		out[m.ConversationID] = m
	}
	return out, nil
}

// UnreadCountsFor counts, per conversation, messages from other senders that userID has no read row for.
func (r *chatRepository) UnreadCountsFor(ctx context.Context, userID uint, convIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ConversationID uint
		Unread         int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("messages.conversation_id, COUNT(*) AS unread").
		Where("messages.conversation_id IN ? AND messages.sender_id <> ?", convIDs, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Group("messages.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, row := range rows {
		out[row.ConversationID] = row.Unread
	}
	return out, nil
}

// MarkReadUpTo inserts read rows for every message from other senders created at or before upTo.
// Existing rows are left untouched, so read state only ever grows.
func (r *chatRepository) MarkReadUpTo(ctx context.Context, userID, convID uint, upTo, readAt time.Time) (int64, error) {
	defer observability.TrackQuery("insert_select", "message_reads")()
	res := r.db.WithContext(ctx).Exec(`
INSERT INTO message_reads (message_id, user_id, read_at)
SELECT m.id, ?, ? FROM messages m
WHERE m.conversation_id = ?
  AND m.created_at <= ?
  AND m.sender_id <> ?
  AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = ?)
ON CONFLICT DO NOTHING`,
		userID, readAt, convID, upTo, userID, userID)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// deleteConversationTx removes a conversation with its messages, read rows and participants.
func deleteConversationTx(tx *gorm.DB, convID uint) error {
	if err := tx.Exec(
		"DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE conversation_id = ?)", convID,
	).Error; err != nil {
		return err
	}
	if err := tx.Where("conversation_id = ?", convID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("conversation_id = ?", convID).Delete(&models.ConversationParticipant{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Conversation{}, convID).Error
}

func attachSender(m *models.Message) {
	if m.Sender != nil && m.Sender.ID != 0 {
		s := m.Sender.Summary()
		m.SenderSummary = &s
	}
}
