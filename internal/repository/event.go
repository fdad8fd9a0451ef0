package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"ynetwork/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event list orderings.
const (
	EventSortStartDate = "start_date"
	EventSortCreatedAt = "createdAt"
)

// EventFilter narrows an event listing.
type EventFilter struct {
	EventType string
	Query     string
	SortBy    string
	Now       time.Time
}

var errEventFull = errors.New("event is full")

// EventRepository defines persistence operations for events and attendance.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uint) (*models.Event, error)
	List(ctx context.Context, filter EventFilter, limit, offset int) ([]*models.Event, int64, error)
	Participants(ctx context.Context, eventID uint) ([]models.UserSummary, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	Join(ctx context.Context, eventID, userID uint) (bool, error)
	Leave(ctx context.Context, eventID, userID uint) (bool, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create inserts the event with its creator as the first participant.
func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event.ParticipantCount = 1
		if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
			return err
		}
		return tx.Create(&models.EventParticipant{EventID: event.ID, UserID: event.CreatorID}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Preload("Creator", publicUser).First(&event, id).Error; err != nil {
		return nil, notFoundOr(err, "Event", id)
	}
	return &event, nil
}

// List pages events. The default ordering shows upcoming events that have not ended, soonest first.
func (r *eventRepository) List(ctx context.Context, filter EventFilter, limit, offset int) ([]*models.Event, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Event{})
		if filter.EventType != "" {
			q = q.Where("event_type = ?", filter.EventType)
		}
		if s := strings.TrimSpace(filter.Query); s != "" {
			pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
			q = q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern)
		}
		if filter.SortBy != EventSortCreatedAt {
			now := filter.Now
			if now.IsZero() {
				now = time.Now().UTC()
			}
			q = q.Where("end_date >= ?", now)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	q := scope().Preload("Creator", publicUser)
	if filter.SortBy == EventSortCreatedAt {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("start_date ASC")
	}

	var events []*models.Event
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return events, total, nil
}

func (r *eventRepository) Participants(ctx context.Context, eventID uint) ([]models.UserSummary, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Select(userSummaryColumns).
		Joins("JOIN event_participants ep ON ep.user_id = users.id").
		Where("ep.event_id = ?", eventID).
		Order("ep.joined_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return summaries(users), nil
}

func (r *eventRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Event{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Join adds userID to the event unless it is at its participant limit.
// It reports false when userID was already attending.
func (r *eventRepository) Join(ctx context.Context, eventID, userID uint) (bool, error) {
	joined := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.EventParticipant{EventID: eventID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		upd := tx.Model(&models.Event{}).
			Where("id = ? AND (participant_limit = 0 OR participant_count < participant_limit)", eventID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errEventFull
		}
		joined = true
		return nil
	})
	if errors.Is(err, errEventFull) {
		return false, models.NewValidationError("Event has reached its participant limit")
	}
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return joined, nil
}

func (r *eventRepository) Leave(ctx context.Context, eventID, userID uint) (bool, error) {
	left := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventParticipant{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		left = true
		return tx.Model(&models.Event{}).Where("id = ? AND participant_count > 0", eventID).
			UpdateColumn("participant_count", gorm.Expr("participant_count - 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return left, nil
}
