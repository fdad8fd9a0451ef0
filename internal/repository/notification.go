package repository

import (
	"context"
	"time"

	"ynetwork/internal/models"

	"gorm.io/gorm"
)

// NotificationFilter selects which notifications a listing returns.
type NotificationFilter string

const (
	NotificationFilterAll    NotificationFilter = "all"
	NotificationFilterUnread NotificationFilter = "unread"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, filter NotificationFilter, limit, offset int) ([]*models.Notification, int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, recipientID, id uint) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Omit("Actor").Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) scope(ctx context.Context, recipientID uint, filter NotificationFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if filter == NotificationFilterUnread {
		q = q.Where("is_read = ?", false)
	}
	return q
}

// List returns a newest-first page of the recipient's notifications and the total matching the filter.
func (r *notificationRepository) List(ctx context.Context, recipientID uint, filter NotificationFilter, limit, offset int) ([]*models.Notification, int64, error) {
	var total int64
	if err := r.scope(ctx, recipientID, filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var items []*models.Notification
	err := r.scope(ctx, recipientID, filter).
		Preload("Actor", publicUser).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	for _, n := range items {
		n.Hydrate()
	}
	return items, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	if err := r.scope(ctx, recipientID, NotificationFilterUnread).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead flags one notification as read. Notifications of other recipients are reported as not found.
func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Preload("Actor", publicUser).First(&n).Error; err != nil {
		return nil, notFoundOr(err, "Notification", id)
	}
	if !n.IsRead {
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		n.IsRead = true
	}
	n.Hydrate()
	return &n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, recipientID, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

// DeleteOlderThan purges read notifications created before cutoff.
func (r *notificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
