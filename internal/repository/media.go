package repository

import (
	"context"

	"ynetwork/internal/models"

	"gorm.io/gorm"
)

// MediaRepository records uploaded objects.
type MediaRepository interface {
	Create(ctx context.Context, media *models.Media) error
	GetByKey(ctx context.Context, key string) (*models.Media, error)
	ListByUploader(ctx context.Context, uploaderID uint, limit, offset int) ([]*models.Media, error)
	Delete(ctx context.Context, id uint) error
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, media *models.Media) error {
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("media key already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) GetByKey(ctx context.Context, key string) (*models.Media, error) {
	var media models.Media
	if err := r.db.WithContext(ctx).Where("storage_key = ?", key).First(&media).Error; err != nil {
		return nil, notFoundOr(err, "Media", key)
	}
	return &media, nil
}

func (r *mediaRepository) ListByUploader(ctx context.Context, uploaderID uint, limit, offset int) ([]*models.Media, error) {
	var items []*models.Media
	err := r.db.WithContext(ctx).
		Where("uploader_id = ?", uploaderID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Media{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
