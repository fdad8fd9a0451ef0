package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"ynetwork/internal/models"
	"ynetwork/internal/observability"
	"ynetwork/internal/repository"
	"ynetwork/internal/storage"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaMaxUploadSizeMB = 10
	defaultMediaPP              = 20
)

var mediaExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
}

// MediaService validates uploads and stores them in object storage.
type MediaService struct {
	repo     repository.MediaRepository
	store    storage.ObjectStore
	maxBytes int64
}

type UploadMediaInput struct {
	UploaderID uint
	FileName   string
	Size       int64
	Body       io.Reader
}

func NewMediaService(repo repository.MediaRepository, store storage.ObjectStore, maxSizeMB int) *MediaService {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMediaMaxUploadSizeMB
	}
	return &MediaService{
		repo:     repo,
		store:    store,
		maxBytes: int64(maxSizeMB) << 20,
	}
}

// Upload sniffs the content type, records image dimensions and stores the file under a random key.
func (s *MediaService) Upload(ctx context.Context, in UploadMediaInput) (*models.Media, error) {
	media, err := s.upload(ctx, in)
	result := "ok"
	if err != nil {
		result = "rejected"
		if models.StatusFor(err) >= http.StatusInternalServerError {
			result = "failed"
		}
	}
	observability.MediaUploadsTotal.WithLabelValues(result).Inc()
	return media, err
}

func (s *MediaService) upload(ctx context.Context, in UploadMediaInput) (*models.Media, error) {
	if in.Body == nil {
		return nil, models.NewFieldValidationError(map[string]string{"file": "is required"})
	}
	if in.Size > s.maxBytes {
		return nil, tooLarge(s.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, models.NewValidationError("Could not read upload")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, tooLarge(s.maxBytes)
	}
	if len(data) == 0 {
		return nil, models.NewFieldValidationError(map[string]string{"file": "is empty"})
	}

	contentType := http.DetectContentType(data)
	ext, ok := mediaExtensions[contentType]
	if !ok {
		return nil, models.NewFieldValidationError(map[string]string{"file": "unsupported file type " + contentType})
	}

	media := &models.Media{
		UploaderID: in.UploaderID,
		FileType:   contentType,
		FileName:   path.Base(strings.TrimSpace(in.FileName)),
		FileSize:   int64(len(data)),
	}
	if strings.HasPrefix(contentType, "image/") {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, models.NewFieldValidationError(map[string]string{"file": "is not a valid image"})
		}
		media.Width, media.Height = cfg.Width, cfg.Height
	}

	key := fmt.Sprintf("media/%d/%s%s", in.UploaderID, uuid.NewString(), ext)
	obj, err := s.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, models.NewServiceUnavailableError("Media storage is unavailable", err)
	}
	media.StorageKey = obj.Key
	media.CDNURL = obj.URL

	if err := s.repo.Create(ctx, media); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			slog.Warn("orphaned media object", slog.String("key", key), slog.String("error", delErr.Error()))
		}
		return nil, err
	}
	return media, nil
}

func tooLarge(limit int64) error {
	return models.NewFieldValidationError(map[string]string{
		"file": fmt.Sprintf("exceeds the %d MB limit", limit>>20),
	})
}

func (s *MediaService) ListMine(ctx context.Context, uploaderID uint, p Pagination) ([]*models.Media, error) {
	p = p.normalize(defaultMediaPP)
	items, err := s.repo.ListByUploader(ctx, uploaderID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Media{}
	}
	return items, nil
}

// Delete removes the uploader's media record and its stored object.
func (s *MediaService) Delete(ctx context.Context, userID uint, key string) error {
	media, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if media.UploaderID != userID {
		return models.NewForbiddenError("You can only delete your own uploads")
	}
	if err := s.store.Delete(ctx, media.StorageKey); err != nil {
		return models.NewServiceUnavailableError("Media storage is unavailable", err)
	}
	return s.repo.Delete(ctx, media.ID)
}
