package service

import (
	"context"
	"log/slog"
	"strings"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const defaultReportsPP = 20

// ModerationService handles user reports and their resolution by admins.
type ModerationService struct {
	reportRepo  repository.ReportRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
}

type CreateReportInput struct {
	ReporterID uint                `json:"-"`
	EntityType models.ReportEntity `json:"reported_entity_type" validate:"required,oneof=post comment user"`
	EntityID   uint                `json:"reported_entity_id" validate:"required,gt=0"`
	Reason     string              `json:"reason" validate:"required,notblank,min=10,max=1000"`
}

type ResolveReportInput struct {
	AdminID    uint                `json:"-"`
	ReportID   uint                `json:"-"`
	Status     models.ReportStatus `json:"status" validate:"required,oneof=resolved_action_taken resolved_no_action dismissed"`
	AdminNotes string              `json:"admin_notes" validate:"max=2000"`
}

type ReportPage struct {
	Reports    []*models.Report `json:"reports"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
	TotalCount int64            `json:"totalCount"`
}

func NewModerationService(
	reportRepo repository.ReportRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
) *ModerationService {
	return &ModerationService{
		reportRepo:  reportRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
	}
}

// CreateReport files a report. Users cannot report themselves or their own content,
// and a reporter may report a given entity only once.
func (s *ModerationService) CreateReport(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ownerID, err := s.ownerOf(ctx, in.EntityType, in.EntityID)
	if err != nil {
		return nil, err
	}
	if ownerID == in.ReporterID {
		return nil, models.NewValidationError("You cannot report yourself or your own content")
	}

	report := &models.Report{
		ReporterID:         in.ReporterID,
		ReportedEntityType: in.EntityType,
		ReportedEntityID:   in.EntityID,
		Reason:             strings.TrimSpace(in.Reason),
		Status:             models.ReportPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ownerOf resolves the user behind a reported entity, or a not-found error.
func (s *ModerationService) ownerOf(ctx context.Context, entity models.ReportEntity, id uint) (uint, error) {
	switch entity {
	case models.ReportEntityPost:
		post, err := s.postRepo.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return post.AuthorID, nil
	case models.ReportEntityComment:
		comment, err := s.commentRepo.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return comment.AuthorID, nil
	default:
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return user.ID, nil
	}
}

func (s *ModerationService) ListReports(ctx context.Context, status models.ReportStatus, p Pagination) (*ReportPage, error) {
	switch status {
	case "", models.ReportPending, models.ReportActionTaken, models.ReportNoActionNeeded, models.ReportDismissed:
	default:
		return nil, models.NewFieldValidationError(map[string]string{
			"status": "must be one of: pending, resolved_action_taken, resolved_no_action, dismissed",
		})
	}
	p = p.normalize(defaultReportsPP)
	reports, total, err := s.reportRepo.List(ctx, status, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	return &ReportPage{
		Reports:    reports,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages(total, p.Limit),
		TotalCount: total,
	}, nil
}

func (s *ModerationService) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	return s.reportRepo.GetByID(ctx, id)
}

// ResolveReport closes a pending report. Resolving with action taken removes the reported
// post or comment, or bans the reported user.
func (s *ModerationService) ResolveReport(ctx context.Context, in ResolveReportInput) (*models.Report, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	report, err := s.reportRepo.Resolve(ctx, in.ReportID, in.Status, strings.TrimSpace(in.AdminNotes), in.AdminID)
	if err != nil {
		return nil, err
	}
	if in.Status == models.ReportActionTaken {
		if err := s.enforce(ctx, report); err != nil {
			return nil, err
		}
	}

	slog.Info("report resolved",
		slog.Uint64("report_id", uint64(report.ID)),
		slog.String("status", string(report.Status)),
		slog.String("entity", string(report.ReportedEntityType)),
		slog.Uint64("admin_id", uint64(in.AdminID)),
	)
	return report, nil
}

func (s *ModerationService) enforce(ctx context.Context, report *models.Report) error {
	switch report.ReportedEntityType {
	case models.ReportEntityPost:
		post, err := s.postRepo.GetByID(ctx, report.ReportedEntityID)
		if models.IsCode(err, models.CodeNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.postRepo.Delete(ctx, post); err != nil {
			return err
		}
		cache.Invalidate(ctx, cache.TrendingTagsKey)
		cache.InvalidateUser(ctx, post.AuthorID)
	case models.ReportEntityComment:
		comment, err := s.commentRepo.GetByID(ctx, report.ReportedEntityID)
		if models.IsCode(err, models.CodeNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.commentRepo.Delete(ctx, comment)
	case models.ReportEntityUser:
		return s.SetBanned(ctx, report.ReportedEntityID, true)
	}
	return nil
}

// SetBanned bans or unbans a user account. Admin accounts cannot be banned.
func (s *ModerationService) SetBanned(ctx context.Context, userID uint, banned bool) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if banned && user.IsAdmin() {
		return models.NewForbiddenError("Admin accounts cannot be banned")
	}
	if err := s.userRepo.UpdateFields(ctx, userID, map[string]any{"is_banned": banned}); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, userID)
	slog.Info("user ban updated", slog.Uint64("user_id", uint64(userID)), slog.Bool("banned", banned))
	return nil
}
