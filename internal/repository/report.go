package repository

import (
	"context"
	"time"

	"ynetwork/internal/models"

	"gorm.io/gorm"
)

// ReportRepository defines persistence operations for moderation reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	List(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, int64, error)
	Resolve(ctx context.Context, id uint, status models.ReportStatus, notes string, adminID uint) (*models.Report, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.Status == "" {
		report.Status = models.ReportPending
	}
	if err := r.db.WithContext(ctx).Omit("Reporter").Create(report).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("You have already reported this content")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Preload("Reporter").First(&report, id).Error; err != nil {
		return nil, notFoundOr(err, "Report", id)
	}
	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Report{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var reports []*models.Report
	err := scope().
		Preload("Reporter").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reports, total, nil
}

// Resolve moves a pending report to a final status. A report that is no longer pending is rejected.
func (r *reportRepository) Resolve(ctx context.Context, id uint, status models.ReportStatus, notes string, adminID uint) (*models.Report, error) {
	now := time.Now().UTC()
	fields := map[string]any{
		"status":         status,
		"resolved_by_id": adminID,
		"resolved_at":    now,
	}
	if notes != "" {
		fields["admin_notes"] = notes
	}

	res := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportPending).
		Updates(fields)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}

	report, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, models.NewValidationError("This report has already been resolved with status: " + string(report.Status))
	}
	return report, nil
}
