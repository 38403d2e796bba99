package repository

import (
	"context"

	"formintake/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionFilter struct {
	Status      *model.FormStatus
	SubmittedBy string
	Assignee    string
	UnderReview bool
	// ExcludeDraft hides unsubmitted work from review queues.
	ExcludeDraft bool
	Offset      int
	Limit       int
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *model.FormSubmission) error
	Save(ctx context.Context, s *model.FormSubmission) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FormSubmission, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.FormSubmission, error)
	FindDraft(ctx context.Context, templateID uuid.UUID, submittedBy string) (*model.FormSubmission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]model.FormSubmission, int64, error)
	CountByStatus(ctx context.Context) (map[model.FormStatus]int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, s *model.FormSubmission) error {
	return GetDB(ctx, r.db).Create(s).Error
}

func (r *submissionRepository) Save(ctx context.Context, s *model.FormSubmission) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(s).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.FormSubmission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FormSubmission, error) {
	var s model.FormSubmission
	if err := GetDB(ctx, r.db).Preload("Template").First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *submissionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.FormSubmission, error) {
	var s model.FormSubmission
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *submissionRepository) FindDraft(ctx context.Context, templateID uuid.UUID, submittedBy string) (*model.FormSubmission, error) {
	var s model.FormSubmission
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("template_id = ? AND submitted_by = ? AND status = ?", templateID, submittedBy, model.StatusDraft).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]model.FormSubmission, int64, error) {
	var (
		items []model.FormSubmission
		total int64
	)

	query := GetDB(ctx, r.db).Model(&model.FormSubmission{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SubmittedBy != "" {
		query = query.Where("submitted_by = ?", filter.SubmittedBy)
	}
	if filter.Assignee != "" {
		query = query.Where("assigned_reviewer = ?", filter.Assignee)
	}
	if filter.UnderReview {
		query = query.Where("is_under_review = ?", true)
	}
	if filter.ExcludeDraft {
		query = query.Where("status <> ?", model.StatusDraft)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := query.Preload("Template").Order("updated_at DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		fetch = fetch.Limit(filter.Limit)
	}
	if err := fetch.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *submissionRepository) CountByStatus(ctx context.Context) (map[model.FormStatus]int64, error) {
	var rows []struct {
		Status model.FormStatus
		Count  int64
	}
	err := GetDB(ctx, r.db).Model(&model.FormSubmission{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[model.FormStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
