package repository

import (
	"context"

	"formintake/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateFilter struct {
	Category   string
	ActiveOnly bool
	Offset     int
	Limit      int
}

type TemplateRepository interface {
	Create(ctx context.Context, t *model.FormTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error)
	List(ctx context.Context, filter TemplateFilter) ([]model.FormTemplate, int64, error)
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, t *model.FormTemplate) error {
	return GetDB(ctx, r.db).Create(t).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error) {
	var t model.FormTemplate
	if err := GetDB(ctx, r.db).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *templateRepository) List(ctx context.Context, filter TemplateFilter) ([]model.FormTemplate, int64, error) {
	var (
		items []model.FormTemplate
		total int64
	)

	query := GetDB(ctx, r.db).Model(&model.FormTemplate{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
