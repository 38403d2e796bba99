package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formintake/internal/cache"
	"formintake/internal/document"
	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/generator"
	"formintake/internal/model"
	"formintake/internal/repository"
	"formintake/internal/storage"
	"formintake/pkg/logger"
	"formintake/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateTemplateRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	StructureJSON string `json:"structure_json" binding:"required"`
}

type GenerateTemplateInput struct {
	FileName string
	Data     []byte
	Category string
}

type TemplateFilter struct {
	Category   string
	ActiveOnly bool
}

type TemplateSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	TotalPages  int    `json:"total_pages"`
	IsActive    bool   `json:"is_active"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
}

// TemplateResponse returns StructureJSON exactly as stored.
type TemplateResponse struct {
	TemplateSummary
	StructureJSON    string  `json:"structure_json"`
	OriginalFileName string  `json:"original_file_name,omitempty"`
	GeneratedBy      string  `json:"generated_by,omitempty"`
	GeneratedAt      *string `json:"generated_at,omitempty"`
}

type GenerateTemplateResponse struct {
	Template *TemplateResponse `json:"template"`
	Fallback bool              `json:"fallback"`
	Reason   string            `json:"reason,omitempty"`
}

// StructureGenerator is implemented by *generator.Generator.
type StructureGenerator interface {
	GenerateStructure(ctx context.Context, data []byte, fileName string) *generator.Result
	GenerateHTML(ctx context.Context, structureJSON string) (string, error)
}

// --- Interface ---

type TemplateService interface {
	Create(ctx context.Context, req CreateTemplateRequest, actor string) (*TemplateResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*TemplateResponse, error)
	List(ctx context.Context, filter TemplateFilter, p pagination.Params) ([]TemplateSummary, int64, error)
	Generate(ctx context.Context, in GenerateTemplateInput, actor string) (*GenerateTemplateResponse, error)
	GenerateHTML(ctx context.Context, id uuid.UUID) (string, error)
	// Load returns the template row, reading through the cache.
	Load(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error)
}

type templateService struct {
	tx        repository.TransactionManager
	repo      repository.TemplateRepository
	audit     repository.AuditRepository
	cache     cache.TemplateCache
	store     storage.ObjectStore
	generator StructureGenerator
	maxUpload int64
	logger    *logger.Logger
}

type TemplateServiceDeps struct {
	Tx        repository.TransactionManager
	Repo      repository.TemplateRepository
	Audit     repository.AuditRepository
	Cache     cache.TemplateCache
	Store     storage.ObjectStore
	Generator StructureGenerator
	MaxUpload int64
	Logger    *logger.Logger
}

func NewTemplateService(d TemplateServiceDeps) TemplateService {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Store == nil {
		d.Store = storage.Nop{}
	}
	return &templateService{
		tx:        d.Tx,
		repo:      d.Repo,
		audit:     d.Audit,
		cache:     d.Cache,
		store:     d.Store,
		generator: d.Generator,
		maxUpload: d.MaxUpload,
		logger:    d.Logger,
	}
}

// --- Implementation ---

func (s *templateService) Create(ctx context.Context, req CreateTemplateRequest, actor string) (*TemplateResponse, error) {
	schema, err := formschema.Parse(req.StructureJSON)
	if err != nil {
		return nil, err
	}
	if err := schema.Check(); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = schema.FormName
	}
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", errorz.ErrInvalidInput)
	}
	description := req.Description
	if description == "" {
		description = schema.Description
	}

	tpl := &model.FormTemplate{
		Name:          name,
		Description:   description,
		Category:      req.Category,
		StructureJSON: req.StructureJSON,
		TotalPages:    schema.TotalPages(),
		IsActive:      true,
		CreatedBy:     actor,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, tpl); err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateTemplate, model.EntityFormTemplate,
			tpl.ID.String(), tpl.Name, map[string]interface{}{"total_pages": tpl.TotalPages})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, tpl)
	return toTemplateResponse(tpl), nil
}

func (s *templateService) Load(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error) {
	if tpl, ok := s.cache.Get(ctx, id); ok {
		return tpl, nil
	}
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return nil, fmt.Errorf("template %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	s.cache.Set(ctx, tpl)
	return tpl, nil
}

func (s *templateService) Get(ctx context.Context, id uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

func (s *templateService) List(ctx context.Context, filter TemplateFilter, p pagination.Params) ([]TemplateSummary, int64, error) {
	items, total, err := s.repo.List(ctx, repository.TemplateFilter{
		Category:   filter.Category,
		ActiveOnly: filter.ActiveOnly,
		Offset:     p.Offset,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}

	out := make([]TemplateSummary, 0, len(items))
	for i := range items {
		out = append(out, toTemplateSummary(&items[i]))
	}
	return out, total, nil
}

// Generate always produces a template unless the upload itself is rejected.
func (s *templateService) Generate(ctx context.Context, in GenerateTemplateInput, actor string) (*GenerateTemplateResponse, error) {
	if err := document.CheckUpload(in.FileName, int64(len(in.Data)), s.maxUpload); err != nil {
		return nil, fmt.Errorf("%w: %w", errorz.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	objectName := storage.GenerateObjectName(actor, in.FileName, now)
	var objectKey string
	if res, err := s.store.Upload(ctx, bytes.NewReader(in.Data), int64(len(in.Data)), objectName, document.ContentType(in.FileName)); err != nil {
		s.logger.Warn("failed to store original upload",
			zap.String("file", in.FileName),
			zap.Error(err))
	} else {
		objectKey = res.ObjectName
	}

	result := s.generator.GenerateStructure(ctx, in.Data, in.FileName)

	name := result.Name
	if result.Schema != nil && strings.TrimSpace(result.Schema.FormName) != "" {
		name = strings.TrimSpace(result.Schema.FormName)
	}

	tpl := &model.FormTemplate{
		Name:             name,
		Description:      result.Description,
		Category:         in.Category,
		StructureJSON:    result.StructureJSON,
		OriginalFileName: in.FileName,
		ObjectKey:        objectKey,
		GeneratedBy:      actor,
		GeneratedAt:      &now,
		TotalPages:       result.Schema.TotalPages(),
		IsActive:         true,
		CreatedBy:        actor,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, tpl); err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionGenerateTemplate, model.EntityFormTemplate,
			tpl.ID.String(), tpl.Name, map[string]interface{}{
				"file":     in.FileName,
				"fallback": result.Fallback,
			})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("template generated",
		zap.String("template_id", tpl.ID.String()),
		zap.String("file", in.FileName),
		zap.Bool("fallback", result.Fallback))

	s.cache.Set(ctx, tpl)
	return &GenerateTemplateResponse{
		Template: toTemplateResponse(tpl),
		Fallback: result.Fallback,
		Reason:   result.Reason,
	}, nil
}

func (s *templateService) GenerateHTML(ctx context.Context, id uuid.UUID) (string, error) {
	tpl, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}
	html, err := s.generator.GenerateHTML(ctx, tpl.StructureJSON)
	if err != nil {
		return "", fmt.Errorf("failed to generate html: %w", err)
	}
	return html, nil
}

func toTemplateSummary(t *model.FormTemplate) TemplateSummary {
	return TemplateSummary{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		TotalPages:  t.TotalPages,
		IsActive:    t.IsActive,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

func toTemplateResponse(t *model.FormTemplate) *TemplateResponse {
	res := &TemplateResponse{
		TemplateSummary:  toTemplateSummary(t),
		StructureJSON:    t.StructureJSON,
		OriginalFileName: t.OriginalFileName,
		GeneratedBy:      t.GeneratedBy,
	}
	if t.GeneratedAt != nil {
		v := t.GeneratedAt.Format(time.RFC3339)
		res.GeneratedAt = &v
	}
	return res
}
