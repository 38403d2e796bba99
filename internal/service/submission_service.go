package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"formintake/internal/answers"
	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/model"
	"formintake/internal/render"
	"formintake/internal/repository"
	"formintake/internal/workflow"
	"formintake/pkg/logger"
	"formintake/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type SaveProgressRequest struct {
	Page    int         `json:"page" binding:"required,min=1"`
	Answers answers.Map `json:"answers"`
}

type SubmitRequest struct {
	Page    int         `json:"page"`
	Answers answers.Map `json:"answers"`
}

type SubmissionResponse struct {
	ID               string          `json:"id"`
	TemplateID       string          `json:"template_id"`
	FormName         string          `json:"form_name,omitempty"`
	SubmittedBy      string          `json:"submitted_by"`
	Status           string          `json:"status"`
	CurrentPage      int             `json:"current_page"`
	IsComplete       bool            `json:"is_complete"`
	Answers          json.RawMessage `json:"answers"`
	ReviewedBy       *string         `json:"reviewed_by,omitempty"`
	ReviewedAt       *string         `json:"reviewed_at,omitempty"`
	ReviewNotes      string          `json:"review_notes,omitempty"`
	ReturnReason     string          `json:"return_reason,omitempty"`
	AssignedReviewer *string         `json:"assigned_reviewer,omitempty"`
	IsUnderReview    bool            `json:"is_under_review"`
	ReviewAttempts   int             `json:"review_attempts"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
	SubmittedAt      *string         `json:"submitted_at,omitempty"`
	ApprovedAt       *string         `json:"approved_at,omitempty"`
	ReturnedAt       *string         `json:"returned_at,omitempty"`
	RejectedAt       *string         `json:"rejected_at,omitempty"`
}

// SubmissionDetail adds a read-only rendering of every page.
type SubmissionDetail struct {
	SubmissionResponse
	Pages    []render.PageView `json:"pages"`
	Progress render.Progress   `json:"progress"`
}

// PageResult carries either a rendered page or the diagnostic that replaced it.
type PageResult struct {
	SubmissionID *string            `json:"submission_id,omitempty"`
	Page         *render.PageView   `json:"page,omitempty"`
	Progress     *render.Progress   `json:"progress,omitempty"`
	Diagnostic   *render.Diagnostic `json:"diagnostic,omitempty"`
}

type TemplateLoader interface {
	Load(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error)
}

// --- Interface ---

type SubmissionService interface {
	SaveProgress(ctx context.Context, templateID uuid.UUID, identity string, req SaveProgressRequest) (*SubmissionResponse, error)
	Submit(ctx context.Context, templateID uuid.UUID, identity string, req SubmitRequest) (*SubmissionResponse, error)
	Discard(ctx context.Context, id uuid.UUID, identity string) error
	Get(ctx context.Context, id uuid.UUID, identity, role string) (*SubmissionDetail, error)
	ListMine(ctx context.Context, identity string, status *model.FormStatus, p pagination.Params) ([]SubmissionResponse, int64, error)
	RenderPage(ctx context.Context, templateID uuid.UUID, identity string, page int) (*PageResult, error)
	Progress(ctx context.Context, templateID uuid.UUID, identity string) (*render.Progress, error)
}

type submissionService struct {
	tx        repository.TransactionManager
	repo      repository.SubmissionRepository
	audit     repository.AuditRepository
	templates TemplateLoader
	machine   *workflow.Machine
	notifier  Notifier
	logger    *logger.Logger
}

type SubmissionServiceDeps struct {
	Tx        repository.TransactionManager
	Repo      repository.SubmissionRepository
	Audit     repository.AuditRepository
	Templates TemplateLoader
	Machine   *workflow.Machine
	Notifier  Notifier
	Logger    *logger.Logger
}

func NewSubmissionService(d SubmissionServiceDeps) SubmissionService {
	return &submissionService{
		tx:        d.Tx,
		repo:      d.Repo,
		audit:     d.Audit,
		templates: d.Templates,
		machine:   d.Machine,
		notifier:  d.Notifier,
		logger:    d.Logger,
	}
}

// --- Implementation ---

func (s *submissionService) schemaFor(ctx context.Context, templateID uuid.UUID) (*model.FormTemplate, *formschema.Schema, error) {
	tpl, err := s.templates.Load(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	schema, err := formschema.Parse(tpl.StructureJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("template %s has an unreadable structure: %w", templateID, err)
	}
	return tpl, schema, nil
}

// SaveProgress finds or creates the caller's draft for the template and merges answers into it.
// Concurrent first saves collide on the draft index; the loser retries and updates the winner's row.
func (s *submissionService) SaveProgress(ctx context.Context, templateID uuid.UUID, identity string, req SaveProgressRequest) (*SubmissionResponse, error) {
	tpl, schema, err := s.schemaFor(ctx, templateID)
	if err != nil {
		return nil, err
	}
	sub, err := s.saveDraft(ctx, tpl, schema, identity, req.Page, req.Answers)
	if err != nil {
		return nil, err
	}
	return toSubmissionResponse(sub, tpl), nil
}

func (s *submissionService) saveDraft(ctx context.Context, tpl *model.FormTemplate, schema *formschema.Schema, identity string, page int, incoming answers.Map) (*model.FormSubmission, error) {
	if page > schema.TotalPages() {
		return nil, fmt.Errorf("%w: %w", errorz.ErrInvalidInput, &render.PageOutOfRangeError{PageNumber: page, TotalPages: schema.TotalPages()})
	}

	var sub *model.FormSubmission
	attempt := func() error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			draft, err := s.repo.FindDraft(txCtx, tpl.ID, identity)
			created := false
			switch {
			case errors.Is(err, errorz.ErrNotFound):
				draft = s.machine.NewDraft(tpl.ID, identity)
				created = true
			case err != nil:
				return fmt.Errorf("failed to look up draft: %w", err)
			}

			if _, err := s.machine.SaveProgress(draft, page, incoming); err != nil {
				return err
			}

			if created {
				err = s.repo.Create(txCtx, draft)
			} else {
				err = s.repo.Save(txCtx, draft)
			}
			if err != nil {
				return err
			}

			sub = draft
			return writeAudit(txCtx, s.audit, identity, model.ActionSaveProgress, model.EntityFormSubmission,
				draft.ID.String(), tpl.Name, map[string]interface{}{"page": page})
		})
	}

	err := attempt()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.logger.Debug("draft created concurrently, retrying save",
			zap.String("template_id", tpl.ID.String()),
			zap.String("identity", identity))
		err = attempt()
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Submit stores the answers first so nothing typed is lost if validation then fails.
func (s *submissionService) Submit(ctx context.Context, templateID uuid.UUID, identity string, req SubmitRequest) (*SubmissionResponse, error) {
	tpl, schema, err := s.schemaFor(ctx, templateID)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 || page > schema.TotalPages() {
		page = schema.TotalPages()
	}
	draft, err := s.saveDraft(ctx, tpl, schema, identity, page, req.Answers)
	if err != nil {
		return nil, err
	}

	var (
		sub    *model.FormSubmission
		effect workflow.Effect
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, draft.ID)
		if err != nil {
			return err
		}
		effect, err = s.machine.Submit(locked, schema)
		if err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, locked); err != nil {
			return fmt.Errorf("failed to submit form: %w", err)
		}
		sub = locked
		return writeAudit(txCtx, s.audit, identity, model.ActionSubmitForm, model.EntityFormSubmission,
			locked.ID.String(), tpl.Name, map[string]interface{}{"status": locked.Status.String()})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("form submitted",
		zap.String("submission_id", sub.ID.String()),
		zap.String("template_id", tpl.ID.String()),
		zap.String("identity", identity))
	s.notifier.Notify(ctx, effect, sub, tpl)

	return toSubmissionResponse(sub, tpl), nil
}

func (s *submissionService) Discard(ctx context.Context, id uuid.UUID, identity string) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if _, err := s.machine.Discard(sub, identity); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, sub.ID); err != nil {
			return fmt.Errorf("failed to discard draft: %w", err)
		}
		return writeAudit(txCtx, s.audit, identity, model.ActionDiscardDraft, model.EntityFormSubmission,
			sub.ID.String(), "", map[string]interface{}{"template_id": sub.TemplateID.String()})
	})
}

// Get lets submitters see only their own submissions; reviewers and admins see any.
func (s *submissionService) Get(ctx context.Context, id uuid.UUID, identity, role string) (*SubmissionDetail, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != model.RoleReviewer && role != model.RoleAdmin && sub.SubmittedBy != identity {
		return nil, fmt.Errorf("submission %s: %w", id, errorz.ErrForbidden)
	}

	tpl := sub.Template
	if tpl == nil {
		if tpl, err = s.templates.Load(ctx, sub.TemplateID); err != nil {
			return nil, err
		}
	}

	detail := &SubmissionDetail{SubmissionResponse: *toSubmissionResponse(sub, tpl), Pages: []render.PageView{}}

	schema, err := formschema.Parse(tpl.StructureJSON)
	if err != nil {
		s.logger.Warn("stored structure unreadable", zap.String("template_id", tpl.ID.String()), zap.Error(err))
		return detail, nil
	}
	ans, err := answers.Decode(sub.DataJSON)
	if err != nil {
		ans = answers.Map{}
	}
	detail.Pages = render.RenderAll(schema, ans)
	if sub.IsComplete {
		detail.Progress = render.CompletedProgress(schema)
	} else {
		detail.Progress = render.ComputeProgress(schema, sub.CurrentPage)
	}
	return detail, nil
}

func (s *submissionService) ListMine(ctx context.Context, identity string, status *model.FormStatus, p pagination.Params) ([]SubmissionResponse, int64, error) {
	items, total, err := s.repo.List(ctx, repository.SubmissionFilter{
		Status:      status,
		SubmittedBy: identity,
		Offset:      p.Offset,
		Limit:       p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return toSubmissionResponses(items), total, nil
}

// RenderPage renders one page of the caller's draft. A page that cannot be rendered
// yields a diagnostic rather than an error.
func (s *submissionService) RenderPage(ctx context.Context, templateID uuid.UUID, identity string, page int) (*PageResult, error) {
	tpl, err := s.templates.Load(ctx, templateID)
	if err != nil {
		return nil, err
	}

	res := &PageResult{}
	answerJSON := "{}"
	draft, err := s.repo.FindDraft(ctx, templateID, identity)
	switch {
	case err == nil:
		id := draft.ID.String()
		res.SubmissionID = &id
		answerJSON = string(draft.DataJSON)
	case !errors.Is(err, errorz.ErrNotFound):
		return nil, fmt.Errorf("failed to look up draft: %w", err)
	}

	view, diag := render.RenderPageSafe(tpl.ID.String(), tpl.StructureJSON, page, answerJSON)
	if diag != nil {
		s.logger.Error("failed to render form page",
			zap.String("template_id", tpl.ID.String()),
			zap.Int("page", page),
			zap.String("error", diag.Message))
		res.Diagnostic = diag
		return res, nil
	}

	res.Page = view
	if schema, err := formschema.Parse(tpl.StructureJSON); err == nil {
		progress := render.ComputeProgress(schema, page)
		res.Progress = &progress
	}
	return res, nil
}

func (s *submissionService) Progress(ctx context.Context, templateID uuid.UUID, identity string) (*render.Progress, error) {
	_, schema, err := s.schemaFor(ctx, templateID)
	if err != nil {
		return nil, err
	}

	current := 1
	draft, err := s.repo.FindDraft(ctx, templateID, identity)
	switch {
	case err == nil:
		current = draft.CurrentPage
	case !errors.Is(err, errorz.ErrNotFound):
		return nil, fmt.Errorf("failed to look up draft: %w", err)
	}

	progress := render.ComputeProgress(schema, current)
	return &progress, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func toSubmissionResponses(items []model.FormSubmission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(items))
	for i := range items {
		out = append(out, *toSubmissionResponse(&items[i], items[i].Template))
	}
	return out
}

func toSubmissionResponse(s *model.FormSubmission, tpl *model.FormTemplate) *SubmissionResponse {
	data := json.RawMessage(s.DataJSON)
	if !json.Valid(data) {
		data = json.RawMessage("{}")
	}
	res := &SubmissionResponse{
		ID:               s.ID.String(),
		TemplateID:       s.TemplateID.String(),
		SubmittedBy:      s.SubmittedBy,
		Status:           s.Status.String(),
		CurrentPage:      s.CurrentPage,
		IsComplete:       s.IsComplete,
		Answers:          data,
		ReviewedBy:       s.ReviewedBy,
		ReviewedAt:       formatTime(s.ReviewedAt),
		ReviewNotes:      s.ReviewNotes,
		ReturnReason:     s.ReturnReason,
		AssignedReviewer: s.AssignedReviewer,
		IsUnderReview:    s.IsUnderReview,
		ReviewAttempts:   s.ReviewAttempts,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        s.UpdatedAt.Format(time.RFC3339),
		SubmittedAt:      formatTime(s.SubmittedAt),
		ApprovedAt:       formatTime(s.ApprovedAt),
		ReturnedAt:       formatTime(s.ReturnedAt),
		RejectedAt:       formatTime(s.RejectedAt),
	}
	if tpl != nil {
		res.FormName = tpl.Name
	}
	return res
}
