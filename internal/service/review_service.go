package service

import (
	"context"
	"fmt"

	"formintake/internal/model"
	"formintake/internal/repository"
	"formintake/internal/workflow"
	"formintake/pkg/logger"
	"formintake/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type AssignRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
}

type ReviewDecisionRequest struct {
	Notes string `json:"notes"`
}

type ReturnRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

type ReviewStats struct {
	Total        int64            `json:"total"`
	Pending      int64            `json:"pending"`
	ByStatus     map[string]int64 `json:"by_status"`
	ApprovalRate decimal.Decimal  `json:"approval_rate"` // percent of decided submissions that were approved
}

// --- Interface ---

type ReviewService interface {
	Assign(ctx context.Context, id uuid.UUID, reviewer, actor string) (*SubmissionResponse, error)
	Approve(ctx context.Context, id uuid.UUID, reviewer, notes string) (*SubmissionResponse, error)
	Return(ctx context.Context, id uuid.UUID, reviewer, reason, notes string) (*SubmissionResponse, error)
	Reject(ctx context.Context, id uuid.UUID, reviewer, notes string) (*SubmissionResponse, error)
	ListByStatus(ctx context.Context, status *model.FormStatus, p pagination.Params) ([]SubmissionResponse, int64, error)
	MyAssignments(ctx context.Context, reviewer string, p pagination.Params) ([]SubmissionResponse, int64, error)
	Stats(ctx context.Context) (*ReviewStats, error)
}

type reviewService struct {
	tx        repository.TransactionManager
	repo      repository.SubmissionRepository
	audit     repository.AuditRepository
	templates TemplateLoader
	machine   *workflow.Machine
	notifier  Notifier
	logger    *logger.Logger
}

type ReviewServiceDeps = SubmissionServiceDeps

func NewReviewService(d ReviewServiceDeps) ReviewService {
	return &reviewService{
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

// transition locks the row, applies the guarded change and writes the audit entry in one
// transaction. Notification happens only after commit.
func (s *reviewService) transition(ctx context.Context, id uuid.UUID, actor, auditAction string,
	apply func(*model.FormSubmission) (workflow.Effect, error)) (*SubmissionResponse, error) {
	var (
		sub    *model.FormSubmission
		effect workflow.Effect
	)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		effect, err = apply(locked)
		if err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
		sub = locked

		details := map[string]interface{}{
			"from": effect.From.String(),
			"to":   effect.To.String(),
		}
		if effect.Note != "" {
			details["note"] = effect.Note
		}
		if sub.AssignedReviewer != nil {
			details["assigned_reviewer"] = *sub.AssignedReviewer
		}
		return writeAudit(txCtx, s.audit, actor, auditAction, model.EntityFormSubmission, sub.ID.String(), "", details)
	})
	if err != nil {
		return nil, err
	}

	tpl, err := s.templates.Load(ctx, sub.TemplateID)
	if err != nil {
		s.logger.Warn("template missing for notification",
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("submission transitioned",
		zap.String("submission_id", sub.ID.String()),
		zap.String("action", string(effect.Action)),
		zap.String("to", effect.To.String()),
		zap.String("actor", actor))
	s.notifier.Notify(ctx, effect, sub, tpl)

	return toSubmissionResponse(sub, tpl), nil
}

func (s *reviewService) Assign(ctx context.Context, id uuid.UUID, reviewer, actor string) (*SubmissionResponse, error) {
	return s.transition(ctx, id, actor, model.ActionAssignForReview, func(sub *model.FormSubmission) (workflow.Effect, error) {
		return s.machine.Assign(sub, reviewer, actor)
	})
}

func (s *reviewService) Approve(ctx context.Context, id uuid.UUID, reviewer, notes string) (*SubmissionResponse, error) {
	return s.transition(ctx, id, reviewer, model.ActionApproveSubmission, func(sub *model.FormSubmission) (workflow.Effect, error) {
		return s.machine.Approve(sub, reviewer, notes)
	})
}

func (s *reviewService) Return(ctx context.Context, id uuid.UUID, reviewer, reason, notes string) (*SubmissionResponse, error) {
	return s.transition(ctx, id, reviewer, model.ActionReturnSubmission, func(sub *model.FormSubmission) (workflow.Effect, error) {
		return s.machine.Return(sub, reviewer, reason, notes)
	})
}

func (s *reviewService) Reject(ctx context.Context, id uuid.UUID, reviewer, notes string) (*SubmissionResponse, error) {
	return s.transition(ctx, id, reviewer, model.ActionRejectSubmission, func(sub *model.FormSubmission) (workflow.Effect, error) {
		return s.machine.Reject(sub, reviewer, notes)
	})
}

// ListByStatus lists the review queue. A nil status lists everything except drafts.
func (s *reviewService) ListByStatus(ctx context.Context, status *model.FormStatus, p pagination.Params) ([]SubmissionResponse, int64, error) {
	items, total, err := s.repo.List(ctx, repository.SubmissionFilter{
		Status:       status,
		ExcludeDraft: status == nil,
		Offset:       p.Offset,
		Limit:        p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return toSubmissionResponses(items), total, nil
}

func (s *reviewService) MyAssignments(ctx context.Context, reviewer string, p pagination.Params) ([]SubmissionResponse, int64, error) {
	items, total, err := s.repo.List(ctx, repository.SubmissionFilter{
		Assignee:    reviewer,
		UnderReview: true,
		Offset:      p.Offset,
		Limit:       p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assignments: %w", err)
	}
	return toSubmissionResponses(items), total, nil
}

func (s *reviewService) Stats(ctx context.Context) (*ReviewStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	return buildStats(counts), nil
}

// buildStats ignores drafts. The approval rate is approved over all decided submissions.
func buildStats(counts map[model.FormStatus]int64) *ReviewStats {
	stats := &ReviewStats{ByStatus: map[string]int64{}, ApprovalRate: decimal.Zero}
	for st := model.StatusSubmitted; st <= model.StatusRejected; st++ {
		n := counts[st]
		stats.ByStatus[st.String()] = n
		stats.Total += n
	}
	stats.Pending = counts[model.StatusSubmitted] + counts[model.StatusUnderReview]

	decided := counts[model.StatusApproved] + counts[model.StatusReturned] + counts[model.StatusRejected]
	if decided > 0 {
		stats.ApprovalRate = decimal.NewFromInt(counts[model.StatusApproved]).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(decided), 2)
	}
	return stats
}
