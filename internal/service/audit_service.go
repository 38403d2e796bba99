package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"formintake/internal/model"
	"formintake/internal/repository"
	"formintake/pkg/pagination"
)

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

type AuditFilter struct {
	EntityID string
	Action   string
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter AuditFilter, p pagination.Params) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter, p pagination.Params) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		EntityID: filter.EntityID,
		Action:   filter.Action,
		Offset:   p.Offset,
		Limit:    p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userID := l.UserID
		if userID == "" {
			userID = "System"
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    json.RawMessage(l.Details),
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}
	return res, total, nil
}

// writeAudit records an action inside the caller's transaction when ctx carries one.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor, action, entityType, entityID, entityName string, details map[string]interface{}) error {
	var raw []byte
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		raw = b
	}

	entry := &model.AuditLog{
		UserID:     actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    raw,
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
