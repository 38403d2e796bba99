package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"formintake/internal/model"
	"formintake/internal/repository"
	"formintake/internal/workflow"
	"formintake/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers the messages a committed transition calls for.
type Notifier interface {
	Notify(ctx context.Context, effect workflow.Effect, sub *model.FormSubmission, tpl *model.FormTemplate)
}

// Pusher sends a payload to an identity's live connections.
type Pusher interface {
	SendTo(recipient string, payload []byte) bool
}

// EventPublisher forwards workflow events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type NotificationResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	SubmissionID *string `json:"submission_id,omitempty"`
	TemplateID   *string `json:"template_id,omitempty"`
	ActionURL    string  `json:"action_url,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ReadAt       *string `json:"read_at,omitempty"`
}

type UnreadNotifications struct {
	Count int64                  `json:"count"`
	Items []NotificationResponse `json:"items"`
}

type WorkflowEvent struct {
	Event        string   `json:"event"`
	SubmissionID string   `json:"submission_id"`
	TemplateID   string   `json:"template_id"`
	FormName     string   `json:"form_name"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Actor        string   `json:"actor"`
	Recipients   []string `json:"recipients"`
	Note         string   `json:"note,omitempty"`
}

type NotificationService interface {
	Notifier
	ListUnread(ctx context.Context, recipient string) (*UnreadNotifications, error)
	ListRecent(ctx context.Context, recipient string, limit int) ([]NotificationResponse, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipient string) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	pusher    Pusher
	publisher EventPublisher
	logger    *logger.Logger
}

// NewNotificationService persists every notification; pusher and publisher may be nil.
func NewNotificationService(repo repository.NotificationRepository, pusher Pusher, publisher EventPublisher, log *logger.Logger) NotificationService {
	return &notificationService{repo: repo, pusher: pusher, publisher: publisher, logger: log}
}

// Notify never fails the caller. Each sink's error is logged and the others still run.
func (s *notificationService) Notify(ctx context.Context, effect workflow.Effect, sub *model.FormSubmission, tpl *model.FormTemplate) {
	items := BuildNotifications(effect, sub, tpl)
	if len(items) == 0 {
		return
	}

	if err := s.repo.CreateBatch(ctx, items); err != nil {
		s.logger.Error("failed to persist notifications",
			zap.String("submission_id", sub.ID.String()),
			zap.String("event", string(effect.Event)),
			zap.Error(err))
	}

	if s.pusher != nil {
		for _, n := range items {
			payload, err := json.Marshal(toNotificationResponse(n))
			if err != nil {
				continue
			}
			s.pusher.SendTo(n.RecipientID, payload)
		}
	}

	if s.publisher != nil {
		event := WorkflowEvent{
			Event:        string(effect.Event),
			SubmissionID: sub.ID.String(),
			TemplateID:   sub.TemplateID.String(),
			FormName:     formName(tpl),
			From:         effect.From.String(),
			To:           effect.To.String(),
			Actor:        effect.Actor,
			Recipients:   effect.Recipients,
			Note:         effect.Note,
		}
		if err := s.publisher.Publish(ctx, routingKey(effect.Event), event); err != nil {
			s.logger.Warn("failed to publish workflow event",
				zap.String("submission_id", sub.ID.String()),
				zap.String("event", string(effect.Event)),
				zap.Error(err))
		}
	}
}

func routingKey(ev workflow.Event) string {
	return "submission." + strings.ToLower(string(ev))
}

func formName(tpl *model.FormTemplate) string {
	if tpl == nil || tpl.Name == "" {
		return "Untitled form"
	}
	return tpl.Name
}

// BuildNotifications returns one notification per recipient of effect, or none when
// the transition has no event.
func BuildNotifications(effect workflow.Effect, sub *model.FormSubmission, tpl *model.FormTemplate) []model.Notification {
	name := formName(tpl)
	subID := sub.ID
	tplID := sub.TemplateID

	var (
		title, message, url string
		kind                model.NotificationType
	)

	switch effect.Event {
	case workflow.EventSubmitted:
		kind = model.NotificationFormSubmitted
		title = "New Form Submission"
		message = fmt.Sprintf("A new form submission has been received: %s", name)
		url = fmt.Sprintf("/submissions/review/%s", subID)
	case workflow.EventAssigned:
		kind = model.NotificationFormAssigned
		title = fmt.Sprintf("Form Assignment: %s", name)
		message = fmt.Sprintf("You have been assigned to review a form submission from %s. Form: %s. Please review and take appropriate action.", sub.SubmittedBy, name)
		url = fmt.Sprintf("/submissions/review/%s", subID)
	case workflow.EventApproved:
		kind = model.NotificationFormApproved
		title = "Form Approved"
		message = fmt.Sprintf("Your form submission '%s' has been approved.", name)
		url = fmt.Sprintf("/submissions/%s", subID)
	case workflow.EventReturned:
		kind = model.NotificationFormReturned
		title = "Form Returned for Revision"
		message = fmt.Sprintf("Your form submission '%s' has been returned for revision. Reason: %s", name, effect.Note)
		url = fmt.Sprintf("/forms/fill/%s?submissionId=%s", tplID, subID)
	case workflow.EventRejected:
		kind = model.NotificationFormRejected
		title = "Form Rejected"
		message = fmt.Sprintf("Your form submission '%s' has been rejected. Reason: %s", name, effect.Note)
		url = fmt.Sprintf("/submissions/%s", subID)
	default:
		return nil
	}

	out := make([]model.Notification, 0, len(effect.Recipients))
	seen := make(map[string]struct{}, len(effect.Recipients))
	for _, r := range effect.Recipients {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, model.Notification{
			RecipientID:  r,
			Title:        title,
			Message:      message,
			Type:         kind,
			Status:       model.NotificationUnread,
			SubmissionID: &subID,
			TemplateID:   &tplID,
			ActionURL:    url,
		})
	}
	return out
}

func (s *notificationService) ListUnread(ctx context.Context, recipient string) (*UnreadNotifications, error) {
	count, err := s.repo.CountUnread(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	items, err := s.repo.ListForRecipient(ctx, recipient, true, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return &UnreadNotifications{Count: count, Items: toNotificationResponses(items)}, nil
}

func (s *notificationService) ListRecent(ctx context.Context, recipient string, limit int) ([]NotificationResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	items, err := s.repo.ListForRecipient(ctx, recipient, false, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return toNotificationResponses(items), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uuid.UUID, recipient string) error {
	if err := s.repo.MarkRead(ctx, id, recipient, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func toNotificationResponses(items []model.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toNotificationResponse(n))
	}
	return out
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	res := NotificationResponse{
		ID:        n.ID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Status:    string(n.Status),
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.SubmissionID != nil {
		v := n.SubmissionID.String()
		res.SubmissionID = &v
	}
	if n.TemplateID != nil {
		v := n.TemplateID.String()
		res.TemplateID = &v
	}
	if n.ReadAt != nil {
		v := n.ReadAt.Format(time.RFC3339)
		res.ReadAt = &v
	}
	return res
}
