// Package workflow applies review lifecycle transitions to a submission.
//
// Each method checks its guard before touching the submission, so a returned error
// always means the submission is unchanged. Persisting the result and delivering
// the described notification are the caller's job.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"formintake/internal/answers"
	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/model"
	"formintake/internal/validator"

	"github.com/google/uuid"
)

type Action string

const (
	ActionSaveProgress Action = "SaveProgress"
	ActionSubmit       Action = "Submit"
	ActionAssign       Action = "AssignForReview"
	ActionApprove      Action = "Approve"
	ActionReturn       Action = "Return"
	ActionReject       Action = "Reject"
	ActionDiscard      Action = "Discard"
)

// Event names the notification a transition triggers.
type Event string

const (
	EventNone      Event = ""
	EventSubmitted Event = "Submitted"
	EventAssigned  Event = "AssignedForReview"
	EventApproved  Event = "Approved"
	EventReturned  Event = "Returned"
	EventRejected  Event = "Rejected"
)

var ErrInvalidTransition = errors.New("invalid transition")

type InvalidTransitionError struct {
	From   model.FormStatus
	Action Action
	Reason string
	// NotOwner marks a guard that failed on identity rather than status.
	NotOwner bool
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a submission in status %s: %s", e.Action, e.From, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() []error {
	if e.NotOwner {
		return []error{ErrInvalidTransition, errorz.ErrForbidden}
	}
	return []error{ErrInvalidTransition}
}

// Effect describes a transition that was applied.
type Effect struct {
	Action     Action
	From       model.FormStatus
	To         model.FormStatus
	Event      Event
	Recipients []string
	Actor      string
	Note       string // review notes or return reason, echoed into the notification
}

type Machine struct {
	// Reviewers receive new-submission notices.
	Reviewers []string
	// AllowReturnFromSubmitted lets a reviewer return a submission nobody has picked up yet.
	AllowReturnFromSubmitted bool
	Now                      func() time.Time
}

func New(reviewers []string, allowReturnFromSubmitted bool) *Machine {
	return &Machine{
		Reviewers:                append([]string{}, reviewers...),
		AllowReturnFromSubmitted: allowReturnFromSubmitted,
		Now:                      time.Now,
	}
}

func (m *Machine) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func invalid(s *model.FormSubmission, a Action, reason string) error {
	return &InvalidTransitionError{From: s.Status, Action: a, Reason: reason}
}

// NewDraft starts a submission for the find-or-create path.
func (m *Machine) NewDraft(templateID uuid.UUID, submittedBy string) *model.FormSubmission {
	now := m.now()
	return &model.FormSubmission{
		TemplateID:  templateID,
		SubmittedBy: submittedBy,
		Status:      model.StatusDraft,
		CurrentPage: 1,
		DataJSON:    []byte("{}"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SaveProgress records the page the submitter is on and merges their answers into the draft.
func (m *Machine) SaveProgress(s *model.FormSubmission, page int, incoming answers.Map) (Effect, error) {
	if s.Status != model.StatusDraft {
		return Effect{}, invalid(s, ActionSaveProgress, "only drafts can be edited")
	}
	if page < 1 {
		return Effect{}, invalid(s, ActionSaveProgress, fmt.Sprintf("page %d is not a valid page", page))
	}

	merged, err := mergeInto(s, incoming)
	if err != nil {
		return Effect{}, err
	}

	s.DataJSON = merged
	s.CurrentPage = page
	s.UpdatedAt = m.now()

	return Effect{Action: ActionSaveProgress, From: model.StatusDraft, To: model.StatusDraft, Actor: s.SubmittedBy}, nil
}

// Submit validates the draft against schema and moves it into the review queue.
// A *validator.FieldValidationError is returned when required answers are missing.
func (m *Machine) Submit(s *model.FormSubmission, schema *formschema.Schema) (Effect, error) {
	if s.Status != model.StatusDraft {
		return Effect{}, invalid(s, ActionSubmit, "only drafts can be submitted")
	}

	current, err := answers.Decode(s.DataJSON)
	if err != nil {
		return Effect{}, fmt.Errorf("%w: %w", validator.ErrMalformedInput, err)
	}
	if err := validator.Check(schema, current); err != nil {
		return Effect{}, err
	}

	now := m.now()
	s.Status = model.StatusSubmitted
	s.IsComplete = true
	s.SubmittedAt = &now
	s.UpdatedAt = now

	return Effect{
		Action:     ActionSubmit,
		From:       model.StatusDraft,
		To:         model.StatusSubmitted,
		Event:      EventSubmitted,
		Recipients: append([]string{}, m.Reviewers...),
		Actor:      s.SubmittedBy,
	}, nil
}

// Assign gives a submitted form to a reviewer.
func (m *Machine) Assign(s *model.FormSubmission, reviewer, actor string) (Effect, error) {
	if s.Status != model.StatusSubmitted {
		return Effect{}, invalid(s, ActionAssign, "only submitted forms can be assigned")
	}
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return Effect{}, invalid(s, ActionAssign, "reviewer is required")
	}

	s.Status = model.StatusUnderReview
	s.IsUnderReview = true
	s.AssignedReviewer = &reviewer
	s.UpdatedAt = m.now()

	return Effect{
		Action:     ActionAssign,
		From:       model.StatusSubmitted,
		To:         model.StatusUnderReview,
		Event:      EventAssigned,
		Recipients: []string{reviewer},
		Actor:      actor,
	}, nil
}

func (m *Machine) Approve(s *model.FormSubmission, reviewer, notes string) (Effect, error) {
	if s.Status != model.StatusUnderReview {
		return Effect{}, invalid(s, ActionApprove, "only forms under review can be approved")
	}

	now := m.now()
	m.closeReview(s, reviewer, now)
	s.Status = model.StatusApproved
	s.ApprovedAt = &now
	s.ReviewNotes = notes

	return m.toSubmitter(s, ActionApprove, model.StatusUnderReview, EventApproved, reviewer, notes), nil
}

// Return sends the form back to its submitter, who must start a new draft to resubmit.
// Notes are optional and kept alongside the reason.
func (m *Machine) Return(s *model.FormSubmission, reviewer, reason, notes string) (Effect, error) {
	from := s.Status
	switch {
	case from == model.StatusUnderReview:
	case from == model.StatusSubmitted && m.AllowReturnFromSubmitted:
	default:
		return Effect{}, invalid(s, ActionReturn, "only forms under review can be returned")
	}

	now := m.now()
	m.closeReview(s, reviewer, now)
	s.Status = model.StatusReturned
	s.ReturnedAt = &now
	s.ReturnReason = reason
	if notes != "" {
		s.ReviewNotes = notes
	}
	s.ReviewAttempts++

	return m.toSubmitter(s, ActionReturn, from, EventReturned, reviewer, reason), nil
}

func (m *Machine) Reject(s *model.FormSubmission, reviewer, notes string) (Effect, error) {
	if s.Status != model.StatusUnderReview {
		return Effect{}, invalid(s, ActionReject, "only forms under review can be rejected")
	}

	now := m.now()
	m.closeReview(s, reviewer, now)
	s.Status = model.StatusRejected
	s.RejectedAt = &now
	s.ReviewNotes = notes

	return m.toSubmitter(s, ActionReject, model.StatusUnderReview, EventRejected, reviewer, notes), nil
}

// Discard authorizes deleting a draft. Only its owner may discard it.
func (m *Machine) Discard(s *model.FormSubmission, requester string) (Effect, error) {
	if s.Status != model.StatusDraft {
		return Effect{}, invalid(s, ActionDiscard, "only drafts can be discarded")
	}
	if requester == "" || requester != s.SubmittedBy {
		return Effect{}, &InvalidTransitionError{From: s.Status, Action: ActionDiscard, Reason: "only the owner can discard a draft", NotOwner: true}
	}
	return Effect{Action: ActionDiscard, From: model.StatusDraft, To: model.StatusDraft, Actor: requester}, nil
}

func (m *Machine) closeReview(s *model.FormSubmission, reviewer string, now time.Time) {
	if reviewer == "" {
		reviewer = "System"
	}
	s.IsUnderReview = false
	s.ReviewedBy = &reviewer
	s.ReviewedAt = &now
	s.UpdatedAt = now
}

func (m *Machine) toSubmitter(s *model.FormSubmission, a Action, from model.FormStatus, ev Event, actor, note string) Effect {
	return Effect{
		Action:     a,
		From:       from,
		To:         s.Status,
		Event:      ev,
		Recipients: []string{s.SubmittedBy},
		Actor:      actor,
		Note:       note,
	}
}

func mergeInto(s *model.FormSubmission, incoming answers.Map) ([]byte, error) {
	existing, err := answers.Decode(s.DataJSON)
	if err != nil {
		// unreadable stored answers are replaced by the incoming set
		existing = answers.Map{}
	}
	out, err := answers.Merge(existing, incoming).Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	return out, nil
}
