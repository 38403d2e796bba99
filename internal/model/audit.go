package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateTemplate   = "CREATE_TEMPLATE"
	ActionGenerateTemplate = "GENERATE_TEMPLATE"

	// Submission workflow actions
	ActionSaveProgress      = "SAVE_PROGRESS"
	ActionSubmitForm        = "SUBMIT_FORM"
	ActionDiscardDraft      = "DISCARD_DRAFT"
	ActionAssignForReview   = "ASSIGN_FOR_REVIEW"
	ActionApproveSubmission = "APPROVE_SUBMISSION"
	ActionReturnSubmission  = "RETURN_SUBMISSION"
	ActionRejectSubmission  = "REJECT_SUBMISSION"
)

const (
	EntityFormTemplate   = "FormTemplate"
	EntityFormSubmission = "FormSubmission"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"type:varchar(100);index" json:"user_id"` // identity string, empty for system actions
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(50);index" json:"entity_type"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
