package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FormSubmission is one submitter's answers to a template and where it sits in review.
// At most one Draft exists per (TemplateID, SubmittedBy); the index is created in database.Migrate.
type FormSubmission struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"template_id"`
	Template    *FormTemplate  `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	SubmittedBy string         `gorm:"type:varchar(100);not null;index" json:"submitted_by"`
	Status      FormStatus     `gorm:"type:integer;not null;index" json:"status"`
	CurrentPage int            `gorm:"not null" json:"current_page"`
	IsComplete  bool           `gorm:"not null" json:"is_complete"`
	DataJSON    datatypes.JSON `gorm:"column:data_json" json:"data_json"`

	ReviewedBy       *string    `gorm:"type:varchar(100)" json:"reviewed_by"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	ReviewNotes      string     `gorm:"type:varchar(2000)" json:"review_notes"`
	ReturnReason     string     `gorm:"type:varchar(2000)" json:"return_reason"`
	AssignedReviewer *string    `gorm:"type:varchar(100);index" json:"assigned_reviewer"`
	IsUnderReview    bool       `gorm:"not null" json:"is_under_review"`
	ReviewAttempts   int        `gorm:"not null" json:"review_attempts"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	RejectedAt  *time.Time `json:"rejected_at"`
}

func (s *FormSubmission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CurrentPage < 1 {
		s.CurrentPage = 1
	}
	return nil
}
