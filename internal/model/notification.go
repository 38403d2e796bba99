package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationInfo          NotificationType = "Info"
	NotificationSuccess       NotificationType = "Success"
	NotificationWarning       NotificationType = "Warning"
	NotificationError         NotificationType = "Error"
	NotificationFormSubmitted NotificationType = "FormSubmitted"
	NotificationFormAssigned  NotificationType = "FormAssigned"
	NotificationFormApproved  NotificationType = "FormApproved"
	NotificationFormReturned  NotificationType = "FormReturned"
	NotificationFormRejected  NotificationType = "FormRejected"
)

type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "Unread"
	NotificationRead     NotificationStatus = "Read"
	NotificationArchived NotificationStatus = "Archived"
)

// Notification is an in-app message addressed to one identity.
type Notification struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID  string             `gorm:"type:varchar(100);not null;index" json:"recipient_id"`
	Title        string             `gorm:"type:varchar(200);not null" json:"title"`
	Message      string             `gorm:"type:varchar(1000);not null" json:"message"`
	Type         NotificationType   `gorm:"type:varchar(30);not null" json:"type"`
	Status       NotificationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SubmissionID *uuid.UUID         `gorm:"type:uuid;index" json:"submission_id,omitempty"`
	TemplateID   *uuid.UUID         `gorm:"type:uuid" json:"template_id,omitempty"`
	ActionURL    string             `gorm:"type:varchar(500)" json:"action_url,omitempty"`
	CreatedAt    time.Time          `gorm:"index" json:"created_at"`
	ReadAt       *time.Time         `json:"read_at,omitempty"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = NotificationUnread
	}
	return nil
}
