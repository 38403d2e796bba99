package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FormTemplate stores a form definition. StructureJSON is kept verbatim as received.
type FormTemplate struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(200);not null" json:"name"`
	Description      string     `gorm:"type:varchar(1000)" json:"description"`
	Category         string     `gorm:"type:varchar(100);index" json:"category"`
	StructureJSON    string     `gorm:"column:structure_json;type:text;not null" json:"structure_json"`
	OriginalFileName string     `gorm:"type:varchar(500)" json:"original_file_name"`
	ObjectKey        string     `gorm:"type:varchar(500)" json:"object_key,omitempty"`
	GeneratedBy      string     `gorm:"type:varchar(100)" json:"generated_by"`
	GeneratedAt      *time.Time `json:"generated_at"`
	TotalPages       int        `gorm:"not null" json:"total_pages"`
	IsActive         bool       `gorm:"not null;index" json:"is_active"`
	CreatedBy        string     `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (t *FormTemplate) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
