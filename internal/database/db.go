package database

import (
	"fmt"

	"formintake/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// oneDraftIndex backs the find-or-create draft path: a second concurrent insert of a draft
// for the same template and submitter fails with gorm.ErrDuplicatedKey.
const oneDraftIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_form_submissions_one_draft
ON form_submissions (template_id, submitted_by) WHERE status = 0`

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Config is shared by the postgres connection and the sqlite test databases.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// Migrate creates tables and the partial unique index on drafts.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.FormTemplate{},
		&model.FormSubmission{},
		&model.Notification{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	if err := db.Exec(oneDraftIndex).Error; err != nil {
		return fmt.Errorf("failed to create draft index: %w", err)
	}
	return nil
}
