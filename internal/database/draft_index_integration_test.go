//go:build integration

package database_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"formintake/internal/database"
	"formintake/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// setupPostgres uses TEST_DB_DSN when set, otherwise starts a throwaway container.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		return connect(t, dsn)
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image: "postgres:15",
		Env: map[string]string{
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_USER":     "test",
			"POSTGRES_DB":       "formintake",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return connect(t, fmt.Sprintf("postgres://test:test@%s:%s/formintake?sslmode=disable", host, port.Port()))
}

func connect(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedTemplate(t *testing.T, db *gorm.DB) *model.FormTemplate {
	t.Helper()
	tpl := &model.FormTemplate{
		Name:          "Onboarding " + uuid.NewString()[:8],
		StructureJSON: `{"pages":[{"pageNumber":1,"title":"One","fields":[]}]}`,
		TotalPages:    1,
		IsActive:      true,
	}
	require.NoError(t, db.Create(tpl).Error)
	return tpl
}

func TestMigrate_SecondDraftIsDuplicate(t *testing.T) {
	db := setupPostgres(t)
	tpl := seedTemplate(t, db)

	first := &model.FormSubmission{TemplateID: tpl.ID, SubmittedBy: "alice", Status: model.StatusDraft, CurrentPage: 1}
	require.NoError(t, db.Create(first).Error)

	second := &model.FormSubmission{TemplateID: tpl.ID, SubmittedBy: "alice", Status: model.StatusDraft, CurrentPage: 1}
	err := db.Create(second).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestMigrate_DraftAllowedBesideSubmitted(t *testing.T) {
	db := setupPostgres(t)
	tpl := seedTemplate(t, db)

	submitted := &model.FormSubmission{TemplateID: tpl.ID, SubmittedBy: "bob", Status: model.StatusSubmitted, CurrentPage: 1, IsComplete: true}
	require.NoError(t, db.Create(submitted).Error)

	draft := &model.FormSubmission{TemplateID: tpl.ID, SubmittedBy: "bob", Status: model.StatusDraft, CurrentPage: 1}
	assert.NoError(t, db.Create(draft).Error)

	other := &model.FormSubmission{TemplateID: tpl.ID, SubmittedBy: "carol", Status: model.StatusDraft, CurrentPage: 1}
	assert.NoError(t, db.Create(other).Error)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupPostgres(t)
	assert.NoError(t, database.Migrate(db))
}
