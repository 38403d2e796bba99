package service

import (
	"context"
	"testing"
	"time"

	"formintake/internal/database"
	"formintake/internal/model"
	"formintake/internal/repository"
	"formintake/internal/workflow"
	"formintake/pkg/logger"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const twoPageForm = `{"formName":"Onboarding","pages":[
{"pageNumber":1,"title":"You","fields":[
 {"id":"name","type":"text","label":"Full Name","required":true},
 {"id":"dept","type":"select","label":"Department","required":true,"validation":{"options":["IT","Finance"]}}]},
{"pageNumber":2,"title":"Extras","fields":[
 {"id":"tools","type":"checkbox","label":"Tools","validation":{"options":["Laptop","Phone"]}},
 {"id":"agree","type":"checkbox","label":"I agree","required":true}]}]}`

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, effect workflow.Effect, sub *model.FormSubmission, tpl *model.FormTemplate) {
	m.Called(effect.Event, effect.Recipients)
}

type testEnv struct {
	db          *gorm.DB
	tx          repository.TransactionManager
	templates   repository.TemplateRepository
	submissions repository.SubmissionRepository
	audit       repository.AuditRepository
	notifier    *MockNotifier
	machine     *workflow.Machine
	log         *logger.Logger

	templateSvc   TemplateService
	submissionSvc SubmissionService
	reviewSvc     ReviewService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.Config())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	env := &testEnv{
		db:          db,
		tx:          repository.NewTransactionManager(db),
		templates:   repository.NewTemplateRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		audit:       repository.NewAuditRepository(db),
		notifier:    &MockNotifier{},
		machine:     workflow.New([]string{"admin", "reviewer1"}, true),
		log:         &logger.Logger{Logger: zap.NewNop()},
	}
	env.machine.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	env.templateSvc = NewTemplateService(TemplateServiceDeps{
		Tx:     env.tx,
		Repo:   env.templates,
		Audit:  env.audit,
		Logger: env.log,
	})
	env.rebuild()
	return env
}

// rebuild wires the submission and review services again after a dependency was swapped.
func (e *testEnv) rebuild() {
	deps := SubmissionServiceDeps{
		Tx:        e.tx,
		Repo:      e.submissions,
		Audit:     e.audit,
		Templates: e.templateSvc,
		Machine:   e.machine,
		Notifier:  e.notifier,
		Logger:    e.log,
	}
	e.submissionSvc = NewSubmissionService(deps)
	e.reviewSvc = NewReviewService(deps)
}

func (e *testEnv) createTemplate(t *testing.T) *model.FormTemplate {
	t.Helper()
	tpl := &model.FormTemplate{Name: "Onboarding", StructureJSON: twoPageForm, TotalPages: 2, IsActive: true}
	require.NoError(t, e.templates.Create(context.Background(), tpl))
	return tpl
}

func (e *testEnv) countSubmissions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.FormSubmission{}).Count(&n).Error)
	return n
}

func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.db.Model(&model.AuditLog{}).Order("created_at").Pluck("action", &actions).Error)
	return actions
}
