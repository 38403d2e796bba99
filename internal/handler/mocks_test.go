package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/render"
	"formintake/internal/service"
	"formintake/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) SaveProgress(ctx context.Context, templateID uuid.UUID, identity string, req service.SaveProgressRequest) (*service.SubmissionResponse, error) {
	args := m.Called(templateID, identity, req)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockSubmissionService) Submit(ctx context.Context, templateID uuid.UUID, identity string, req service.SubmitRequest) (*service.SubmissionResponse, error) {
	args := m.Called(templateID, identity, req)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockSubmissionService) Discard(ctx context.Context, id uuid.UUID, identity string) error {
	return m.Called(id, identity).Error(0)
}

func (m *MockSubmissionService) Get(ctx context.Context, id uuid.UUID, identity, role string) (*service.SubmissionDetail, error) {
	args := m.Called(id, identity, role)
	res, _ := args.Get(0).(*service.SubmissionDetail)
	return res, args.Error(1)
}

func (m *MockSubmissionService) ListMine(ctx context.Context, identity string, status *model.FormStatus, p pagination.Params) ([]service.SubmissionResponse, int64, error) {
	args := m.Called(identity, status, p)
	res, _ := args.Get(0).([]service.SubmissionResponse)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *MockSubmissionService) RenderPage(ctx context.Context, templateID uuid.UUID, identity string, page int) (*service.PageResult, error) {
	args := m.Called(templateID, identity, page)
	res, _ := args.Get(0).(*service.PageResult)
	return res, args.Error(1)
}

func (m *MockSubmissionService) Progress(ctx context.Context, templateID uuid.UUID, identity string) (*render.Progress, error) {
	args := m.Called(templateID, identity)
	res, _ := args.Get(0).(*render.Progress)
	return res, args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Assign(ctx context.Context, id uuid.UUID, reviewer, actor string) (*service.SubmissionResponse, error) {
	args := m.Called(id, reviewer, actor)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockReviewService) Approve(ctx context.Context, id uuid.UUID, reviewer, notes string) (*service.SubmissionResponse, error) {
	args := m.Called(id, reviewer, notes)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockReviewService) Return(ctx context.Context, id uuid.UUID, reviewer, reason, notes string) (*service.SubmissionResponse, error) {
	args := m.Called(id, reviewer, reason, notes)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockReviewService) Reject(ctx context.Context, id uuid.UUID, reviewer, notes string) (*service.SubmissionResponse, error) {
	args := m.Called(id, reviewer, notes)
	res, _ := args.Get(0).(*service.SubmissionResponse)
	return res, args.Error(1)
}

func (m *MockReviewService) ListByStatus(ctx context.Context, status *model.FormStatus, p pagination.Params) ([]service.SubmissionResponse, int64, error) {
	args := m.Called(status, p)
	res, _ := args.Get(0).([]service.SubmissionResponse)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *MockReviewService) MyAssignments(ctx context.Context, reviewer string, p pagination.Params) ([]service.SubmissionResponse, int64, error) {
	args := m.Called(reviewer, p)
	res, _ := args.Get(0).([]service.SubmissionResponse)
	return res, args.Get(1).(int64), args.Error(2)
}

func (m *MockReviewService) Stats(ctx context.Context) (*service.ReviewStats, error) {
	args := m.Called()
	res, _ := args.Get(0).(*service.ReviewStats)
	return res, args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, req service.CreateUserRequest) (*service.UserResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*service.UserResponse)
	return res, args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, req service.LoginUserRequest) (*service.TokenResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*service.TokenResponse)
	return res, args.Error(1)
}

func (m *MockUserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	return m.Called(username, email, password).Error(0)
}

func (m *MockUserService) ListReviewers(ctx context.Context) ([]service.UserResponse, error) {
	args := m.Called()
	res, _ := args.Get(0).([]service.UserResponse)
	return res, args.Error(1)
}

type registrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func newRouter(handlers ...registrar) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, h := range handlers {
		h.RegisterRoutes(r.Group(""))
	}
	return r
}

func tokenFor(t *testing.T, auth *middleware.Auth, identity, role string) string {
	t.Helper()
	tok, err := auth.IssueToken(identity, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
