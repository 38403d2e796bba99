package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"formintake/internal/answers"
	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/render"
	"formintake/internal/service"
	"formintake/internal/validator"
	"formintake/internal/workflow"
	"formintake/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    json.RawMessage `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"field validation", &validator.FieldValidationError{Errors: []validator.FieldError{{FieldID: "a"}}}, http.StatusBadRequest},
		{"schema parse", &formschema.SchemaParseError{Reason: "malformed json"}, http.StatusBadRequest},
		{"schema check", fmt.Errorf("%w: dup", formschema.ErrSchemaCheck), http.StatusBadRequest},
		{"page range", fmt.Errorf("%w: %w", errorz.ErrInvalidInput, &render.PageOutOfRangeError{PageNumber: 4, TotalPages: 2}), http.StatusBadRequest},
		{"malformed answers", fmt.Errorf("%w: bad", validator.ErrMalformedInput), http.StatusBadRequest},
		{"transition", &workflow.InvalidTransitionError{From: model.StatusApproved, Action: workflow.ActionApprove}, http.StatusConflict},
		{"not owner", &workflow.InvalidTransitionError{Action: workflow.ActionDiscard, NotOwner: true}, http.StatusForbidden},
		{"forbidden", fmt.Errorf("submission x: %w", errorz.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("template x: %w", errorz.ErrNotFound), http.StatusNotFound},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWriteError_HidesUnexpectedDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, errors.New("dial tcp 10.0.0.5:5432: refused"))
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestFormRoutesRequireToken(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	r := newRouter(NewFormHandler(nil, &MockSubmissionService{}, auth, 0))

	w := do(r, http.MethodPost, "/api/forms/"+uuid.NewString()+"/autosave", "", `{"page":1}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// creating templates is admin only
	tok := tokenFor(t, auth, "alice", model.RoleSubmitter)
	w = do(r, http.MethodPost, "/api/forms", tok, `{"structure_json":"{}"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSaveProgressHandler(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	subs := &MockSubmissionService{}
	r := newRouter(NewFormHandler(nil, subs, auth, 0))
	tok := tokenFor(t, auth, "alice", model.RoleSubmitter)
	tplID := uuid.New()

	subs.On("SaveProgress", tplID, "alice", service.SaveProgressRequest{
		Page:    2,
		Answers: answers.Map{"name": answers.Scalar("Alice"), "tools": answers.List("Laptop")},
	}).Return(&service.SubmissionResponse{ID: "s1", Status: "Draft", CurrentPage: 2}, nil).Once()

	w := do(r, http.MethodPost, "/api/forms/"+tplID.String()+"/autosave", tok,
		`{"page":2,"answers":{"name":"Alice","tools":["Laptop"]}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.SubmissionResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, "s1", res.ID)
	subs.AssertExpectations(t)

	w = do(r, http.MethodPost, "/api/forms/"+tplID.String()+"/autosave", tok, `{"page":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/forms/not-a-uuid/autosave", tok, `{"page":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitHandler_ReportsFieldErrors(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	subs := &MockSubmissionService{}
	r := newRouter(NewFormHandler(nil, subs, auth, 0))
	tok := tokenFor(t, auth, "alice", model.RoleSubmitter)
	tplID := uuid.New()

	subs.On("Submit", tplID, "alice", mock.Anything).Return(nil, &validator.FieldValidationError{
		Errors: []validator.FieldError{{FieldID: "dept", Label: "Department", Page: 1, Message: "Department is required"}},
	})

	w := do(r, http.MethodPost, "/api/forms/"+tplID.String()+"/submit", tok, `{"answers":{"name":"Alice"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var details []validator.FieldError
	require.NoError(t, json.Unmarshal(decode(t, w).Details, &details))
	require.Len(t, details, 1)
	assert.Equal(t, "dept", details[0].FieldID)
	assert.Equal(t, 1, details[0].Page)
}

func TestRenderPageHandler_Diagnostic(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	subs := &MockSubmissionService{}
	r := newRouter(NewFormHandler(nil, subs, auth, 0))
	tok := tokenFor(t, auth, "alice", model.RoleSubmitter)
	tplID := uuid.New()

	subs.On("RenderPage", tplID, "alice", 7).Return(&service.PageResult{
		Diagnostic: &render.Diagnostic{TemplateID: tplID.String(), PageNumber: 7, Message: "page 7 not found"},
	}, nil)

	w := do(r, http.MethodGet, "/api/forms/"+tplID.String()+"/pages/7", tok, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res service.PageResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Nil(t, res.Page)
	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, 7, res.Diagnostic.PageNumber)

	w = do(r, http.MethodGet, "/api/forms/"+tplID.String()+"/pages/two", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmissionHandler(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	subs := &MockSubmissionService{}
	r := newRouter(NewSubmissionHandler(subs, auth))
	tok := tokenFor(t, auth, "bob", model.RoleSubmitter)
	id := uuid.New()

	subs.On("Get", id, "bob", model.RoleSubmitter).Return(nil, fmt.Errorf("submission: %w", errorz.ErrForbidden))
	w := do(r, http.MethodGet, "/api/submissions/"+id.String(), tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	subs.On("Discard", id, "bob").Return(&workflow.InvalidTransitionError{Action: workflow.ActionDiscard, NotOwner: true})
	w = do(r, http.MethodDelete, "/api/submissions/"+id.String(), tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	draft := model.StatusDraft
	subs.On("ListMine", "bob", &draft, pagination.Normalize(1, 20)).
		Return([]service.SubmissionResponse{{ID: "s1"}}, int64(1), nil)
	w = do(r, http.MethodGet, "/api/submissions/mine?status=draft", tok, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page pagination.Page[service.SubmissionResponse]
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.EqualValues(t, 1, page.Total)

	w = do(r, http.MethodGet, "/api/submissions/mine?status=pending", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewHandler(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	reviews := &MockReviewService{}
	r := newRouter(NewReviewHandler(reviews, auth))
	rev := tokenFor(t, auth, "reviewer1", model.RoleReviewer)
	id := uuid.New()

	w := do(r, http.MethodGet, "/api/reviews", tokenFor(t, auth, "alice", model.RoleSubmitter), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	reviews.On("Approve", id, "reviewer1", "").Return(&service.SubmissionResponse{ID: id.String(), Status: "Approved"}, nil).Once()
	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/approve", rev, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reviews.On("Approve", id, "reviewer1", "again").Return(nil, &workflow.InvalidTransitionError{
		From: model.StatusApproved, Action: workflow.ActionApprove, Reason: "only forms under review can be approved",
	}).Once()
	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/approve", rev, `{"notes":"again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/return", rev, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reviews.On("Return", id, "reviewer1", "missing receipt", "").Return(&service.SubmissionResponse{Status: "Returned"}, nil).Once()
	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/return", rev, `{"reason":"missing receipt"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	reviews.On("Return", id, "reviewer1", "missing receipt", "hotel receipt").
		Return(&service.SubmissionResponse{Status: "Returned", ReviewNotes: "hotel receipt"}, nil).Once()
	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/return", rev, `{"reason":"missing receipt","notes":"hotel receipt"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"review_notes":"hotel receipt"`)

	reviews.On("Assign", id, "reviewer2", "reviewer1").Return(&service.SubmissionResponse{Status: "UnderReview"}, nil)
	w = do(r, http.MethodPost, "/api/reviews/"+id.String()+"/assign", rev, `{"reviewer":"reviewer2"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	reviews.On("ListByStatus", (*model.FormStatus)(nil), pagination.Normalize(1, 20)).
		Return([]service.SubmissionResponse{}, int64(0), nil)
	w = do(r, http.MethodGet, "/api/reviews", rev, "")
	assert.Equal(t, http.StatusOK, w.Code)

	reviews.AssertExpectations(t)
}

func TestLoginSetsCookie(t *testing.T) {
	auth := middleware.NewAuth(testSecret, false)
	users := &MockUserService{}
	r := newRouter(NewAuthHandler(users, auth, 0))

	users.On("Login", service.LoginUserRequest{Email: "alice@example.com", Password: "pw"}).
		Return(&service.TokenResponse{Token: "tok", Username: "alice", Role: model.RoleSubmitter}, nil)
	users.On("Login", mock.Anything).Return(nil, service.ErrInvalidCredentials)

	w := do(r, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var found bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "access_token" {
			found = true
			assert.Equal(t, "tok", ck.Value)
			assert.True(t, ck.HttpOnly)
		}
	}
	assert.True(t, found)

	w = do(r, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/auth/me", tokenFor(t, auth, "alice", model.RoleSubmitter), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice","role":"submitter"}`, string(decode(t, w).Data))
}
