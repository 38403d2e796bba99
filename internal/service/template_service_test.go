package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/generator"
	"formintake/internal/model"
	"formintake/internal/storage"
	"formintake/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateStructure(ctx context.Context, data []byte, fileName string) *generator.Result {
	args := m.Called(data, fileName)
	return args.Get(0).(*generator.Result)
}

func (m *MockGenerator) GenerateHTML(ctx context.Context, structureJSON string) (string, error) {
	args := m.Called(structureJSON)
	return args.String(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) (*storage.UploadResult, error) {
	args := m.Called(size, objectName, contentType)
	if res, ok := args.Get(0).(*storage.UploadResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, objectName string) error {
	return m.Called(objectName).Error(0)
}

func (m *MockStore) Close() error { return nil }

// mapCache counts reads that reached it.
type mapCache struct {
	items map[uuid.UUID]*model.FormTemplate
	hits  int
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*model.FormTemplate, bool) {
	t, ok := c.items[id]
	if ok {
		c.hits++
	}
	return t, ok
}

func (c *mapCache) Set(_ context.Context, t *model.FormTemplate) { c.items[t.ID] = t }

func (c *mapCache) Delete(_ context.Context, id uuid.UUID) { delete(c.items, id) }

type templateFixture struct {
	env   *testEnv
	svc   TemplateService
	gen   *MockGenerator
	store *MockStore
	cache *mapCache
}

func newTemplateFixture(t *testing.T) *templateFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &templateFixture{
		env:   env,
		gen:   &MockGenerator{},
		store: &MockStore{},
		cache: &mapCache{items: map[uuid.UUID]*model.FormTemplate{}},
	}
	f.svc = NewTemplateService(TemplateServiceDeps{
		Tx:        env.tx,
		Repo:      env.templates,
		Audit:     env.audit,
		Cache:     f.cache,
		Store:     f.store,
		Generator: f.gen,
		MaxUpload: 1024,
		Logger:    env.log,
	})
	return f
}

func TestTemplateCreate(t *testing.T) {
	f := newTemplateFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, CreateTemplateRequest{StructureJSON: twoPageForm, Category: "HR"}, "admin")
	require.NoError(t, err)

	assert.Equal(t, "Onboarding", res.Name)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, twoPageForm, res.StructureJSON)
	assert.True(t, res.IsActive)
	assert.Equal(t, []string{model.ActionCreateTemplate}, f.env.auditActions(t))

	id := uuid.MustParse(res.ID)
	_, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
}

func TestTemplateCreate_RejectsBadStructure(t *testing.T) {
	f := newTemplateFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateTemplateRequest{Name: "Broken", StructureJSON: `{"pages":`}, "admin")
	var parseErr *formschema.SchemaParseError
	assert.True(t, errors.As(err, &parseErr))

	dup := `{"pages":[{"pageNumber":1,"fields":[{"id":"a","type":"text"},{"id":"a","type":"text"}]}]}`
	_, err = f.svc.Create(ctx, CreateTemplateRequest{Name: "Dup", StructureJSON: dup}, "admin")
	assert.ErrorIs(t, err, formschema.ErrSchemaCheck)

	unnamed := `{"pages":[{"pageNumber":1,"fields":[{"id":"a","type":"text"}]}]}`
	_, err = f.svc.Create(ctx, CreateTemplateRequest{StructureJSON: unnamed}, "admin")
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)

	assert.Empty(t, f.env.auditActions(t))
}

func TestTemplateLoad_ReadsThroughCache(t *testing.T) {
	f := newTemplateFixture(t)
	ctx := context.Background()
	tpl := f.env.createTemplate(t)

	first, err := f.svc.Load(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, first.ID)
	assert.Equal(t, 0, f.cache.hits)

	_, err = f.svc.Load(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestTemplateGenerate_FallbackStillCreates(t *testing.T) {
	f := newTemplateFixture(t)
	ctx := context.Background()
	data := []byte("%PDF-1.4 fake")
	fallback := formschema.Fallback("claim.pdf")

	f.store.On("Upload", int64(len(data)), mock.MatchedBy(func(name string) bool {
		return len(name) > 0 && name[len(name)-4:] == ".pdf"
	}), "application/pdf").Return(&storage.UploadResult{ObjectName: "uploads/admin/1.pdf"}, nil)
	f.gen.On("GenerateStructure", data, "claim.pdf").Return(&generator.Result{
		Name:          "claim",
		Description:   "AI-generated form from claim.pdf",
		StructureJSON: formschema.FallbackJSON("claim.pdf"),
		Schema:        fallback,
		Fallback:      true,
		Reason:        "api key not configured",
	})

	res, err := f.svc.Generate(ctx, GenerateTemplateInput{FileName: "claim.pdf", Data: data, Category: "Finance"}, "admin")
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, "api key not configured", res.Reason)
	assert.Equal(t, "claim", res.Template.Name)
	assert.Equal(t, fallback.TotalPages(), res.Template.TotalPages)
	assert.Equal(t, "claim.pdf", res.Template.OriginalFileName)
	assert.NotNil(t, res.Template.GeneratedAt)

	var stored model.FormTemplate
	require.NoError(t, f.env.db.First(&stored, "id = ?", res.Template.ID).Error)
	assert.Equal(t, "uploads/admin/1.pdf", stored.ObjectKey)
	assert.Equal(t, []string{model.ActionGenerateTemplate}, f.env.auditActions(t))
	f.store.AssertExpectations(t)
	f.gen.AssertExpectations(t)
}

func TestTemplateGenerate_StorageFailureIsNotFatal(t *testing.T) {
	f := newTemplateFixture(t)
	data := []byte("image bytes")

	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("bucket gone"))
	f.gen.On("GenerateStructure", data, "form.png").Return(&generator.Result{
		Name:          "form",
		StructureJSON: twoPageForm,
		Schema:        &formschema.Schema{Pages: make([]formschema.Page, 2)},
	})

	res, err := f.svc.Generate(context.Background(), GenerateTemplateInput{FileName: "form.png", Data: data}, "admin")
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, 2, res.Template.TotalPages)
}

func TestTemplateGenerate_RejectsUpload(t *testing.T) {
	f := newTemplateFixture(t)

	_, err := f.svc.Generate(context.Background(), GenerateTemplateInput{FileName: "notes.txt", Data: []byte("x")}, "admin")
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)

	_, err = f.svc.Generate(context.Background(), GenerateTemplateInput{FileName: "big.pdf", Data: make([]byte, 2048)}, "admin")
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)

	f.gen.AssertNotCalled(t, "GenerateStructure", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestTemplateGenerateHTML(t *testing.T) {
	f := newTemplateFixture(t)
	tpl := f.env.createTemplate(t)

	f.gen.On("GenerateHTML", twoPageForm).Return("<form></form>", nil).Once()
	html, err := f.svc.GenerateHTML(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "<form></form>", html)

	f.gen.On("GenerateHTML", twoPageForm).Return("", &generator.ExternalServiceError{Service: "openai"}).Once()
	_, err = f.svc.GenerateHTML(context.Background(), tpl.ID)
	var ext *generator.ExternalServiceError
	assert.True(t, errors.As(err, &ext))
}

func TestTemplateList(t *testing.T) {
	f := newTemplateFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateTemplateRequest{StructureJSON: twoPageForm, Category: "HR"}, "admin")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateTemplateRequest{Name: "Other", StructureJSON: twoPageForm, Category: "IT"}, "admin")
	require.NoError(t, err)

	items, total, err := f.svc.List(ctx, TemplateFilter{Category: "HR"}, pagination.Normalize(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Onboarding", items[0].Name)

	_, total, err = f.svc.List(ctx, TemplateFilter{ActiveOnly: true}, pagination.Normalize(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestTemplateGenerate_PrefersGeneratedFormName(t *testing.T) {
	f := newTemplateFixture(t)
	data := []byte("image bytes")

	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(&storage.UploadResult{ObjectName: "uploads/admin/2.png"}, nil)
	f.gen.On("GenerateStructure", data, "scan_0042.png").Return(&generator.Result{
		Name:          "scan_0042",
		StructureJSON: twoPageForm,
		Schema:        &formschema.Schema{FormName: "Leave Request Form", Pages: make([]formschema.Page, 2)},
	})

	res, err := f.svc.Generate(context.Background(), GenerateTemplateInput{FileName: "scan_0042.png", Data: data}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Leave Request Form", res.Template.Name)

	var stored model.FormTemplate
	require.NoError(t, f.env.db.First(&stored, "id = ?", res.Template.ID).Error)
	assert.Equal(t, "Leave Request Form", stored.Name)
}
