package handler

import (
	"io"
	"net/http"
	"strconv"

	"formintake/internal/document"
	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/service"
	"formintake/pkg/pagination"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
)

// FormHandler serves templates and the fill-in flow for a single template.
type FormHandler struct {
	templateService   service.TemplateService
	submissionService service.SubmissionService
	auth              *middleware.Auth
	maxUpload         int64
}

func NewFormHandler(templateService service.TemplateService, submissionService service.SubmissionService, auth *middleware.Auth, maxUpload int64) *FormHandler {
	if maxUpload <= 0 {
		maxUpload = document.MaxUploadBytes
	}
	return &FormHandler{
		templateService:   templateService,
		submissionService: submissionService,
		auth:              auth,
		maxUpload:         maxUpload,
	}
}

func (h *FormHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyone := h.auth.RequireRole(model.RoleSubmitter, model.RoleReviewer, model.RoleAdmin)
	admin := h.auth.RequireRole(model.RoleAdmin)

	forms := router.Group("/api/forms")
	{
		forms.GET("", anyone, h.ListTemplates)
		forms.POST("", admin, h.CreateTemplate)
		forms.POST("/generate", admin, h.GenerateTemplate)
		forms.GET("/:id", anyone, h.GetTemplate)
		forms.POST("/:id/html", admin, h.GenerateHTML)
		forms.GET("/:id/pages/:page", anyone, h.RenderPage)
		forms.GET("/:id/progress", anyone, h.Progress)
		forms.POST("/:id/autosave", anyone, h.SaveProgress)
		forms.POST("/:id/submit", anyone, h.Submit)
	}
}

// ListTemplates returns form templates
// @Summary      List form templates
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        category  query     string  false  "Filter by category"
// @Param        active    query     bool    false  "Only active templates (default true)"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=pagination.Page[service.TemplateSummary]}
// @Router       /api/forms [get]
func (h *FormHandler) ListTemplates(c *gin.Context) {
	p := pagination.Parse(c)
	activeOnly, err := strconv.ParseBool(c.DefaultQuery("active", "true"))
	if err != nil {
		badRequest(c, "Invalid active flag")
		return
	}

	items, total, err := h.templateService.List(c.Request.Context(), service.TemplateFilter{
		Category:   c.Query("category"),
		ActiveOnly: activeOnly,
	}, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// GetTemplate returns one template with its structure exactly as stored
// @Summary      Get form template
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  response.Response{data=service.TemplateResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/forms/{id} [get]
func (h *FormHandler) GetTemplate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tpl, err := h.templateService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tpl))
}

// CreateTemplate stores a template from a structure document
// @Summary      Create form template
// @Tags         forms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTemplateRequest  true  "Template"
// @Success      201      {object}  response.Response{data=service.TemplateResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms [post]
func (h *FormHandler) CreateTemplate(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	tpl, err := h.templateService.Create(c.Request.Context(), req, middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tpl))
}

// GenerateTemplate builds a template from an uploaded image or document
// @Summary      Generate form template from upload
// @Description  Accepts .jpg .jpeg .png .gif .pdf .doc .docx up to the configured limit. Falls back to a demo form when generation fails.
// @Tags         forms
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file      formData  file    true   "Source file"
// @Param        category  formData  string  false  "Category"
// @Success      201       {object}  response.Response{data=service.GenerateTemplateResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/forms/generate [post]
func (h *FormHandler) GenerateTemplate(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}
	defer f.Close()

	// one byte past the limit is enough for the size check to reject it
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}

	res, err := h.templateService.Generate(c.Request.Context(), service.GenerateTemplateInput{
		FileName: fh.Filename,
		Data:     data,
		Category: c.PostForm("category"),
	}, middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// GenerateHTML renders a template as a standalone HTML form
// @Summary      Generate HTML for template
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/forms/{id}/html [post]
func (h *FormHandler) GenerateHTML(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	html, err := h.templateService.GenerateHTML(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"html": html}))
}

// RenderPage renders one page pre-filled with the caller's draft answers
// @Summary      Render form page
// @Description  A page that cannot be rendered returns a diagnostic in place of the page.
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Template ID"
// @Param        page  path      int     true  "Page number"
// @Success      200   {object}  response.Response{data=service.PageResult}
// @Router       /api/forms/{id}/pages/{page} [get]
func (h *FormHandler) RenderPage(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		badRequest(c, "Invalid page number")
		return
	}

	res, err := h.submissionService.RenderPage(c.Request.Context(), id, middleware.Identity(c), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Progress reports the caller's position in the form
// @Summary      Form progress
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  response.Response{data=render.Progress}
// @Router       /api/forms/{id}/progress [get]
func (h *FormHandler) Progress(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	progress, err := h.submissionService.Progress(c.Request.Context(), id, middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, progress))
}

// SaveProgress merges answers into the caller's draft
// @Summary      Autosave draft
// @Tags         forms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Template ID"
// @Param        payload  body      service.SaveProgressRequest  true  "Current page and answers"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/{id}/autosave [post]
func (h *FormHandler) SaveProgress(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.submissionService.SaveProgress(c.Request.Context(), id, middleware.Identity(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Submit validates the caller's draft and sends it for review
// @Summary      Submit form
// @Description  Answers are saved before validation, so a 400 with field errors never loses input.
// @Tags         forms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Template ID"
// @Param        payload  body      service.SubmitRequest  true  "Final answers"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      400      {object}  response.Response{details=[]validator.FieldError}
// @Failure      409      {object}  response.Response
// @Router       /api/forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.submissionService.Submit(c.Request.Context(), id, middleware.Identity(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
