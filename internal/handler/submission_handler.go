package handler

import (
	"net/http"

	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/service"
	"formintake/pkg/pagination"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	submissionService service.SubmissionService
	auth              *middleware.Auth
}

func NewSubmissionHandler(submissionService service.SubmissionService, auth *middleware.Auth) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService, auth: auth}
}

func (h *SubmissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	submissions := router.Group("/api/submissions")
	submissions.Use(h.auth.RequireRole(model.RoleSubmitter, model.RoleReviewer, model.RoleAdmin))
	{
		submissions.GET("/mine", h.ListMine)
		submissions.GET("/:id", h.Get)
		submissions.DELETE("/:id", h.Discard)
	}
}

// statusQuery reads an optional ?status= filter. It answers 400 itself on a bad value.
func statusQuery(c *gin.Context) (*model.FormStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	st, err := model.ParseFormStatus(raw)
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return &st, true
}

// ListMine lists the caller's own submissions
// @Summary      My submissions
// @Tags         submissions
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Draft, Submitted, UnderReview, Approved, Returned or Rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page[service.SubmissionResponse]}
// @Router       /api/submissions/mine [get]
func (h *SubmissionHandler) ListMine(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	items, total, err := h.submissionService.ListMine(c.Request.Context(), middleware.Identity(c), status, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// Get returns a submission with every page rendered read-only
// @Summary      Get submission
// @Tags         submissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Submission ID"
// @Success      200  {object}  response.Response{data=service.SubmissionDetail}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.submissionService.Get(c.Request.Context(), id, middleware.Identity(c), middleware.Role(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// Discard deletes one of the caller's drafts
// @Summary      Discard draft
// @Tags         submissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Submission ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/submissions/{id} [delete]
func (h *SubmissionHandler) Discard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.submissionService.Discard(c.Request.Context(), id, middleware.Identity(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Draft discarded"}))
}
