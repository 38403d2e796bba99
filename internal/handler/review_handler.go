package handler

import (
	"errors"
	"io"
	"net/http"

	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/service"
	"formintake/pkg/pagination"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviewService service.ReviewService
	auth          *middleware.Auth
}

func NewReviewHandler(reviewService service.ReviewService, auth *middleware.Auth) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, auth: auth}
}

func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	reviews := router.Group("/api/reviews")
	reviews.Use(h.auth.RequireRole(model.RoleReviewer, model.RoleAdmin))
	{
		reviews.GET("", h.List)
		reviews.GET("/assignments", h.MyAssignments)
		reviews.GET("/stats", h.Stats)
		reviews.POST("/:id/assign", h.Assign)
		reviews.POST("/:id/approve", h.Approve)
		reviews.POST("/:id/return", h.Return)
		reviews.POST("/:id/reject", h.Reject)
	}
}

// List returns the review queue
// @Summary      Review queue
// @Description  Without a status filter every non-draft submission is listed.
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Submitted, UnderReview, Approved, Returned or Rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page[service.SubmissionResponse]}
// @Router       /api/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	items, total, err := h.reviewService.ListByStatus(c.Request.Context(), status, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// MyAssignments lists submissions under review by the caller
// @Summary      My assignments
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=pagination.Page[service.SubmissionResponse]}
// @Router       /api/reviews/assignments [get]
func (h *ReviewHandler) MyAssignments(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.reviewService.MyAssignments(c.Request.Context(), middleware.Identity(c), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// Stats returns dashboard counts
// @Summary      Review statistics
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ReviewStats}
// @Router       /api/reviews/stats [get]
func (h *ReviewHandler) Stats(c *gin.Context) {
	stats, err := h.reviewService.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// Assign hands a submitted form to a reviewer
// @Summary      Assign for review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Submission ID"
// @Param        payload  body      service.AssignRequest  true  "Reviewer"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/reviews/{id}/assign [post]
func (h *ReviewHandler) Assign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.reviewService.Assign(c.Request.Context(), id, req.Reviewer, middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// bindOptional accepts an empty body for endpoints whose payload is optional.
func bindOptional(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// Approve closes the review as approved
// @Summary      Approve submission
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true   "Submission ID"
// @Param        payload  body      service.ReviewDecisionRequest  false  "Review notes"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/reviews/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ReviewDecisionRequest
	if !bindOptional(c, &req) {
		return
	}

	res, err := h.reviewService.Approve(c.Request.Context(), id, middleware.Identity(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Return sends the submission back to its submitter
// @Summary      Return submission
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Submission ID"
// @Param        payload  body      service.ReturnRequest  true  "Reason and optional notes"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/reviews/{id}/return [post]
func (h *ReviewHandler) Return(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A reason is required to return a submission")
		return
	}

	res, err := h.reviewService.Return(c.Request.Context(), id, middleware.Identity(c), req.Reason, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Reject closes the review as rejected
// @Summary      Reject submission
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true   "Submission ID"
// @Param        payload  body      service.ReviewDecisionRequest  false  "Review notes"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/reviews/{id}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ReviewDecisionRequest
	if !bindOptional(c, &req) {
		return
	}

	res, err := h.reviewService.Reject(c.Request.Context(), id, middleware.Identity(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
