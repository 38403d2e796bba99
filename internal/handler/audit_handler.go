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

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequireRole(model.RoleAdmin)) // Protect history logs
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records
// @Summary      Get audit logs
// @Description  Retrieves audit history, optionally for one entity or action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Entity ID"
// @Param        action     query     string  false  "Action, e.g. SUBMIT_FORM"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page[service.AuditLogResponse]}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		EntityID: c.Query("entity_id"),
		Action:   c.Query("action"),
	}, p)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, total, p)))
}
