package handler

import (
	"net/http"
	"strconv"

	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/service"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	auth                *middleware.Auth
}

func NewNotificationHandler(notificationService service.NotificationService, auth *middleware.Auth) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, auth: auth}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/notifications")
	group.Use(h.auth.RequireRole(model.RoleSubmitter, model.RoleReviewer, model.RoleAdmin))
	{
		group.GET("/unread", h.Unread)
		group.GET("/recent", h.Recent)
		group.PUT("/:id/read", h.MarkRead)
	}
}

// Unread returns the caller's unread count and newest unread items
// @Summary      Unread notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.UnreadNotifications}
// @Router       /api/notifications/unread [get]
func (h *NotificationHandler) Unread(c *gin.Context) {
	res, err := h.notificationService.ListUnread(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Recent returns the caller's latest notifications, read or not
// @Summary      Recent notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Number of items (default 10)"
// @Success      200    {object}  response.Response{data=[]service.NotificationResponse}
// @Router       /api/notifications/recent [get]
func (h *NotificationHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	res, err := h.notificationService.ListRecent(c.Request.Context(), middleware.Identity(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// MarkRead marks one of the caller's notifications as read
// @Summary      Mark notification read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), id, middleware.Identity(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Notification marked as read"}))
}
