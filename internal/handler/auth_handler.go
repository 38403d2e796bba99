package handler

import (
	"net/http"
	"time"

	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/service"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService service.UserService
	auth        *middleware.Auth
	ttl         time.Duration
}

func NewAuthHandler(userService service.UserService, auth *middleware.Auth, ttl time.Duration) *AuthHandler {
	return &AuthHandler{userService: userService, auth: auth, ttl: ttl}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", h.auth.RequireRole(model.RoleSubmitter, model.RoleReviewer, model.RoleAdmin), h.Me)
	}

	users := router.Group("/api/users")
	{
		users.POST("", h.auth.RequireRole(model.RoleAdmin), h.CreateUser)
		users.GET("/reviewers", h.auth.RequireRole(model.RoleReviewer, model.RoleAdmin), h.ListReviewers)
	}
}

// Login handles POST /api/auth/login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	tokenRes, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.auth.SetTokenCookie(c, tokenRes.Token, h.ttl)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Me returns the identity and role carried by the caller's token
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"username": middleware.Identity(c),
		"role":     middleware.Role(c),
	}))
}

// CreateUser handles POST /api/users
// @Summary      Create a new user
// @Description  Creates a submitter, reviewer or admin account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/users [post]
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListReviewers lists accounts that may be assigned submissions
// @Summary      List reviewers
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Router       /api/users/reviewers [get]
func (h *AuthHandler) ListReviewers(c *gin.Context) {
	users, err := h.userService.ListReviewers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}
