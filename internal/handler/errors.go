package handler

import (
	"errors"
	"net/http"

	"formintake/internal/errorz"
	"formintake/internal/formschema"
	"formintake/internal/render"
	"formintake/internal/service"
	"formintake/internal/validator"
	"formintake/internal/workflow"
	"formintake/pkg/logger"
	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeError maps domain errors onto status codes. Unrecognised errors are logged and
// reported without detail.
func writeError(c *gin.Context, err error) {
	var fve *validator.FieldValidationError
	switch {
	case errors.As(err, &fve):
		c.JSON(http.StatusBadRequest, response.Fail(http.StatusBadRequest, "Please fill in all required fields", fve.Errors))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
	case errors.Is(err, errorz.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, errorz.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, formschema.ErrSchemaParse),
		errors.Is(err, formschema.ErrSchemaCheck),
		errors.Is(err, render.ErrPageOutOfRange),
		errors.Is(err, validator.ErrMalformedInput),
		errors.Is(err, errorz.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	default:
		logger.Get().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "An unexpected error occurred"))
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// uuidParam parses a path parameter, answering 400 itself when it is not a uuid.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
