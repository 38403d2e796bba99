// Package health aggregates component checks behind one HTTP endpoint.
package health

import (
	"net/http"

	"formintake/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Healther interface {
	IsHealthy() bool
}

type HealthChecker struct {
	logger    *logger.Logger
	healthers map[string]Healther
}

func NewHealthChecker(log *logger.Logger) *HealthChecker {
	return &HealthChecker{logger: log, healthers: map[string]Healther{}}
}

func (h *HealthChecker) Register(name string, healther Healther) {
	h.healthers[name] = healther
}

// Handle reports every component and answers 503 if any is down.
func (h *HealthChecker) Handle(c *gin.Context) {
	components := make(map[string]string, len(h.healthers))
	ok := true

	for name, healther := range h.healthers {
		if healther.IsHealthy() {
			components[name] = "OK"
			continue
		}
		ok = false
		components[name] = "DOWN"
		h.logger.Error("health check failed", zap.String("component", name))
	}

	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "components": components})
}

// Func adapts a plain function to Healther.
type Func func() bool

func (f Func) IsHealthy() bool { return f() }
