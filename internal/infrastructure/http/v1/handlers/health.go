package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names one dependency. Optional ones degrade the service
// without failing readiness.
type HealthCheck struct {
	Name     string
	Target   Pinger
	Optional bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if check.Target == nil {
			continue
		}
		if err := check.Target.Ping(ctx); err != nil {
			results[check.Name] = "unhealthy: " + err.Error()
			if check.Optional {
				if status == "ok" {
					status = "degraded"
				}
				continue
			}
			status = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": results,
	})
}
