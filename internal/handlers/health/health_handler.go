// internal/handlers/health/health_handler.go
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency; nil means healthy.
type Check struct {
	Name     string
	Probe    func(ctx context.Context) error
	Optional bool
}

// StateReporter exposes a textual state, e.g. a circuit breaker.
type StateReporter interface {
	State() string
}

type HealthHandler struct {
	version string
	checks  []Check
	states  map[string]StateReporter
	logger  *zap.Logger
}

func NewHealthHandler(version string, logger *zap.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  checks,
		states:  make(map[string]StateReporter),
		logger:  logger,
	}
}

// WithState adds a reported component state to the health payload.
func (h *HealthHandler) WithState(name string, s StateReporter) *HealthHandler {
	h.states[name] = s
	return h
}

// Health handles GET /health. A failing required check turns the response into a 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks)+len(h.states))
	var failed error

	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("component", check.Name), zap.Error(err))
			components[check.Name] = "down"
			if !check.Optional {
				status = "degraded"
				failed = errors.Join(failed, err)
			}
			continue
		}
		components[check.Name] = "up"
	}

	for name, s := range h.states {
		components[name] = s.State()
	}

	data := gin.H{
		"status":     status,
		"version":    h.version,
		"components": components,
		"timestamp":  time.Now().UTC(),
	}

	if failed != nil {
		response.Error(c, http.StatusServiceUnavailable, "service degraded", nil, data)
		return
	}
	response.Success(c, http.StatusOK, "service healthy", data)
}
