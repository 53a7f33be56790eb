package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storefront/internal/auth"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
	Gate    *auth.GateStats   `json:"gate,omitempty"`
}

// Pinger is a dependency the health endpoint probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	version string
	// Required dependencies; a failure marks the service unhealthy.
	critical map[string]Pinger
	// Optional dependencies; a failure is reported but keeps 200.
	optional map[string]Pinger
	gate     *auth.Gate
}

func NewHealthController(version string, gate *auth.Gate) *HealthController {
	return &HealthController{
		version:  version,
		critical: make(map[string]Pinger),
		optional: make(map[string]Pinger),
		gate:     gate,
	}
}

// Require registers a dependency that must be reachable.
func (h *HealthController) Require(name string, p Pinger) *HealthController {
	if p != nil {
		h.critical[name] = p
	}
	return h
}

// Observe registers a dependency whose failure is reported as degraded.
func (h *HealthController) Observe(name string, p Pinger) *HealthController {
	if p != nil {
		h.optional[name] = p
	}
	return h
}

func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if len(h.critical) == 0 {
		checks["database"] = "not configured"
	}
	for name, p := range h.critical {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			status = "unhealthy"
			continue
		}
		checks[name] = "ok"
	}
	for name, p := range h.optional {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}
	if h.gate != nil {
		stats := h.gate.Stats()
		health.Gate = &stats
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

func (h *HealthController) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
