package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 3 * time.Second

// HealthChecker is a dependency probed by /ready
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks  map[string]HealthChecker
	started time.Time
}

// NewHealthHandler takes the configured dependencies keyed by name
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks, started: time.Now()}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health answers as long as the process serves HTTP
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

// Ready probes all dependencies in parallel under one deadline
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		components = make(map[string]string, len(h.checks))
		ready      = true
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := "healthy"
			if err := check.HealthCheck(ctx); err != nil {
				state = "unhealthy: " + err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			components[name] = state
			if state != "healthy" {
				ready = false
			}
		}()
	}
	wg.Wait()

	resp := ReadyResponse{Status: "ready", Components: components, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	code := http.StatusOK
	if !ready {
		resp.Status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
