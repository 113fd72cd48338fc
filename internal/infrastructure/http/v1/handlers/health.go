package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"fireblue/pkg/logger"
)

// Pinger is satisfied by *postgres.Pool and *kafka.Publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is one dependency probed by the readiness endpoint.
// An optional check is reported but never makes the service unready.
type HealthCheck struct {
	Name     string
	Probe    Pinger
	Optional bool
}

const readyTimeout = 2 * time.Second

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	version string
	checks  []HealthCheck
}

// NewHealthHandler creates a health handler. Checks with a nil probe are skipped.
func NewHealthHandler(version string, checks ...HealthCheck) *HealthHandler {
	h := &HealthHandler{version: version}
	for _, c := range checks {
		if c.Probe != nil {
			h.checks = append(h.checks, c)
		}
	}
	return h
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready probes every dependency concurrently.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := check.Probe.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				results[check.Name] = "healthy"
				return
			}
			// The cause stays in the logs; probes are unauthenticated.
			logger.Warn(ctx, "readiness check failed", "check", check.Name, "error", err)
			results[check.Name] = "unhealthy"
			if !check.Optional {
				ready = false
			}
		}()
	}
	wg.Wait()

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
}
