// Package handlers implements the nimbuswalk HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/3leaps/nimbuswalk/internal/server/httperr"
)

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthResponse is the body of a healthy /health response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
	StatusDegraded  = "degraded"
)

// CheckTimeout bounds each checker.
const CheckTimeout = 2 * time.Second

// HealthManager runs registered checkers.
type HealthManager struct {
	version  string
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version, checkers: make(map[string]HealthChecker)}
}

// RegisterChecker adds or replaces a named checker.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	m.checkers[name] = c
	m.mu.Unlock()
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := maps.Clone(m.checkers)
	m.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	for _, name := range slices.Sorted(maps.Keys(checkers)) {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		err := checkers[name].CheckHealth(cctx)
		cancel()
		switch {
		case err == nil:
			results[name] = StatusHealthy
		case errors.Is(err, context.DeadlineExceeded):
			results[name] = StatusTimeout
		default:
			results[name] = StatusUnhealthy
		}
	}
	return results
}

func (m *HealthManager) determineOverallStatus(results map[string]string) string {
	status := StatusHealthy
	for _, r := range results {
		switch r {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

// HealthHandler serves GET /health: 200 when healthy or degraded, 503 otherwise.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	results := m.runChecks(r.Context())
	status := m.determineOverallStatus(results)

	if status == StatusUnhealthy {
		httperr.Write(w, http.StatusServiceUnavailable, httperr.CodeServiceUnavailable, "health check failed",
			map[string]any{"checks": results})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Checks:    results,
	})
}

// LivenessHandler serves GET /health/live. It never runs checkers.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
