package rest

import (
	"context"
	"net/http"
	"time"
)

// pinger defines the minimal interface for dependency health checks.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db      pinger
	cache   pinger
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// WithCache adds the tree cache to the checked components. The cache is
// optional: a failing cache degrades /health but never fails /ready.
func (h *HealthHandler) WithCache(cache pinger) *HealthHandler {
	h.cache = cache
	return h
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. Pings DB: 200 if OK, 503 if not.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "down",
			Timestamp: time.Now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Health is the full health check. Pings every component with latency
// measurement and includes version. The database decides the HTTP status; a
// failing cache reports "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := make(map[string]CompStatus)
	overallStatus := "ok"

	dbStatus := check(ctx, h.db)
	components["database"] = dbStatus
	if dbStatus.Status != "ok" {
		overallStatus = "down"
	}

	if h.cache != nil {
		cacheStatus := check(ctx, h.cache)
		components["cache"] = cacheStatus
		if cacheStatus.Status != "ok" && overallStatus == "ok" {
			overallStatus = "degraded"
		}
	}

	status := http.StatusOK
	if overallStatus == "down" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}

func check(ctx context.Context, p pinger) CompStatus {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return CompStatus{Status: "down"}
	}
	return CompStatus{Status: "ok", Latency: time.Since(start).String()}
}
