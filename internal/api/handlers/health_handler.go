package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/taskboard-be/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HostStatsSource provides the latest host sample, if any.
type HostStatsSource interface {
	Latest() (monitoring.HostStats, bool)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string   `json:"status"`
	Database          string   `json:"database"`
	UptimeSeconds     int64    `json:"uptimeSeconds"`
	MemoryUsedPercent *float64 `json:"memoryUsedPercent,omitempty"`
	CPUPercent        *float64 `json:"cpuPercent,omitempty"`
}

// HealthHandler reports liveness of the API and its database.
type HealthHandler struct {
	db      Pinger
	stats   HostStatsSource
	started time.Time
}

// NewHealthHandler creates a new HealthHandler. stats may be nil.
func NewHealthHandler(db Pinger, stats HostStatsSource) *HealthHandler {
	return &HealthHandler{db: db, stats: stats, started: time.Now()}
}

// Get handles the health check request.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Database:      "up",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database unreachable")
		resp.Status = "degraded"
		resp.Database = "down"
	}

	if h.stats != nil {
		if s, ok := h.stats.Latest(); ok {
			resp.MemoryUsedPercent = &s.MemoryUsedPercent
			resp.CPUPercent = &s.CPUPercent
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
