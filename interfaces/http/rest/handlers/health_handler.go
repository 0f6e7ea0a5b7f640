package handlers

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"collabgraph-backend/pkg/common"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHealthHandler creates a health handler over the database handle.
func NewHealthHandler(db *sql.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready, checking each dependency.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK
	state := "ready"

	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	common.RespondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}
