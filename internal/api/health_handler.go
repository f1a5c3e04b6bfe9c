package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/redact"
)

// healthTimeout bounds every health check.
const healthTimeout = 2 * time.Second

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler running the named checks.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// Health handles GET /health requests. Any failing check turns the
// response into 503 with per-check results.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			log.Warn("health check failed", slog.String("check", name), slog.String("error", redact.Error(err)))
			resp.Status = "degraded"
			resp.Checks[name] = "failing"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, resp)
}
