package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	DefaultModel  string            `json:"default_model"`
	Checks        map[string]string `json:"checks"`
}

// ToolChecker reports which external tools can be found.
type ToolChecker interface {
	Available() map[string]bool
}

// ModelState reports the shared model's identity and load state.
type ModelState interface {
	DefaultID() string
	Loaded() bool
}

// HealthDeps are the components the health check reports on.
type HealthDeps struct {
	Tools   ToolChecker
	Models  ModelState
	Backend string // whisper backend name
	Archive string // archive store type, "" if disabled
}

type HealthHandler struct {
	deps      HealthDeps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		deps:      deps,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Media tools: without them no request can succeed
	if h.deps.Tools != nil {
		for tool, ok := range h.deps.Tools.Available() {
			if ok {
				checks[tool] = "ok"
				continue
			}
			checks[tool] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	checks["whisper_backend"] = h.deps.Backend
	defaultModel := ""
	if h.deps.Models != nil {
		defaultModel = h.deps.Models.DefaultID()
		if h.deps.Models.Loaded() {
			checks["default_model"] = "loaded"
		} else {
			checks["default_model"] = "not_loaded"
		}
	}

	if h.deps.Archive != "" {
		checks["archive"] = h.deps.Archive
	} else {
		checks["archive"] = "disabled"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		DefaultModel:  defaultModel,
		Checks:        checks,
	})
}
