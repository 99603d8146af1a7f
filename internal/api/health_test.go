package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeTools map[string]bool

func (f fakeTools) Available() map[string]bool { return f }

type fakeModels struct {
	id     string
	loaded bool
}

func (f fakeModels) DefaultID() string { return f.id }
func (f fakeModels) Loaded() bool      { return f.loaded }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		deps       HealthDeps
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "healthy",
			deps: HealthDeps{
				Tools:   fakeTools{"ffmpeg": true, "ffprobe": true},
				Models:  fakeModels{id: "base", loaded: true},
				Backend: "server",
				Archive: "s3",
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{
				"ffmpeg": "ok", "ffprobe": "ok",
				"whisper_backend": "server", "default_model": "loaded", "archive": "s3",
			},
		},
		{
			name: "missing_ffmpeg",
			deps: HealthDeps{
				Tools:   fakeTools{"ffmpeg": false, "ffprobe": true},
				Models:  fakeModels{id: "base"},
				Backend: "cli",
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{
				"ffmpeg": "missing", "ffprobe": "ok",
				"whisper_backend": "cli", "default_model": "not_loaded", "archive": "disabled",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.deps, "v1.2.3", time.Now().Add(-90*time.Second))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("JSON decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Version != "v1.2.3" {
				t.Errorf("version = %q", resp.Version)
			}
			if resp.UptimeSeconds < 90 {
				t.Errorf("uptime = %d, want >= 90", resp.UptimeSeconds)
			}
			if resp.DefaultModel != "base" {
				t.Errorf("default_model = %q", resp.DefaultModel)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
		})
	}
}
