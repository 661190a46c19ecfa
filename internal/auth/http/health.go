package http

import (
	"net/http"
	"time"

	"github.com/moviestream/auth/internal/auth/cache"
	"github.com/moviestream/auth/internal/auth/store"
	"github.com/moviestream/auth/pkg/httpx"
)

// HealthResponse reports service liveness or readiness.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// LivezHandler always answers 200 while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler answers 200 only when both backing stores respond.
func ReadyzHandler(startTime time.Time, version string, st store.Store, sessions cache.SessionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok", "cache": "ok"}
		status := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := sessions.Ping(r.Context()); err != nil {
			checks["cache"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}

		httpx.WriteJSON(w, status, HealthResponse{
			Status:  state,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
