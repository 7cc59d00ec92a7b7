package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Store         string  `json:"store,omitempty"`
	StartedAt     string  `json:"started_at"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz is a liveness check: it never touches the store.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	startedAt := start.UTC().Format(time.RFC3339)
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Logger, http.StatusOK, healthzResponse{
			Status:        "ok",
			Store:         d.StoreKind,
			StartedAt:     startedAt,
			UptimeSeconds: d.Now().Sub(start).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		})
	}
}
