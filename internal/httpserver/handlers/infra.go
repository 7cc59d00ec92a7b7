package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Services *int   `json:"services,omitempty"`
	Online   *int   `json:"online,omitempty"`
	Offline  *int   `json:"offline,omitempty"`
	External *int   `json:"external,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Error    string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the store, registry and poller state without probing.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":    checkStore(r.Context(), d),
			"registry": checkRegistry(r.Context(), d),
			"poller":   pollerStatus(d),
		}

		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Store down = critical, the dashboard only has its last-known list
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}

	// Nothing configured yet
	if reg, exists := components["registry"]; exists && reg.Services != nil && *reg.Services == 0 {
		return "empty"
	}

	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Registry.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreKind,
			Impact: "serving-last-known-list",
			Error:  "unreachable",
		}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}

func checkRegistry(ctx context.Context, d deps.Deps) componentStatus {
	services, err := d.Registry.List(ctx)
	total := len(services)
	online, offline, external := domain.Tally(services)
	st := componentStatus{
		OK:       err == nil,
		Services: &total,
		Online:   &online,
		Offline:  &offline,
		External: &external,
	}
	if err != nil {
		st.Mode = "stale"
	}
	return st
}

func pollerStatus(d deps.Deps) componentStatus {
	if d.PollInterval <= 0 {
		return componentStatus{OK: true, Mode: "on-demand"}
	}
	return componentStatus{OK: true, Mode: "every " + d.PollInterval.String()}
}
