package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/beacon/internal/logger"
)

const maxBodyBytes = 1 << 20

// Admin actions accepted by POST /api/services.
const (
	ActionAdd             = "add"
	ActionUpdate          = "update"
	ActionDelete          = "delete"
	ActionUpdatePositions = "updatePositions"
)

type actionRequest struct {
	Action         string                  `json:"action"`
	Service        *domain.Service         `json:"service,omitempty"`
	ServiceName    string                  `json:"serviceName,omitempty"`
	UpdatedService *domain.ServicePatch    `json:"updatedService,omitempty"`
	Services       []domain.PositionUpdate `json:"services,omitempty"`
}

type actionResponse struct {
	Success  bool             `json:"success"`
	Services []domain.Service `json:"services"`
}

// ListServices probes every non-external service and returns the sorted list.
func ListServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := d.Reconciler.Run(r.Context(), d.Registry)
		if err != nil {
			d.Logger.Warn("serving last-known services", logger.Error(err))
			w.Header().Set(StaleHeader, "true")
		} else if d.Metrics != nil {
			d.Metrics.SetServices(domain.Tally(services))
		}
		if services == nil {
			services = []domain.Service{}
		}
		writeJSON(w, d.Logger, http.StatusOK, services)
	}
}

// ServiceAction dispatches an admin action and returns the resulting list.
func ServiceAction(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx := r.Context()
		var err error
		switch req.Action {
		case ActionAdd:
			if req.Service == nil {
				writeError(w, d.Logger, http.StatusBadRequest, "service is required")
				return
			}
			_, err = d.Registry.Add(ctx, *req.Service)

		case ActionUpdate:
			if req.ServiceName == "" || req.UpdatedService == nil {
				writeError(w, d.Logger, http.StatusBadRequest, "serviceName and updatedService are required")
				return
			}
			_, err = d.Registry.Update(ctx, req.ServiceName, *req.UpdatedService)

		case ActionDelete:
			if req.ServiceName == "" {
				writeError(w, d.Logger, http.StatusBadRequest, "serviceName is required")
				return
			}
			err = d.Registry.Delete(ctx, req.ServiceName)

		case ActionUpdatePositions:
			if req.Services == nil {
				writeError(w, d.Logger, http.StatusBadRequest, "services must be an array")
				return
			}
			_, err = d.Registry.Reorder(ctx, req.Services)

		default:
			writeError(w, d.Logger, http.StatusBadRequest, "invalid action")
			return
		}

		if err != nil {
			writeDomainError(w, d.Logger, err)
			return
		}

		services, err := d.Registry.List(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrStoreUnavailable) {
				writeDomainError(w, d.Logger, err)
				return
			}
			w.Header().Set(StaleHeader, "true")
		}
		if services == nil {
			services = []domain.Service{}
		}
		writeJSON(w, d.Logger, http.StatusOK, actionResponse{Success: true, Services: services})
	}
}
