package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/mw"
)

func init() { Register("admin", registerAdmin) }

// Admin routes share one rate limiter.
func registerAdmin(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(
			mw.AllowOnlyCIDRS(d.AdminCIDRS, d.TrustProxy, d.Logger),
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.AdminRateBurst,
				RefillPerIPPerMin: d.AdminRatePerMin,
				MaxEntries:        10000,
				TrustProxy:        d.TrustProxy,
			}),
		)
		r.Post("/api/services", handlers.ServiceAction(d))
		r.Post("/api/refresh", handlers.Refresh(d))
	})
}
