package deps

import (
	"time"

	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/metrics"
	"github.com/MrSnakeDoc/beacon/internal/reconcile"
	"github.com/MrSnakeDoc/beacon/internal/registry"
)

// Refresher queues a background reconcile pass.
type Refresher interface {
	Trigger() bool
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time      // for testing, defaults to time.Now
	AllowedHosts    []string              // Host headers allowed to call admin routes
	AdminCIDRS      []string              // IPs allowed to call admin routes
	OpsCIDRS        []string              // IPs allowed to access healthz/readyz/infra/metrics
	TrustProxy      bool                  // true if running behind a trusted reverse proxy (e.g., cloudflared)
	AdminRateBurst  int                   // token bucket size for admin routes
	AdminRatePerMin int                   // token refill per client per minute
	Registry        *registry.Registry    // service descriptors
	Reconciler      *reconcile.Reconciler // probes services on GET /api/services
	Refresher       Refresher             // background poller trigger
	Metrics         *metrics.Metrics      // nil disables /metrics
	StoreKind       string                // "mongo" | "redis" | "memory"
	PollInterval    time.Duration         // 0 when background polling is disabled
}

// Now returns d.TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
