package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/logger"
)

// Prober answers whether a target serves an HTML page.
type Prober interface {
	Probe(ctx context.Context, address string, port int, path string) bool
}

// StatusWriter persists an observed status.
type StatusWriter interface {
	SetStatus(ctx context.Context, name string, online bool, at time.Time) error
}

// Lister reads the current descriptors.
type Lister interface {
	List(ctx context.Context) ([]domain.Service, error)
}

// Observer receives one call per reconcile pass.
type Observer interface {
	ObserveReconcile(elapsed time.Duration, changed int)
}

// Reconciler probes descriptors concurrently and persists status changes.
type Reconciler struct {
	prober      Prober
	writer      StatusWriter
	logger      logger.Logger
	concurrency int
	now         func() time.Time
	observer    Observer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConcurrency caps in-flight probes. n <= 0 means one goroutine per service.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) { r.concurrency = n }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

func New(p Prober, w StatusWriter, log logger.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		prober: p,
		writer: w,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh probes every non-external service and returns the services in input
// order with fresh IsOnline and LastChecked. External services pass through unchanged.
// A status that differs from the stored one is persisted before Refresh returns;
// a failed write is logged and the fresh value is still returned.
func (r *Reconciler) Refresh(ctx context.Context, services []domain.Service) []domain.Service {
	start := time.Now()
	out := make([]domain.Service, len(services))

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	var changed atomic.Int64
	for i := range services {
		svc := services[i].Clone()
		if !svc.Probeable() {
			out[i] = svc
			continue
		}

		g.Go(func() error {
			online := r.prober.Probe(ctx, svc.Address, svc.Port, svc.Path)
			at := r.now()

			if online != svc.IsOnline {
				changed.Add(1)
				if err := r.writer.SetStatus(ctx, svc.Name, online, at); err != nil {
					r.logger.Warn("failed to persist service status",
						logger.String("name", svc.Name),
						logger.Bool("online", online),
						logger.Error(err))
				} else {
					r.logger.Info("service status changed",
						logger.String("name", svc.Name),
						logger.Bool("online", online))
				}
				svc.IsManualStatus = false
			}

			svc.IsOnline = online
			svc.LastChecked = at
			out[i] = svc
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	if r.observer != nil {
		r.observer.ObserveReconcile(elapsed, int(changed.Load()))
	}
	r.logger.Debug("reconcile pass finished",
		logger.Int("services", len(services)),
		logger.Int("changed", int(changed.Load())),
		logger.Duration("elapsed", elapsed))
	return out
}

// Run lists the services and refreshes them. When the listing is stale
// (store unavailable) the last-known list is returned unprobed with the error.
func (r *Reconciler) Run(ctx context.Context, l Lister) ([]domain.Service, error) {
	services, err := l.List(ctx)
	if err != nil {
		return services, err
	}
	return r.Refresh(ctx, services), nil
}
