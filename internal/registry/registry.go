package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/store"
)

// Observer is notified when a store call fails as unavailable.
type Observer interface {
	StoreUnavailable(op string)
}

// Registry is the ordered collection of service descriptors.
// It validates and enforces name uniqueness on top of a store.Store.
type Registry struct {
	store    store.Store
	logger   logger.Logger
	now      func() time.Time
	observer Observer

	// writeMu serialises lookup-then-write sequences so name checks hold.
	writeMu sync.Mutex

	mu        sync.RWMutex
	lastKnown []domain.Service
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func New(s store.Store, log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:  s,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every descriptor sorted by position.
//
// When the store cannot be read, List returns the last successfully read
// list together with the error (which matches domain.ErrStoreUnavailable).
func (r *Registry) List(ctx context.Context) ([]domain.Service, error) {
	services, err := r.store.FindAll(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = domain.Unavailable("list services", err)
		}
		r.unavailable("list", err)
		stale := r.snapshot()
		r.logger.Warn("store unavailable, serving last-known services",
			logger.Int("count", len(stale)),
			logger.Error(err))
		return stale, err
	}

	domain.SortByPosition(services)
	if len(services) == 0 {
		r.logger.Debug("no services configured")
	}
	r.remember(services)
	return services, nil
}

// Add validates and persists a new descriptor.
// A new descriptor starts online with a manual status, stamped with the current time.
func (r *Registry) Add(ctx context.Context, svc domain.Service) (domain.Service, error) {
	if err := svc.Validate(); err != nil {
		return domain.Service{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.ensureFree(ctx, svc.Name); err != nil {
		return domain.Service{}, err
	}

	svc = svc.Clone()
	svc.IsOnline = true
	svc.IsManualStatus = true
	svc.LastChecked = r.now()

	if err := r.store.Upsert(ctx, svc.Name, svc); err != nil {
		r.unavailable("add", err)
		return domain.Service{}, fmt.Errorf("add %s: %w", svc.Name, err)
	}

	r.logger.Info("service added",
		logger.String("name", svc.Name),
		logger.Bool("external", svc.IsExternal))
	return svc, nil
}

// Update merges patch into the descriptor named name and refreshes LastChecked.
func (r *Registry) Update(ctx context.Context, name string, patch domain.ServicePatch) (domain.Service, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Service{}, fmt.Errorf("update %s: %w", name, domain.ErrNotFound)
		}
		r.unavailable("update", err)
		return domain.Service{}, fmt.Errorf("update %s: %w", name, err)
	}

	if patch.Renames(name) {
		if err := r.ensureFree(ctx, *patch.Name); err != nil {
			return domain.Service{}, err
		}
	}

	updated := patch.Apply(current)
	updated.LastChecked = r.now()
	if err := updated.Validate(); err != nil {
		return domain.Service{}, err
	}

	if err := r.store.Upsert(ctx, name, updated); err != nil {
		r.unavailable("update", err)
		return domain.Service{}, fmt.Errorf("update %s: %w", name, err)
	}

	fields := []logger.Field{logger.String("name", name)}
	if updated.Name != name {
		fields = append(fields, logger.String("renamed_to", updated.Name))
	}
	r.logger.Info("service updated", fields...)
	return updated, nil
}

// Delete removes the descriptor named name.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Delete(ctx, name); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.unavailable("delete", err)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	r.logger.Info("service deleted", logger.String("name", name))
	return nil
}

// Reorder applies positions to existing descriptors. Unknown names are ignored
// and descriptors not mentioned keep their position. Returns how many were applied.
func (r *Registry) Reorder(ctx context.Context, updates []domain.PositionUpdate) (int, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	applied, err := r.store.SetPositions(ctx, updates)
	if err != nil {
		r.unavailable("reorder", err)
		return applied, fmt.Errorf("reorder: %w", err)
	}
	if skipped := len(updates) - applied; skipped > 0 {
		r.logger.Debug("reorder ignored unknown services", logger.Int("skipped", skipped))
	}
	r.logger.Info("services reordered", logger.Int("applied", applied))
	return applied, nil
}

// SetStatus records a probed status: IsOnline and LastChecked change and the
// status is no longer manual.
func (r *Registry) SetStatus(ctx context.Context, name string, online bool, at time.Time) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.SetStatus(ctx, name, online, at); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.unavailable("set_status", err)
		}
		return fmt.Errorf("set status %s: %w", name, err)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// ensureFree fails with ErrDuplicateName when name is already taken.
func (r *Registry) ensureFree(ctx context.Context, name string) error {
	_, err := r.store.Get(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%s: %w", name, domain.ErrDuplicateName)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		r.unavailable("lookup", err)
		return fmt.Errorf("lookup %s: %w", name, err)
	}
}

func (r *Registry) unavailable(op string, err error) {
	if r.observer != nil && errors.Is(err, domain.ErrStoreUnavailable) {
		r.observer.StoreUnavailable(op)
	}
}

func (r *Registry) remember(services []domain.Service) {
	cp := make([]domain.Service, 0, len(services))
	for _, s := range services {
		cp = append(cp, s.Clone())
	}
	r.mu.Lock()
	r.lastKnown = cp
	r.mu.Unlock()
}

func (r *Registry) snapshot() []domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Service, 0, len(r.lastKnown))
	for _, s := range r.lastKnown {
		out = append(out, s.Clone())
	}
	return out
}
