package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

// Store persists service descriptors keyed by name.
//
// Implementations return domain.ErrNotFound for missing records and wrap
// every backend failure so that errors.Is(err, domain.ErrStoreUnavailable) holds.
type Store interface {
	// FindAll returns every descriptor in insertion order.
	FindAll(ctx context.Context) ([]domain.Service, error)

	// Get returns the descriptor named name.
	Get(ctx context.Context, name string) (domain.Service, error)

	// Upsert inserts svc, or replaces the record currently keyed by name.
	// When svc.Name differs from name the record is renamed in place; the
	// rename fails with domain.ErrNotFound when name is missing and with
	// domain.ErrDuplicateName when svc.Name belongs to another record.
	Upsert(ctx context.Context, name string, svc domain.Service) error

	// Delete removes the descriptor named name.
	Delete(ctx context.Context, name string) error

	// SetPositions writes the position of each named descriptor.
	// Unknown names are skipped. Returns how many records were updated.
	SetPositions(ctx context.Context, updates []domain.PositionUpdate) (int, error)

	// SetStatus writes an observed status (IsOnline, LastChecked) and
	// clears IsManualStatus.
	SetStatus(ctx context.Context, name string, online bool, at time.Time) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
