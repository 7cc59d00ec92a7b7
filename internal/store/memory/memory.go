package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

// Store is an in-memory, insertion-ordered store.
// Used by tests and by BEACON_STORE=memory.
type Store struct {
	mu       sync.RWMutex
	services []domain.Service

	// fail, when set, is returned (wrapped as unavailable) by every call.
	failMu sync.RWMutex
	fail   error
}

// New creates a store pre-filled with services (copied).
func New(services ...domain.Service) *Store {
	s := &Store{services: make([]domain.Service, 0, len(services))}
	for _, svc := range services {
		s.services = append(s.services, svc.Clone())
	}
	return s
}

// SetFailure makes every subsequent call fail with err. nil restores the store.
func (s *Store) SetFailure(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail = err
}

func (s *Store) failure(op string) error {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	if s.fail != nil {
		return domain.Unavailable(op, s.fail)
	}
	return nil
}

func (s *Store) FindAll(_ context.Context) ([]domain.Service, error) {
	if err := s.failure("find services"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc.Clone())
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, name string) (domain.Service, error) {
	if err := s.failure("get service"); err != nil {
		return domain.Service{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := domain.IndexByName(s.services, name)
	if i < 0 {
		return domain.Service{}, domain.ErrNotFound
	}
	return s.services[i].Clone(), nil
}

func (s *Store) Upsert(_ context.Context, name string, svc domain.Service) error {
	if err := s.failure("upsert service"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := domain.IndexByName(s.services, name)
	if svc.Name != name {
		if i < 0 {
			return domain.ErrNotFound
		}
		if domain.IndexByName(s.services, svc.Name) >= 0 {
			return fmt.Errorf("upsert %s: %w", svc.Name, domain.ErrDuplicateName)
		}
	}
	if i >= 0 {
		s.services[i] = svc.Clone()
		return nil
	}
	s.services = append(s.services, svc.Clone())
	return nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	if err := s.failure("delete service"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := domain.IndexByName(s.services, name)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.services = append(s.services[:i], s.services[i+1:]...)
	return nil
}

func (s *Store) SetPositions(_ context.Context, updates []domain.PositionUpdate) (int, error) {
	if err := s.failure("set positions"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, u := range updates {
		if u.Position == nil {
			continue
		}
		i := domain.IndexByName(s.services, u.Name)
		if i < 0 {
			continue
		}
		pos := *u.Position
		s.services[i].Position = &pos
		applied++
	}
	return applied, nil
}

func (s *Store) SetStatus(_ context.Context, name string, online bool, at time.Time) error {
	if err := s.failure("set status"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := domain.IndexByName(s.services, name)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.services[i].IsOnline = online
	s.services[i].LastChecked = at
	s.services[i].IsManualStatus = false
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return s.failure("ping")
}
