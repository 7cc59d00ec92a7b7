// Package storetest holds the behaviour every store.Store must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func intPtr(v int) *int { return &v }

func names(services []domain.Service) []string {
	out := make([]string, 0, len(services))
	for _, s := range services {
		out = append(out, s.Name)
	}
	return out
}

func equalNames(t *testing.T, got []domain.Service, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("names = %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("names = %v, want %v", g, want)
		}
	}
}

func mustUpsert(t *testing.T, s store.Store, svc domain.Service) {
	t.Helper()
	if err := s.Upsert(context.Background(), svc.Name, svc); err != nil {
		t.Fatalf("Upsert(%s) error = %v", svc.Name, err)
	}
}

// Run exercises the store contract against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		got, err := s.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("FindAll() len = %d, want 0", len(got))
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("insertion order", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []string{"c", "a", "b"} {
			mustUpsert(t, s, domain.Service{Name: n, Address: "10.0.0.1", Port: 80})
		}
		got, err := s.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		equalNames(t, got, "c", "a", "b")
	})

	t.Run("get roundtrip", func(t *testing.T) {
		s := newStore(t)
		checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		want := domain.Service{
			Name:           "grafana",
			Address:        "10.0.0.5",
			Port:           3000,
			Path:           "/login",
			LocalAddress:   "192.168.1.5",
			IsOnline:       true,
			IsManualStatus: true,
			LastChecked:    checked,
			Position:       intPtr(2),
		}
		mustUpsert(t, s, want)

		got, err := s.Get(ctx, "grafana")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Address != want.Address || got.Port != want.Port || got.Path != want.Path ||
			got.LocalAddress != want.LocalAddress || got.IsOnline != want.IsOnline ||
			got.IsManualStatus != want.IsManualStatus || !got.LastChecked.Equal(checked) {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
		if got.Position == nil || *got.Position != 2 {
			t.Errorf("Get().Position = %v, want 2", got.Position)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("upsert replaces in place", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1"})
		mustUpsert(t, s, domain.Service{Name: "b", Address: "10.0.0.2"})

		if err := s.Upsert(ctx, "a", domain.Service{Name: "a", Address: "10.0.0.9", Port: 81}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		got, _ := s.FindAll(ctx)
		equalNames(t, got, "a", "b")
		if got[0].Address != "10.0.0.9" || got[0].Port != 81 {
			t.Errorf("Upsert() did not replace the record: %+v", got[0])
		}
	})

	t.Run("upsert renames", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1"})
		mustUpsert(t, s, domain.Service{Name: "b", Address: "10.0.0.2"})

		if err := s.Upsert(ctx, "a", domain.Service{Name: "z", Address: "10.0.0.1"}); err != nil {
			t.Fatalf("Upsert(rename) error = %v", err)
		}
		if _, err := s.Get(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("old name still resolvable: %v", err)
		}
		got, _ := s.FindAll(ctx)
		equalNames(t, got, "z", "b")
	})

	t.Run("upsert rename onto taken name", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1"})
		mustUpsert(t, s, domain.Service{Name: "b", Address: "10.0.0.2"})

		err := s.Upsert(ctx, "a", domain.Service{Name: "b", Address: "10.0.0.1"})
		if !errors.Is(err, domain.ErrDuplicateName) {
			t.Fatalf("Upsert(rename onto b) error = %v, want ErrDuplicateName", err)
		}
		got, _ := s.FindAll(ctx)
		equalNames(t, got, "a", "b")
		if got[1].Address != "10.0.0.2" {
			t.Errorf("b was overwritten: %+v", got[1])
		}
	})

	t.Run("upsert rename of missing", func(t *testing.T) {
		s := newStore(t)
		err := s.Upsert(ctx, "gone", domain.Service{Name: "z", Address: "10.0.0.1"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Upsert(rename missing) error = %v, want ErrNotFound", err)
		}
		got, _ := s.FindAll(ctx)
		equalNames(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1"})
		mustUpsert(t, s, domain.Service{Name: "b", Address: "10.0.0.2"})

		if err := s.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
		}
		got, _ := s.FindAll(ctx)
		equalNames(t, got, "b")
	})

	t.Run("set positions skips unknown", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1", Position: intPtr(0)})
		mustUpsert(t, s, domain.Service{Name: "b", Address: "10.0.0.2", Position: intPtr(1)})
		mustUpsert(t, s, domain.Service{Name: "c", Address: "10.0.0.3", Position: intPtr(2)})

		n, err := s.SetPositions(ctx, []domain.PositionUpdate{
			{Name: "a", Position: intPtr(5)},
			{Name: "ghost", Position: intPtr(0)},
			{Name: "b"},
			{Name: "c", Position: intPtr(3)},
		})
		if err != nil {
			t.Fatalf("SetPositions() error = %v", err)
		}
		if n != 2 {
			t.Errorf("SetPositions() applied = %d, want 2", n)
		}

		want := map[string]int{"a": 5, "b": 1, "c": 3}
		got, _ := s.FindAll(ctx)
		for _, svc := range got {
			if svc.Position == nil || *svc.Position != want[svc.Name] {
				t.Errorf("position of %s = %v, want %d", svc.Name, svc.Position, want[svc.Name])
			}
		}
	})

	t.Run("set status clears manual flag", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, domain.Service{Name: "a", Address: "10.0.0.1", IsOnline: true, IsManualStatus: true})

		at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
		if err := s.SetStatus(ctx, "a", false, at); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		got, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.IsOnline || got.IsManualStatus || !got.LastChecked.Equal(at) {
			t.Errorf("SetStatus() result = %+v", got)
		}
		if got.Address != "10.0.0.1" {
			t.Errorf("SetStatus() touched address: %s", got.Address)
		}
	})

	t.Run("set status missing", func(t *testing.T) {
		s := newStore(t)
		if err := s.SetStatus(ctx, "nope", true, time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
		}
	})
}
