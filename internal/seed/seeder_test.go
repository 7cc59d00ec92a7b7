package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/registry"
	"github.com/MrSnakeDoc/beacon/internal/store/memory"
)

const seedYAML = `services:
  - name: A
    url: 10.0.0.1
    port: 80
  - name: B
    url: 10.0.0.2
    port: 81
  - name: A
    url: 10.0.0.3
    port: 82
  - name: ""
    url: 10.0.0.4
`

func TestSeederSeedsEmptyRegistry(t *testing.T) {
	reg := registry.New(memory.New(), logger.NewNop())
	s := NewSeeder(writeSeed(t, seedYAML), reg, logger.NewNop())

	added, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if added != 2 {
		t.Errorf("Seed() added %d, want 2", added)
	}

	services, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(services) != 2 || services[0].Name != "A" || services[1].Name != "B" {
		t.Errorf("List() = %+v", services)
	}
	if services[0].Address != "10.0.0.1" {
		t.Errorf("duplicate overwrote first entry: %+v", services[0])
	}
}

func TestSeederSkipsPopulatedRegistry(t *testing.T) {
	st := memory.New(domain.Service{Name: "existing", Address: "10.0.0.9", Port: 80})
	reg := registry.New(st, logger.NewNop())
	s := NewSeeder(writeSeed(t, seedYAML), reg, logger.NewNop())

	added, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if added != 0 {
		t.Errorf("Seed() added %d, want 0", added)
	}
}

func TestSeederStoreUnavailable(t *testing.T) {
	st := memory.New()
	st.SetFailure(errors.New("connection refused"))
	reg := registry.New(st, logger.NewNop())
	s := NewSeeder(writeSeed(t, seedYAML), reg, logger.NewNop())

	if _, err := s.Seed(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Seed() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSeederMissingFile(t *testing.T) {
	reg := registry.New(memory.New(), logger.NewNop())
	s := NewSeeder("/nonexistent/seed.yaml", reg, logger.NewNop())

	if _, err := s.Seed(context.Background()); err == nil {
		t.Error("Seed() with missing file should return error")
	}
}
