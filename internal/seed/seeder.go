package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/logger"
)

// Target is where seeded services are added (the registry).
type Target interface {
	List(ctx context.Context) ([]domain.Service, error)
	Add(ctx context.Context, svc domain.Service) (domain.Service, error)
}

// Seeder fills an empty registry from a seed file.
type Seeder struct {
	loader *Loader
	target Target
	logger logger.Logger
}

func NewSeeder(filePath string, target Target, log logger.Logger) *Seeder {
	return &Seeder{
		loader: NewLoader(filePath),
		target: target,
		logger: log,
	}
}

// Seed adds every service from the file when the registry is empty and
// returns how many were added. Invalid or duplicate entries are skipped.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	existing, err := s.target.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list services: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("registry already populated, skipping seed",
			logger.Int("count", len(existing)))
		return 0, nil
	}

	services, err := s.loader.Load()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, svc := range services {
		if _, err := s.target.Add(ctx, svc); err != nil {
			if domain.IsValidation(err) || errors.Is(err, domain.ErrDuplicateName) {
				s.logger.Warn("skipping seed entry",
					logger.String("name", svc.Name),
					logger.Error(err))
				continue
			}
			return added, fmt.Errorf("failed to seed %s: %w", svc.Name, err)
		}
		added++
	}

	s.logger.Info("registry seeded",
		logger.Int("added", added),
		logger.Int("skipped", len(services)-added))
	return added, nil
}
