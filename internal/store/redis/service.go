package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

// maxTxRetries bounds optimistic-lock retries on a watched key.
const maxTxRetries = 3

// Store persists service descriptors in Redis.
// Each descriptor is a JSON value; insertion order lives in a sorted set.
type Store struct {
	client redis.UniversalClient
	keys   keyspace
}

// NewStore creates a new Redis store. An empty prefix uses DefaultPrefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		keys:   newKeyspace(prefix),
	}
}

// FindAll returns every descriptor in insertion order.
func (s *Store) FindAll(ctx context.Context) ([]domain.Service, error) {
	names, err := s.client.ZRange(ctx, s.keys.order(), 0, -1).Result()
	if err != nil {
		return nil, domain.Unavailable("find services", err)
	}
	if len(names) == 0 {
		return []domain.Service{}, nil
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, s.keys.service(name))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.Unavailable("find services", err)
	}

	services := make([]domain.Service, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		var svc domain.Service
		if err := json.Unmarshal([]byte(raw), &svc); err != nil {
			return nil, domain.Unavailable("find services",
				fmt.Errorf("failed to unmarshal service %s: %w", names[i], err))
		}
		services = append(services, svc)
	}

	return services, nil
}

// Get retrieves a descriptor by name.
func (s *Store) Get(ctx context.Context, name string) (domain.Service, error) {
	data, err := s.client.Get(ctx, s.keys.service(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Service{}, domain.ErrNotFound
		}
		return domain.Service{}, domain.Unavailable("get service", err)
	}

	var svc domain.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return domain.Service{}, fmt.Errorf("failed to unmarshal service %s: %w", name, err)
	}
	return svc, nil
}

// Upsert stores svc under its name, replacing the record keyed by name.
// A rename keeps the insertion score of the old record and runs under WATCH
// on both keys, so it cannot overwrite a record created meanwhile.
func (s *Store) Upsert(ctx context.Context, name string, svc domain.Service) error {
	data, err := json.Marshal(svc)
	if err != nil {
		return fmt.Errorf("failed to marshal service: %w", err)
	}

	oldKey, newKey := s.keys.service(name), s.keys.service(svc.Name)
	renames := svc.Name != name

	txf := func(tx *redis.Tx) error {
		score, err := tx.ZScore(ctx, s.keys.order(), name).Result()
		exists := err == nil
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if renames {
			if !exists {
				return domain.ErrNotFound
			}
			taken, err := tx.Exists(ctx, newKey).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return domain.ErrDuplicateName
			}
		}

		if !exists {
			seq, err := tx.Incr(ctx, s.keys.seq()).Result()
			if err != nil {
				return err
			}
			score = float64(seq)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if renames {
				pipe.Del(ctx, oldKey)
				pipe.ZRem(ctx, s.keys.order(), name)
			}
			pipe.Set(ctx, newKey, data, 0)
			pipe.ZAdd(ctx, s.keys.order(), redis.Z{Score: score, Member: svc.Name})
			return nil
		})
		return err
	}

	keys := []string{oldKey}
	if renames {
		keys = append(keys, newKey)
	}
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrDuplicateName):
		return fmt.Errorf("upsert %s: %w", svc.Name, domain.ErrDuplicateName)
	default:
		return domain.Unavailable("upsert service", err)
	}
}

// Delete removes a descriptor and its order entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	var removed, deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.keys.order(), name)
		deleted = pipe.Del(ctx, s.keys.service(name))
		return nil
	})
	if err != nil {
		return domain.Unavailable("delete service", err)
	}
	if removed.Val() == 0 && deleted.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPositions rewrites the position of each named descriptor.
func (s *Store) SetPositions(ctx context.Context, updates []domain.PositionUpdate) (int, error) {
	applied := 0
	for _, u := range updates {
		if u.Position == nil {
			continue
		}
		pos := *u.Position
		err := s.update(ctx, "set positions", u.Name, func(svc *domain.Service) {
			svc.Position = &pos
		})
		switch {
		case errors.Is(err, domain.ErrNotFound):
			continue
		case err != nil:
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// SetStatus records an observed status.
func (s *Store) SetStatus(ctx context.Context, name string, online bool, at time.Time) error {
	return s.update(ctx, "set status", name, func(svc *domain.Service) {
		svc.IsOnline = online
		svc.LastChecked = at
		svc.IsManualStatus = false
	})
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

// update applies fn to the stored descriptor under WATCH, retrying on conflict.
func (s *Store) update(ctx context.Context, op, name string, fn func(*domain.Service)) error {
	key := s.keys.service(name)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}

		var svc domain.Service
		if err := json.Unmarshal(data, &svc); err != nil {
			return fmt.Errorf("failed to unmarshal service %s: %w", name, err)
		}
		fn(&svc)

		out, err := json.Marshal(svc)
		if err != nil {
			return fmt.Errorf("failed to marshal service %s: %w", name, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return domain.ErrNotFound
	default:
		return domain.Unavailable(op, err)
	}
}
