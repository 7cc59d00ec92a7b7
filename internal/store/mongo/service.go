package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

const (
	// DefaultCollection holds one document per service.
	DefaultCollection = "services"

	fieldName = "name"
)

// Store persists service descriptors in a MongoDB collection.
// Documents keep their _id across replaces, so _id order is insertion order.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewStore binds a store to database/collection. An empty collection uses DefaultCollection.
func NewStore(client *mongo.Client, database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the unique index on name.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldName, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique"),
	})
	if err != nil {
		return domain.Unavailable("create index", err)
	}
	return nil
}

// FindAll returns every descriptor in insertion order.
func (s *Store) FindAll(ctx context.Context) ([]domain.Service, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, domain.Unavailable("find services", err)
	}

	services := []domain.Service{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, domain.Unavailable("decode services", err)
	}
	return services, nil
}

// Get retrieves a descriptor by name.
func (s *Store) Get(ctx context.Context, name string) (domain.Service, error) {
	var svc domain.Service
	err := s.coll.FindOne(ctx, byName(name)).Decode(&svc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Service{}, domain.ErrNotFound
		}
		return domain.Service{}, domain.Unavailable("get service", err)
	}
	return svc, nil
}

// Upsert replaces the document currently named name, inserting it when absent.
// A rename never inserts, and the unique index rejects a taken name.
func (s *Store) Upsert(ctx context.Context, name string, svc domain.Service) error {
	renames := svc.Name != name
	res, err := s.coll.ReplaceOne(ctx, byName(name), svc, options.Replace().SetUpsert(!renames))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("upsert %s: %w", svc.Name, domain.ErrDuplicateName)
		}
		return domain.Unavailable("upsert service", err)
	}
	if renames && res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the document named name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.coll.DeleteOne(ctx, byName(name))
	if err != nil {
		return domain.Unavailable("delete service", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPositions writes every position in one unordered bulk write.
func (s *Store) SetPositions(ctx context.Context, updates []domain.PositionUpdate) (int, error) {
	models := positionModels(updates)
	if len(models) == 0 {
		return 0, nil
	}

	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, domain.Unavailable("set positions", err)
	}
	return int(res.MatchedCount), nil
}

// SetStatus records an observed status.
func (s *Store) SetStatus(ctx context.Context, name string, online bool, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, byName(name), statusUpdate(online, at))
	if err != nil {
		return domain.Unavailable("set status", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func byName(name string) bson.M {
	return bson.M{fieldName: name}
}

func statusUpdate(online bool, at time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"isOnline":       online,
		"lastChecked":    at,
		"isManualStatus": false,
	}}
}

func positionModels(updates []domain.PositionUpdate) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		if u.Position == nil {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(byName(u.Name)).
			SetUpdate(bson.M{"$set": bson.M{"position": *u.Position}}))
	}
	return models
}
