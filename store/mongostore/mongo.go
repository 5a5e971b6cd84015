// Package mongostore implements store.Store over MongoDB, for deployments
// that already run Mongo for other state and would rather not add Redis.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/responses-bridge/store"
)

// document is the on-disk shape. A Mongo TTL index on expires_at removes
// expired documents, but that removal runs in the background, so Get also
// compares ExpiresAt itself.
type document struct {
	ID        string            `bson:"_id"`
	Turn      store.StoredTurn  `bson:"turn"`
	ExpiresAt time.Time         `bson:"expires_at"`
}

// Store delegates to a single Mongo collection. It is a thin wrapper, not a
// general-purpose Mongo client: one method per store.Store operation, no
// extra surface.
type Store struct {
	collection *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New constructs a Store backed by collection. collection must not be nil;
// callers are expected to have created a TTL index on "expires_at" ahead of
// time (index creation is deployment setup, not a per-call operation).
func New(collection *mongo.Collection) (*Store, error) {
	if collection == nil {
		return nil, errors.New("mongostore: collection is required")
	}
	return &Store{collection: collection}, nil
}

func (s *Store) Get(ctx context.Context, responseID string) (*store.StoredTurn, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": responseID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	if time.Now().After(doc.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	return &doc.Turn, nil
}

func (s *Store) Put(ctx context.Context, responseID string, turn *store.StoredTurn, ttl time.Duration) error {
	doc := document{ID: responseID, Turn: *turn, ExpiresAt: time.Now().Add(ttl)}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": responseID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: replace: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, responseID string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": responseID})
	if err != nil {
		return false, fmt.Errorf("mongostore: delete: %w", err)
	}
	return res.DeletedCount > 0, nil
}
