// Package redisstore implements store.Store over Redis, for deployments
// that need conversation state shared across multiple bridge instances.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/responses-bridge/store"
)

const keyPrefix = "resp:"

// Store persists StoredTurn values as JSON strings under "resp:<id>" with a
// Redis TTL, using SETEX for Put, GET for Get, and DEL for Delete.
type Store struct {
	client *redis.Client
}

var _ store.Store = (*Store)(nil)

// New constructs a Store backed by client. client must not be nil.
func New(client *redis.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is required")
	}
	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, responseID string) (*store.StoredTurn, error) {
	raw, err := s.client.Get(ctx, keyPrefix+responseID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}
	var turn store.StoredTurn
	if err := json.Unmarshal(raw, &turn); err != nil {
		return nil, fmt.Errorf("redisstore: decode: %w", err)
	}
	return &turn, nil
}

func (s *Store) Put(ctx context.Context, responseID string, turn *store.StoredTurn, ttl time.Duration) error {
	encoded, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("redisstore: encode: %w", err)
	}
	if err := s.client.SetEx(ctx, keyPrefix+responseID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: setex: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, responseID string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+responseID).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: del: %w", err)
	}
	return n > 0, nil
}
