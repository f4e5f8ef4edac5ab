package redisipc

import (
	"context"
	"errors"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/redis/go-redis/v9"
)

// Store keeps the msgpack-encoded state under one Redis key. Like every
// statestore.Store it relies on the mutex gate for exclusion.
type Store struct {
	c *Client
}

func NewStore(c *Client) *Store {
	return &Store{c: c}
}

func (s *Store) Load(ctx context.Context) (*factory.State, error) {
	b, err := s.c.Get(ctx, s.c.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, statestore.ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get (key=%s): %v", statestore.ErrPrimitive, s.c.stateKey(), err)
	}
	return statestore.Unmarshal(b)
}

func (s *Store) Save(ctx context.Context, st *factory.State) error {
	b, err := statestore.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, s.c.stateKey(), b, 0).Err(); err != nil {
		return fmt.Errorf("%w: set (key=%s): %v", statestore.ErrPrimitive, s.c.stateKey(), err)
	}
	return nil
}

// Destroy deletes the stored state and the trace.
func (s *Store) Destroy(ctx context.Context) error {
	if err := s.c.Del(ctx, s.c.stateKey(), s.c.traceKey()).Err(); err != nil {
		return fmt.Errorf("%w: del state: %v", statestore.ErrPrimitive, err)
	}
	return nil
}
