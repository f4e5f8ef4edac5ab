package redisipc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/redis/go-redis/v9"
)

// blockSlice bounds one BLPOP so liveness and the context are re-checked.
const blockSlice = time.Second

// GateSet implements gateset.Set with one Redis list per gate: the list
// length is the semaphore count. Release is RPUSH of a token, Acquire is a
// blocking BLPOP; Redis serves blocked clients in FIFO order and hands each
// token to exactly one of them.
//
// A run is alive while its "alive" key exists. Destroy deletes it together
// with every gate list, and waiters notice within one blockSlice.
type GateSet struct {
	c      *Client
	layout gateset.Layout
}

// NewGateSet binds the gate set of the client's run.
func NewGateSet(c *Client, layout gateset.Layout) *GateSet {
	return &GateSet{c: c, layout: layout}
}

// Create resets every gate to its initial count and marks the run alive.
func (s *GateSet) Create(ctx context.Context) error {
	pipe := s.c.TxPipeline()
	for _, g := range s.layout.Gates() {
		key := s.c.gateKey(g.String())
		pipe.Del(ctx, key)
		for n := s.layout.InitialCount(g); n > 0; n-- {
			pipe.RPush(ctx, key, "1")
		}
	}
	pipe.Set(ctx, s.c.aliveKey(), "1", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: create gates: %v", gateset.ErrPrimitive, err)
	}
	return nil
}

func (s *GateSet) Acquire(ctx context.Context, g gateset.Gate) error {
	if _, err := s.layout.Index(g); err != nil {
		return err
	}
	key := s.c.gateKey(g.String())

	for {
		_, err := s.c.BLPop(ctx, blockSlice, key).Result()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			if err := s.checkAlive(ctx, "acquire "+g.String()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: acquire %s: %v", gateset.ErrPrimitive, g, err)
		}
	}
}

func (s *GateSet) Release(ctx context.Context, g gateset.Gate) error {
	if _, err := s.layout.Index(g); err != nil {
		return err
	}
	if err := s.checkAlive(ctx, "release "+g.String()); err != nil {
		return err
	}
	if err := s.c.RPush(ctx, s.c.gateKey(g.String()), "1").Err(); err != nil {
		return fmt.Errorf("%w: release %s: %v", gateset.ErrPrimitive, g, err)
	}
	return nil
}

// Count returns the pending releases of g.
func (s *GateSet) Count(ctx context.Context, g gateset.Gate) (int, error) {
	n, err := s.c.LLen(ctx, s.c.gateKey(g.String())).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", gateset.ErrPrimitive, g, err)
	}
	return int(n), nil
}

// Destroy removes every gate and the liveness marker.
func (s *GateSet) Destroy(ctx context.Context) error {
	keys := []string{s.c.aliveKey()}
	for _, g := range s.layout.Gates() {
		keys = append(keys, s.c.gateKey(g.String()))
	}
	if err := s.c.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: destroy gates: %v", gateset.ErrPrimitive, err)
	}
	return nil
}

func (s *GateSet) checkAlive(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", gateset.ErrPrimitive, op, err)
	}
	n, err := s.c.Exists(ctx, s.c.aliveKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", gateset.ErrPrimitive, op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, gateset.ErrDestroyed)
	}
	return nil
}
