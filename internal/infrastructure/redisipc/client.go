package redisipc

import (
	"context"
	"time"

	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the Redis client with the run's key namespace.
type Client struct {
	*redis.Client
	log    *zap.Logger
	prefix string // e.g. "smokers:<run-id>:"
}

// PoolSize is the connection pool needed when every participant of layout
// shares one client: each may hold a connection in a blocking BLPOP while
// the mutex holder and the status API still need their own.
func PoolSize(layout gateset.Layout) int {
	return 2*(1+2*layout.Ingredients) + 2
}

// NewClient creates a Redis client whose keys live under
// "smokers:<runID>:", with a pool sized for layout.
func NewClient(addr string, db int, runID string, layout gateset.Layout, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     PoolSize(layout),
		MinIdleConns: 1,
		MaxRetries:   3,
	}

	client := &Client{
		Client: redis.NewClient(opts),
		log:    log.Named("redis"),
		prefix: "smokers:" + runID + ":",
	}

	client.log.Debug("redis client initialized",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.String("prefix", client.prefix),
		zap.Int("pool_size", opts.PoolSize),
	)
	return client
}

// Ping checks connectivity with a short timeout and logs the round trip.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	opts := c.Options()
	log := c.log.With(zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
		return err
	}
	log.Debug("connection established", zap.Duration("ping_rtt", elapsed))
	return nil
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

func (c *Client) stateKey() string { return c.prefix + "state" }
func (c *Client) aliveKey() string { return c.prefix + "alive" }
func (c *Client) traceKey() string { return c.prefix + "trace" }
func (c *Client) gateKey(name string) string {
	return c.prefix + "gate:" + name
}
