package redisipc

import (
	"context"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/vmihailenco/msgpack/v5"
)

// TraceSink appends every observed snapshot to the run's trace list, so a
// supervisor in another process can serve the trace.
type TraceSink struct {
	c *Client
}

func NewTraceSink(c *Client) *TraceSink {
	return &TraceSink{c: c}
}

// Observe is called inside the critical section, so rows are appended in
// commit order.
func (t *TraceSink) Observe(snap factory.Snapshot) error {
	b, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return t.c.RPush(context.Background(), t.c.traceKey(), b).Err()
}

// Trace returns up to lines snapshots, newest → oldest (lines <= 0: all).
func (t *TraceSink) Trace(ctx context.Context, lines int) ([]factory.Snapshot, error) {
	start := int64(0)
	if lines > 0 {
		start = -int64(lines)
	}
	raw, err := t.c.LRange(ctx, t.c.traceKey(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange trace: %w", err)
	}

	out := make([]factory.Snapshot, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var snap factory.Snapshot
		if err := msgpack.Unmarshal([]byte(raw[i]), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, nil
}
