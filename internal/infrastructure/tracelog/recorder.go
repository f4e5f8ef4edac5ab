package tracelog

import (
	"context"
	"sync"

	"github.com/edirooss/smokers/internal/domain/factory"
)

// recorderCap is the number of snapshots a Recorder keeps.
const recorderCap = 500

// Recorder is a thread-safe circular buffer of the latest snapshots with O(1)
// append. It serves the trace to in-process readers (status API, tests).
type Recorder struct {
	entries [recorderCap]factory.Snapshot
	head    int  // next write position
	size    int  // current number of entries
	total   int  // snapshots ever observed
	full    bool // buffer has wrapped around
	mu      sync.RWMutex
}

func NewRecorder() *Recorder {
	return new(Recorder)
}

// Observe stores snap, overwriting the oldest entry when full.
func (r *Recorder) Observe(snap factory.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = snap
	r.head = (r.head + 1) % recorderCap
	r.total++
	if r.full {
		return nil
	}
	r.size++
	if r.size == recorderCap {
		r.full = true
	}
	return nil
}

// Read returns the last lines snapshots, newest → oldest.
// lines <= 0 or > capacity returns everything kept.
func (r *Recorder) Read(lines int) []factory.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return nil
	}
	if lines <= 0 || lines > recorderCap {
		lines = recorderCap
	}
	n := r.size
	if n > lines {
		n = lines
	}

	// newest is one behind head in both the wrapped and unwrapped case
	newest := (r.head - 1 + recorderCap) % recorderCap
	out := make([]factory.Snapshot, n)
	for i := 0; i < n; i++ {
		out[i] = r.entries[(newest-i+recorderCap)%recorderCap]
	}
	return out
}

// Trace adapts Read to the context-aware trace source used by the API.
func (r *Recorder) Trace(_ context.Context, lines int) ([]factory.Snapshot, error) {
	return r.Read(lines), nil
}

// Chronological returns every kept snapshot, oldest → newest.
func (r *Recorder) Chronological() []factory.Snapshot {
	rows := r.Read(0)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

// Total returns how many snapshots were observed, including evicted ones.
func (r *Recorder) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
