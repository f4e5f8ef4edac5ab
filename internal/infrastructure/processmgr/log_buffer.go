package processmgr

import "sync"

// logCap is the number of stderr lines kept per participant.
const logCap = 500

// logBuffer is a thread-safe circular buffer of stderr lines with O(1) append.
// Lines overwritten before anyone read them are counted in dropped.
type logBuffer struct {
	entries [logCap]string
	head    int // next write position
	size    int // current number of entries
	dropped int // lines evicted by wrap-around
	mu      sync.RWMutex
}

// Append adds a line, overwriting the oldest one when full.
func (b *logBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = line
	b.head = (b.head + 1) % logCap
	if b.size == logCap {
		b.dropped++
		return
	}
	b.size++
}

// Read returns the last lines entries, newest → oldest, in a new slice.
// lines <= 0 or > logCap returns everything kept.
func (b *logBuffer) Read(lines int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	if lines <= 0 || lines > logCap {
		lines = logCap
	}
	n := min(b.size, lines)

	// newest is one behind head whether or not the buffer wrapped
	newest := (b.head - 1 + logCap) % logCap
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(newest-i+logCap)%logCap]
	}
	return out
}

// Dropped returns how many lines were evicted.
func (b *logBuffer) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
