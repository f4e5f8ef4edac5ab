package gateset

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process gate set: one counter per gate, all guarded by a
// single mutex and condition variable. It serves participants running as
// goroutines of one process.
//
// A single cond is shared by every gate, so Release broadcasts: waking only
// one goroutine could wake a waiter of another gate and lose the signal. Each
// woken waiter re-checks its own counter; at most one of them decrements.
type Memory struct {
	mu        sync.Mutex
	cond      *sync.Cond
	layout    Layout
	counts    []int
	waiting   []int
	destroyed bool
}

// NewMemory creates a gate set with the layout's initial counts.
func NewMemory(layout Layout) *Memory {
	m := &Memory{
		layout:  layout,
		counts:  make([]int, layout.Size()),
		waiting: make([]int, layout.Size()),
	}
	m.cond = sync.NewCond(&m.mu)
	for _, g := range layout.Gates() {
		idx, _ := layout.Index(g)
		m.counts[idx] = layout.InitialCount(g)
	}
	return m
}

// Acquire blocks until g's count is positive and decrements it. Context
// cancellation and Destroy both abort the wait with an ErrPrimitive error.
func (m *Memory) Acquire(ctx context.Context, g Gate) error {
	idx, err := m.layout.Index(g)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// wake our Wait when ctx ends; the callback takes the lock so the
	// broadcast cannot slip in between our ctx check and cond.Wait
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.waiting[idx]++
	defer func() { m.waiting[idx]-- }()

	for {
		if m.destroyed {
			return fmt.Errorf("acquire %s: %w", g, ErrDestroyed)
		}
		if m.counts[idx] > 0 {
			m.counts[idx]--
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: acquire %s: %v", ErrPrimitive, g, err)
		}
		m.cond.Wait()
	}
}

// Release increments g's count.
func (m *Memory) Release(_ context.Context, g Gate) error {
	idx, err := m.layout.Index(g)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return fmt.Errorf("release %s: %w", g, ErrDestroyed)
	}
	m.counts[idx]++
	m.cond.Broadcast()
	return nil
}

// Count returns the pending (unconsumed) releases of g.
func (m *Memory) Count(g Gate) int {
	idx, err := m.layout.Index(g)
	if err != nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[idx]
}

// Waiting returns how many callers are blocked in Acquire on g.
func (m *Memory) Waiting(g Gate) int {
	idx, err := m.layout.Index(g)
	if err != nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting[idx]
}

// Destroy fails every pending and future operation with ErrDestroyed.
// Idempotent.
func (m *Memory) Destroy() {
	m.mu.Lock()
	m.destroyed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
