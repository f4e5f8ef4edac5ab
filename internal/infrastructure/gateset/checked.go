package gateset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrDiscipline reports a call that breaks the locking protocol of one
// participant. It is a protocol violation, not a primitive failure.
var ErrDiscipline = errors.New("gate discipline violation")

// Checked wraps a Set for exactly one participant and enforces its locking
// discipline at the boundary instead of at every call site:
//
//   - the mutex is never acquired twice or released when not held
//   - no other gate is acquired while the mutex is held (a lock holder
//     blocked on a signal could never be woken)
//   - no other gate is released while the mutex is held: signals go out only
//     after the state change that justifies them has been committed
type Checked struct {
	inner Set
	held  atomic.Bool
}

// NewChecked wraps inner. Use one Checked per participant.
func NewChecked(inner Set) *Checked {
	return &Checked{inner: inner}
}

// Holding reports whether this participant currently holds the mutex.
func (c *Checked) Holding() bool { return c.held.Load() }

func (c *Checked) Acquire(ctx context.Context, g Gate) error {
	if c.held.Load() {
		if g.Kind == KindMutex {
			return fmt.Errorf("%w: mutex acquired twice", ErrDiscipline)
		}
		return fmt.Errorf("%w: blocking on %s while holding mutex", ErrDiscipline, g)
	}
	if err := c.inner.Acquire(ctx, g); err != nil {
		return err
	}
	if g.Kind == KindMutex {
		c.held.Store(true)
	}
	return nil
}

func (c *Checked) Release(ctx context.Context, g Gate) error {
	if g.Kind == KindMutex {
		if !c.held.Load() {
			return fmt.Errorf("%w: mutex released but not held", ErrDiscipline)
		}
		c.held.Store(false)
		return c.inner.Release(ctx, g)
	}
	if c.held.Load() {
		return fmt.Errorf("%w: %s signaled before leaving the critical section", ErrDiscipline, g)
	}
	return c.inner.Release(ctx, g)
}
