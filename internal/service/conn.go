package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// Conn
// -----------------------------------------------------------------------------
//
// One participant's handle on the shared factory.
//
// Contract
//   • Every read or write of the state happens inside Critical, under the
//     mutex gate. The state is loaded, changed, validated and saved before the
//     mutex is released.
//   • Each committed change emits exactly one snapshot to the observer.
//   • Signals go out through Signal, after Critical returned. The Checked
//     wrapper rejects anything else.
//   • A failed validation aborts the change: nothing is saved and the error
//     (a *factory.ProtocolViolation) is returned.

// Conn binds a participant identity to the gates, the store and the trace.
type Conn struct {
	log   *zap.Logger
	who   string
	gates *gateset.Checked
	store statestore.Store
	obs   tracelog.Observer
}

// NewConn wraps gates in a discipline checker owned by who. A nil observer
// discards snapshots.
func NewConn(log *zap.Logger, who string, gates gateset.Set, store statestore.Store, obs tracelog.Observer) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = tracelog.Discard{}
	}
	return &Conn{
		log:   log.Named(who),
		who:   who,
		gates: gateset.NewChecked(gates),
		store: store,
		obs:   obs,
	}
}

// Who returns the participant name.
func (c *Conn) Who() string { return c.who }

// Critical runs fn on a private copy of the state while holding the mutex and
// commits the result. fn returns the event name recorded in the trace.
func (c *Conn) Critical(ctx context.Context, fn func(st *factory.State) (string, error)) (err error) {
	if err := c.gates.Acquire(ctx, gateset.Mutex); err != nil {
		return fmt.Errorf("%s: enter critical section: %w", c.who, err)
	}
	defer func() {
		// the mutex must go back even when the caller is being cancelled
		if rerr := c.gates.Release(context.WithoutCancel(ctx), gateset.Mutex); rerr != nil {
			err = errors.Join(err, fmt.Errorf("%s: leave critical section: %w", c.who, rerr))
		}
	}()

	st, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: load state: %w", c.who, err)
	}
	event, err := fn(st)
	if err != nil {
		return err
	}
	st.Seq++
	if err := st.Validate(); err != nil {
		return err
	}
	if err := c.store.Save(ctx, st); err != nil {
		return fmt.Errorf("%s: save state after %s: %w", c.who, event, err)
	}

	if err := c.obs.Observe(factory.SnapshotOf(st, c.who, event)); err != nil {
		c.log.Warn("trace observer failed", zap.String("event", event), zap.Error(err))
	}
	c.log.Debug(event, zap.Uint64("seq", st.Seq))
	return nil
}

// View returns a copy of the current state without changing it.
func (c *Conn) View(ctx context.Context) (*factory.State, error) {
	var out *factory.State
	if err := c.gates.Acquire(ctx, gateset.Mutex); err != nil {
		return nil, fmt.Errorf("%s: enter critical section: %w", c.who, err)
	}
	st, err := c.store.Load(ctx)
	if err == nil {
		out = st
	}
	if rerr := c.gates.Release(context.WithoutCancel(ctx), gateset.Mutex); rerr != nil {
		return nil, errors.Join(err, fmt.Errorf("%s: leave critical section: %w", c.who, rerr))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load state: %w", c.who, err)
	}
	return out, nil
}

// Signal releases each gate once, in order.
func (c *Conn) Signal(ctx context.Context, gates ...gateset.Gate) error {
	for _, g := range gates {
		if err := c.gates.Release(ctx, g); err != nil {
			return fmt.Errorf("%s: signal %s: %w", c.who, g, err)
		}
	}
	return nil
}

// Wait blocks until g can be acquired.
func (c *Conn) Wait(ctx context.Context, g gateset.Gate) error {
	if err := c.gates.Acquire(ctx, g); err != nil {
		return fmt.Errorf("%s: wait %s: %w", c.who, g, err)
	}
	return nil
}
