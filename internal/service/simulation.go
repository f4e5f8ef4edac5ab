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
	"golang.org/x/sync/errgroup"
)

// Options configure one run of the factory.
type Options struct {
	Ingredients int
	Orders      int

	Chooser Chooser                   // nil: random packs
	Rolling func(k int) DurationSource // per smoker; nil: no delay
	Smoking func(k int) DurationSource // per smoker; nil: no delay

	Observer tracelog.Observer // nil: discard
	Gates    gateset.Set       // nil: a fresh in-memory set, destroyed at the end
	Store    statestore.Store  // nil: a fresh in-memory store
	Roster   *Roster           // nil: not tracked
}

// Exit is how one participant ended.
type Exit struct {
	Name string
	Err  error
}

// Result of a finished run.
type Result struct {
	Final *factory.State
	Exits []Exit
}

// Err joins the failures of every participant.
func (r *Result) Err() error {
	var errs []error
	for _, e := range r.Exits {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, e.Err))
		}
	}
	return errors.Join(errs...)
}

// Bootstrap writes the initial state and emits it as the first trace row.
func Bootstrap(ctx context.Context, store statestore.Store, obs tracelog.Observer, n, orders int) (*factory.State, error) {
	st, err := factory.New(n, orders)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("bootstrap: save initial state: %w", err)
	}
	if obs != nil {
		if err := obs.Observe(factory.SnapshotOf(st, AgentName, EventInit)); err != nil {
			return nil, fmt.Errorf("bootstrap: trace initial state: %w", err)
		}
	}
	return st, nil
}

// RunInProcess runs the agent, N watchers and N smokers as goroutines over
// shared gates and state. It returns once every participant exited. The
// first failure cancels the others.
func RunInProcess(ctx context.Context, log *zap.Logger, opts Options) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	n := opts.Ingredients
	if opts.Observer == nil {
		opts.Observer = tracelog.Discard{}
	}
	if opts.Store == nil {
		opts.Store = statestore.NewMemory()
	}
	if opts.Gates == nil {
		mem := gateset.NewMemory(gateset.Layout{Ingredients: n})
		defer mem.Destroy()
		opts.Gates = mem
	}

	if _, err := Bootstrap(ctx, opts.Store, opts.Observer, n, opts.Orders); err != nil {
		return nil, err
	}

	conn := func(name string) *Conn {
		return NewConn(log, name, opts.Gates, opts.Store, opts.Observer)
	}
	durations := func(f func(int) DurationSource, k int) DurationSource {
		if f == nil {
			return nil
		}
		return f(k)
	}

	type participant struct {
		name string
		run  func(context.Context) error
	}
	parts := []participant{{AgentName, NewAgent(log, conn(AgentName), opts.Chooser).Run}}
	for i := 0; i < n; i++ {
		parts = append(parts, participant{WatcherName(i), NewWatcher(log, conn(WatcherName(i)), i).Run})
	}
	for k := 0; k < n; k++ {
		sm := NewSmoker(log, conn(SmokerName(k)), k, durations(opts.Rolling, k), durations(opts.Smoking, k))
		parts = append(parts, participant{SmokerName(k), sm.Run})
	}

	roster := opts.Roster
	if roster == nil {
		roster = NewRoster()
	}

	res := &Result{Exits: make([]Exit, len(parts))}
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		roster.started(p.name)
		g.Go(func() error {
			err := p.run(gctx)
			res.Exits[i] = Exit{Name: p.name, Err: err}
			roster.exited(p.name, err)
			if err != nil {
				log.Error("participant failed", zap.String("participant", p.name), zap.Error(err))
			}
			return err
		})
	}
	runErr := g.Wait()

	final, err := conn("main").View(context.WithoutCancel(ctx))
	if err != nil {
		return res, errors.Join(runErr, err)
	}
	res.Final = final
	return res, runErr
}
