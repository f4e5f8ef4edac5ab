//go:build linux

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/processmgr"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"go.uber.org/zap"
)

// ProcessOptions configure a run with one OS process per participant.
type ProcessOptions struct {
	Ingredients int
	Orders      int
	Store       statestore.Store
	Observer    tracelog.Observer // receives the initial row only

	// Argv builds the command line of the child playing role/id.
	Argv func(role string, id int) []string
}

// Supervisor spawns the agent, the watchers and the smokers as child
// processes over a shared backend and waits for all of them.
type Supervisor struct {
	log *zap.Logger
	pm  *processmgr.ProcessManager
}

func NewSupervisor(log *zap.Logger, pm *processmgr.ProcessManager) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{log: log.Named("supervisor"), pm: pm}
}

// Run bootstraps the shared state, starts every participant and waits for
// them. Cancelling ctx stops the children. A participant that fails to start
// or exits non-zero makes Run return an error; the others are stopped.
func (s *Supervisor) Run(ctx context.Context, opts ProcessOptions) ([]processmgr.Exit, *factory.State, error) {
	if _, err := Bootstrap(ctx, opts.Store, opts.Observer, opts.Ingredients, opts.Orders); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// a failed child can leave the others blocked forever; stop them
	s.pm.OnExit(func(e processmgr.Exit) {
		if e.Err != nil {
			s.log.Warn("participant failed, stopping the rest", zap.String("participant", e.Name), zap.Int("exit_code", e.Code))
			cancel()
		}
	})

	type spawn struct {
		role string
		id   int
	}
	plan := []spawn{{RoleAgent, 0}}
	for i := 0; i < opts.Ingredients; i++ {
		plan = append(plan, spawn{RoleWatcher, i})
	}
	for k := 0; k < opts.Ingredients; k++ {
		plan = append(plan, spawn{RoleSmoker, k})
	}

	var startErr error
	for _, sp := range plan {
		name, _ := ParticipantName(sp.role, sp.id)
		if err := s.pm.Start(ctx, name, opts.Argv(sp.role, sp.id)); err != nil {
			startErr = fmt.Errorf("start %s: %w", name, err)
			cancel()
			break
		}
	}
	s.log.Info("participants started", zap.Int("count", len(plan)))

	exits := s.pm.Wait()
	cancel()

	errs := []error{startErr}
	for _, e := range exits {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("%s (pid %d) exited with code %d: %w", e.Name, e.PID, e.Code, e.Err))
		}
	}
	runErr := errors.Join(errs...)

	final, err := opts.Store.Load(context.WithoutCancel(ctx))
	if err != nil {
		return exits, nil, errors.Join(runErr, err)
	}
	return exits, final, runErr
}
