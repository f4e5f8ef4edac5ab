package service

import (
	"context"
	"fmt"

	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"go.uber.org/zap"
)

// Participant roles, as passed on the command line of a child process.
const (
	RoleAgent   = "agent"
	RoleWatcher = "watcher"
	RoleSmoker  = "smoker"
)

// ParticipantName maps a role and index to the name used in logs and traces.
func ParticipantName(role string, id int) (string, error) {
	switch role {
	case RoleAgent:
		return AgentName, nil
	case RoleWatcher:
		return WatcherName(id), nil
	case RoleSmoker:
		return SmokerName(id), nil
	}
	return "", fmt.Errorf("unknown role %q", role)
}

// ParticipantConfig is what one child process needs to play its role.
type ParticipantConfig struct {
	Role     string
	ID       int
	Gates    gateset.Set
	Store    statestore.Store
	Observer tracelog.Observer
	Chooser  Chooser        // agent only
	Rolling  DurationSource // smoker only
	Smoking  DurationSource // smoker only
}

// RunParticipant plays a single role against shared gates and state until
// the role's loop ends.
func RunParticipant(ctx context.Context, log *zap.Logger, cfg ParticipantConfig) error {
	name, err := ParticipantName(cfg.Role, cfg.ID)
	if err != nil {
		return err
	}
	conn := NewConn(log, name, cfg.Gates, cfg.Store, cfg.Observer)

	// out-of-range indices would address another participant's gates
	st, err := conn.View(ctx)
	if err != nil {
		return err
	}
	if cfg.Role != RoleAgent && (cfg.ID < 0 || cfg.ID >= st.N()) {
		return fmt.Errorf("%s index %d outside [0, %d)", cfg.Role, cfg.ID, st.N())
	}

	switch cfg.Role {
	case RoleAgent:
		return NewAgent(log, conn, cfg.Chooser).Run(ctx)
	case RoleWatcher:
		return NewWatcher(log, conn, cfg.ID).Run(ctx)
	default:
		return NewSmoker(log, conn, cfg.ID, cfg.Rolling, cfg.Smoking).Run(ctx)
	}
}
