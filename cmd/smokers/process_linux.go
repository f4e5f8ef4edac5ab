//go:build linux

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/http/handler"
	"github.com/edirooss/smokers/internal/infrastructure/processmgr"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"go.uber.org/zap"
)

// runProcesses spawns one child process per participant over the shared
// backend and waits for all of them.
func runProcesses(ctx context.Context, log *zap.Logger, cfg config.Config, be *backend, traceFile *tracelog.File) (*factory.State, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	pm := processmgr.NewProcessManager(log, processmgr.NewLogManager())
	stopHTTP := startStatusServer(log, cfg.HTTPAddr,
		handler.NewStatusHandler(log, viewer{be.gates, be.store}, be.trace, processes{pm}))
	defer stopHTTP()

	_, final, err := service.NewSupervisor(log, pm).Run(ctx, service.ProcessOptions{
		Ingredients: cfg.Ingredients,
		Orders:      cfg.Orders,
		Store:       be.store,
		Observer:    tracelog.Multi{traceFile, be.sink},
		Argv: func(role string, id int) []string {
			return append([]string{exe}, cfg.ParticipantArgs(role, id)...)
		},
	})
	return final, err
}

// processes adapts the process manager to the status API.
type processes struct{ pm *processmgr.ProcessManager }

func (p processes) Participants() []service.ParticipantStatus {
	var out []service.ParticipantStatus
	for _, st := range p.pm.Status() {
		ps := service.ParticipantStatus{Name: st.Name, PID: st.PID, Running: st.Exit == nil}
		if st.Exit != nil {
			code := st.Exit.Code
			ps.ExitCode = &code
			if st.Exit.Err != nil {
				ps.Error = st.Exit.Err.Error()
			}
		}
		out = append(out, ps)
	}
	return out
}

func (p processes) Logs(name string, lines int) ([]string, bool) {
	return p.pm.GetLogs(name, lines)
}
