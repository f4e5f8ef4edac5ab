package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/http/handler"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"github.com/edirooss/smokers/pkg/fmtt"
	"go.uber.org/zap"
)

// runSupervisor is the "run" command: create the shared resources, run every
// participant, print the tally and clean up.
func runSupervisor(args []string) int {
	cfg, err := loadConfig("run", args, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := buildLogger(errFilePath(cfg.ErrDir, "supervisor"))
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := resolveKey(&cfg); err != nil {
		log.Error("resource key", zap.Error(err))
		return 1
	}
	be, err := openBackend(ctx, log, cfg, true)
	if err != nil {
		log.Error("create shared resources", zap.String("backend", cfg.Backend), zap.String("key", cfg.Key), zap.Error(err))
		return 1
	}
	defer func() {
		if err := be.close(true); err != nil {
			log.Warn("destroy shared resources", zap.Error(err))
		}
	}()

	traceFile := tracelog.NewFile(cfg.LogFile)
	if err := traceFile.Create(cfg.Ingredients); err != nil {
		log.Error("create trace file", zap.Error(err))
		return 1
	}
	log.Info("run starting",
		zap.String("mode", cfg.Mode),
		zap.String("backend", cfg.Backend),
		zap.String("key", cfg.Key),
		zap.Int("ingredients", cfg.Ingredients),
		zap.Int("orders", cfg.Orders),
	)

	var (
		final  *factory.State
		runErr error
	)
	switch cfg.Mode {
	case config.ModeProcess:
		final, runErr = runProcesses(ctx, log, cfg, be, traceFile)
	default:
		final, runErr = runGoroutines(ctx, log, cfg, be, traceFile)
	}

	if final != nil {
		for k, n := range final.Cigarettes {
			log.Info("tally", zap.String("smoker", service.SmokerName(k)), zap.Int("cigarettes", n))
		}
	}
	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		var v *factory.ProtocolViolation
		if errors.As(runErr, &v) {
			fmtt.DumpErrFields(os.Stderr, v)
		}
		return 1
	}
	log.Info("run complete")
	return 0
}

func runGoroutines(ctx context.Context, log *zap.Logger, cfg config.Config, be *backend, traceFile *tracelog.File) (*factory.State, error) {
	rec := tracelog.NewRecorder()
	roster := service.NewRoster()

	var trace handler.TraceSource = rec
	if be.trace != nil {
		trace = be.trace
	}
	stopHTTP := startStatusServer(log, cfg.HTTPAddr,
		handler.NewStatusHandler(log, viewer{be.gates, be.store}, trace, roster))
	defer stopHTTP()

	res, err := service.RunInProcess(ctx, log, service.Options{
		Ingredients: cfg.Ingredients,
		Orders:      cfg.Orders,
		Chooser:     service.NewRandomChooser(cfg.Seed),
		Rolling:     timing(cfg.Rolling, cfg.Seed, 1),
		Smoking:     timing(cfg.Smoking, cfg.Seed, 2),
		Observer:    tracelog.Multi{traceFile, rec, be.sink},
		Gates:       be.gates,
		Store:       be.store,
		Roster:      roster,
	})
	if res == nil {
		return nil, err
	}
	return res.Final, err
}

// timing gives every smoker its own duration stream.
func timing(t config.Timing, seed, salt uint64) func(int) service.DurationSource {
	return func(k int) service.DurationSource {
		s := seed
		if s != 0 {
			s += salt*1000 + uint64(k)
		}
		return service.NormalDuration(t.Mean, t.StdDev, s)
	}
}
