package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"github.com/edirooss/smokers/pkg/fmtt"
	"go.uber.org/zap"
)

// runParticipant plays one role in a run created by another process. It
// exits 0 when the role reached its terminal phase and 1 otherwise.
func runParticipant(role string, args []string) int {
	id := 0
	cfg, err := loadConfig(role, args, func(fs *flag.FlagSet) {
		fs.IntVar(&id, "id", 0, "watcher or smoker index")
	})
	if err == nil && cfg.Backend == config.BackendMemory {
		err = fmt.Errorf("%w: a participant process needs a shared backend", config.ErrInvalid)
	}
	name, nerr := service.ParticipantName(role, id)
	if err == nil {
		err = nerr
	}

	errFile := errFilePath(cfg.ErrDir, name)
	log := buildLogger(errFile)
	defer log.Sync()
	log = log.Named("main").With(zap.String("participant", name), zap.Int("pid", os.Getpid()))

	if err != nil {
		log.Error("invalid participant configuration", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, log, cfg, false)
	if err != nil {
		log.Error("attach shared resources", zap.String("key", cfg.Key), zap.Error(err))
		return 1
	}
	defer func() {
		if err := be.close(false); err != nil {
			log.Warn("detach shared resources", zap.Error(err))
		}
	}()

	err = service.RunParticipant(ctx, log, service.ParticipantConfig{
		Role:     role,
		ID:       id,
		Gates:    be.gates,
		Store:    be.store,
		Observer: tracelog.Multi{tracelog.NewFile(cfg.LogFile), be.sink},
		Chooser:  service.NewRandomChooser(cfg.Seed),
		Rolling:  service.NormalDuration(cfg.Rolling.Mean, cfg.Rolling.StdDev, cfg.Seed),
		Smoking:  service.NormalDuration(cfg.Smoking.Mean, cfg.Smoking.StdDev, cfg.Seed),
	})
	if err != nil {
		log.Error("participant failed", zap.Error(err))
		reportViolation(err, errFile)
		return 1
	}
	log.Info("participant finished")
	return 0
}

// reportViolation dumps the offending state of a protocol violation to
// stderr and, when set, the participant's error file.
func reportViolation(err error, errFile string) {
	var v *factory.ProtocolViolation
	if !errors.As(err, &v) {
		return
	}
	var w io.Writer = os.Stderr
	if errFile != "" {
		if f, ferr := os.OpenFile(errFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			defer f.Close()
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	fmtt.DumpErrFields(w, v)
}
