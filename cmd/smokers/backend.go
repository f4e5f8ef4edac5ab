package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/edirooss/smokers/internal/config"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/http/handler"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/redisipc"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/sysvipc"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
	"github.com/edirooss/smokers/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// backend is the gate set and state store one run shares.
type backend struct {
	gates gateset.Set
	store statestore.Store
	sink  tracelog.Observer   // extra trace sink, may be nil
	trace handler.TraceSource // shared trace reader, may be nil
	close func(destroy bool) error
}

// resolveKey fills in a missing resource key: ftok of the executable for
// SysV, a fresh UUID for Redis.
func resolveKey(cfg *config.Config) error {
	if cfg.Key != "" {
		return nil
	}
	switch cfg.Backend {
	case config.BackendSysV:
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve sysv key: %w", err)
		}
		k, err := sysvipc.Ftok(exe, 's')
		if err != nil {
			return fmt.Errorf("resolve sysv key: %w", err)
		}
		cfg.Key = fmt.Sprintf("%#x", k)
	case config.BackendRedis:
		cfg.Key = uuid.NewString()
	}
	return nil
}

// openBackend connects to the shared resources of cfg. With create, they are
// created fresh (the supervisor); otherwise they must already exist.
func openBackend(ctx context.Context, log *zap.Logger, cfg config.Config, create bool) (*backend, error) {
	layout := gateset.Layout{Ingredients: cfg.Ingredients}

	switch cfg.Backend {
	case config.BackendMemory:
		gates := gateset.NewMemory(layout)
		store := statestore.NewMemory()
		return &backend{gates: gates, store: store, close: func(bool) error {
			gates.Destroy()
			store.Destroy()
			return nil
		}}, nil

	case config.BackendSysV:
		return openSysV(cfg, layout, create)

	case config.BackendRedis:
		return openRedis(ctx, log, cfg, layout, create)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, cfg.Backend)
}

func openSysV(cfg config.Config, layout gateset.Layout, create bool) (*backend, error) {
	key, err := cfg.SysVKey()
	if err != nil {
		return nil, err
	}

	var (
		sem *sysvipc.SemSet
		seg *sysvipc.Segment
	)
	if create {
		if sem, err = sysvipc.CreateSemSet(key, layout); err != nil {
			return nil, err
		}
		if seg, err = sysvipc.CreateSegment(key, statestore.RegionSize(cfg.Ingredients)); err != nil {
			_ = sem.Destroy()
			return nil, err
		}
	} else {
		if sem, err = sysvipc.OpenSemSet(key, layout); err != nil {
			return nil, err
		}
		if seg, err = sysvipc.OpenSegment(key); err != nil {
			return nil, err
		}
	}

	return &backend{gates: sem, store: seg, close: func(destroy bool) error {
		errs := []error{seg.Detach()}
		if destroy {
			errs = append(errs, seg.Destroy(), sem.Destroy())
		}
		return errors.Join(errs...)
	}}, nil
}

func openRedis(ctx context.Context, log *zap.Logger, cfg config.Config, layout gateset.Layout, create bool) (*backend, error) {
	client := redisipc.NewClient(cfg.RedisAddr, cfg.RedisDB, cfg.Key, layout, log)
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}

	gates := redisipc.NewGateSet(client, layout)
	store := redisipc.NewStore(client)
	if create {
		if err := gates.Create(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	sink := redisipc.NewTraceSink(client)

	return &backend{gates: gates, store: store, sink: sink, trace: sink, close: func(destroy bool) error {
		var errs []error
		if destroy {
			dctx := context.WithoutCancel(ctx)
			errs = append(errs, gates.Destroy(dctx), store.Destroy(dctx))
		}
		return errors.Join(append(errs, client.Close())...)
	}}, nil
}

// viewer reads the shared state for the status API. Each call gets its own
// connection so concurrent requests do not share a lock owner.
type viewer struct {
	gates gateset.Set
	store statestore.Store
}

func (v viewer) View(ctx context.Context) (*factory.State, error) {
	return service.NewConn(nil, "api", v.gates, v.store, nil).View(ctx)
}
