package redisipc

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/service"
	"github.com/google/uuid"
)

// newTestClient connects to the server named by SMOKERS_TEST_REDIS
// (host:port), or to an in-process miniredis when it is unset, under a fresh
// run namespace.
func newTestClient(t *testing.T, layout gateset.Layout) *Client {
	t.Helper()
	addr := os.Getenv("SMOKERS_TEST_REDIS")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	c := NewClient(addr, 0, uuid.NewString(), layout, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStoreAndTrace(t *testing.T) {
	c := newTestClient(t, gateset.Layout{Ingredients: 3})
	ctx := context.Background()
	store := NewStore(c)
	defer store.Destroy(ctx)

	if _, err := store.Load(ctx); !errors.Is(err, statestore.ErrMissing) {
		t.Fatalf("Load before Save: err = %v", err)
	}

	st, _ := factory.New(3, 2)
	if err := st.Stock([]int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Inventory[1] != 1 || got.Inventory[2] != 1 {
		t.Fatalf("loaded %+v", got)
	}

	sink := NewTraceSink(c)
	for i := 0; i < 3; i++ {
		st.Seq = uint64(i)
		if err := sink.Observe(factory.SnapshotOf(st, "AG", "stock")); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := sink.Trace(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Seq != 2 || rows[1].Seq != 1 {
		t.Fatalf("trace = %+v, want seq 2,1", rows)
	}
}

func TestGateSet(t *testing.T) {
	layout := gateset.Layout{Ingredients: 3}
	c := newTestClient(t, layout)
	ctx := context.Background()

	gates := NewGateSet(c, layout)
	if err := gates.Create(ctx); err != nil {
		t.Fatal(err)
	}

	if n, err := gates.Count(ctx, gateset.Mutex); err != nil || n != 1 {
		t.Fatalf("mutex count = %d (%v), want 1", n, err)
	}
	if err := gates.Acquire(ctx, gateset.Mutex); err != nil {
		t.Fatal(err)
	}
	if err := gates.Release(ctx, gateset.Mutex); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- gates.Acquire(ctx, gateset.PairReady(1)) }()
	time.Sleep(50 * time.Millisecond)
	if err := gates.Release(ctx, gateset.PairReady(1)); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	go func() { done <- gates.Acquire(ctx, gateset.CigaretteDone) }()
	if err := gates.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, gateset.ErrDestroyed) {
			t.Fatalf("err = %v, want ErrDestroyed", err)
		}
	case <-time.After(3 * blockSlice):
		t.Fatal("waiter not released after Destroy")
	}
}

func TestPoolSizeCoversEveryParticipant(t *testing.T) {
	for _, n := range []int{3, 10, 99} {
		participants := 1 + 2*n
		if got := PoolSize(gateset.Layout{Ingredients: n}); got < 2*participants+2 {
			t.Errorf("N=%d: pool of %d for %d participants", n, got, participants)
		}
	}
}

// All participants share one client here, as in-process runs over Redis do.
func TestRunInProcessOverRedis(t *testing.T) {
	for _, n := range []int{3, 10} {
		layout := gateset.Layout{Ingredients: n}
		c := newTestClient(t, layout)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		gates := NewGateSet(c, layout)
		if err := gates.Create(ctx); err != nil {
			t.Fatal(err)
		}
		store := NewStore(c)
		sink := NewTraceSink(c)

		start := time.Now()
		res, err := service.RunInProcess(ctx, nil, service.Options{
			Ingredients: n,
			Orders:      5,
			Gates:       gates,
			Store:       store,
			Observer:    sink,
		})
		if err != nil {
			t.Fatalf("N=%d: %v (after %v)", n, err, time.Since(start))
		}
		if len(res.Exits) != 1+2*n {
			t.Fatalf("N=%d: %d exits", n, len(res.Exits))
		}
		st := res.Final
		if err := st.Validate(); err != nil {
			t.Fatalf("N=%d: final state: %v", n, err)
		}
		for k := 0; k < n; k++ {
			if st.Smokers[k] != factory.SmokerClosed || st.Watchers[k] != factory.WatcherClosed {
				t.Errorf("N=%d: participant %d ended smoker %s watcher %s", n, k, st.Smokers[k], st.Watchers[k])
			}
		}
		if st.TotalCigarettes() != 5 {
			t.Errorf("N=%d: %d cigarettes for 5 orders", n, st.TotalCigarettes())
		}

		rows, err := sink.Trace(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) == 0 || rows[len(rows)-1].Event != service.EventInit || rows[0].Seq != st.Seq {
			t.Fatalf("N=%d: trace of %d rows does not span init..final", n, len(rows))
		}

		if err := gates.Destroy(ctx); err != nil {
			t.Fatal(err)
		}
		if err := store.Destroy(ctx); err != nil {
			t.Fatal(err)
		}
	}
}
