//go:build linux && (amd64 || arm64)

package sysvipc

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
)

// These tests create real kernel IPC objects; they run only when
// SMOKERS_TEST_SYSV is set.
func requireSysV(t *testing.T) int {
	t.Helper()
	if os.Getenv("SMOKERS_TEST_SYSV") == "" {
		t.Skip("SMOKERS_TEST_SYSV not set")
	}
	return 0x534d0000 | (os.Getpid() & 0xffff)
}

func TestSegmentStore(t *testing.T) {
	key := requireSysV(t)
	ctx := context.Background()

	seg, err := CreateSegment(key, statestore.RegionSize(3))
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	defer func() {
		_ = seg.Detach()
		_ = seg.Destroy()
	}()

	st, _ := factory.New(3, 4)
	if err := st.Stock([]int{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := seg.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	peer, err := OpenSegment(key)
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer peer.Detach()

	got, err := peer.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Inventory[0] != 1 || got.Inventory[1] != 1 || got.OrdersRemaining != 4 {
		t.Fatalf("peer sees %+v", got)
	}
}

func TestSemSetCounting(t *testing.T) {
	key := requireSysV(t) + 1
	ctx := context.Background()
	layout := gateset.Layout{Ingredients: 3}

	sem, err := CreateSemSet(key, layout)
	if err != nil {
		t.Fatalf("CreateSemSet: %v", err)
	}
	destroyed := false
	defer func() {
		if !destroyed {
			_ = sem.Destroy()
		}
	}()

	if v, err := sem.Count(gateset.Mutex); err != nil || v != 1 {
		t.Fatalf("mutex = %d (%v), want 1", v, err)
	}

	peer, err := OpenSemSet(key, layout)
	if err != nil {
		t.Fatalf("OpenSemSet: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := peer.Release(ctx, gateset.IngredientReady(2)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := sem.Acquire(ctx, gateset.IngredientReady(2)); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- sem.Acquire(ctx, gateset.CigaretteDone) }()
	time.Sleep(50 * time.Millisecond)
	if err := sem.Destroy(); err != nil {
		t.Fatal(err)
	}
	destroyed = true

	select {
	case err := <-done:
		if !errors.Is(err, gateset.ErrDestroyed) {
			t.Fatalf("err = %v, want ErrDestroyed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("destroy did not unblock the waiter")
	}
}
