//go:build linux

package service

import (
	"context"
	"testing"
	"time"

	"github.com/edirooss/smokers/internal/infrastructure/processmgr"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
)

func TestSupervisorStartsEveryParticipantOnce(t *testing.T) {
	rec := tracelog.NewRecorder()
	sup := NewSupervisor(nil, processmgr.NewProcessManager(nil, nil))
	var spawned []string

	exits, final, err := sup.Run(withTimeout(t), ProcessOptions{
		Ingredients: 3,
		Orders:      2,
		Store:       statestore.NewMemory(),
		Observer:    rec,
		Argv: func(role string, id int) []string {
			name, _ := ParticipantName(role, id)
			spawned = append(spawned, name)
			return []string{"/bin/sh", "-c", "exit 0"}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(exits) != 7 || len(spawned) != 7 {
		t.Fatalf("%d exits for %v", len(exits), spawned)
	}
	if spawned[0] != "AG" || spawned[1] != "WT00" || spawned[6] != "SM02" {
		t.Fatalf("spawn order %v", spawned)
	}
	if final == nil || final.OrdersRemaining != 2 {
		t.Fatalf("final state %+v", final)
	}
	if rows := rec.Read(0); len(rows) != 1 || rows[0].Event != EventInit {
		t.Fatalf("trace = %+v, want the initial row", rows)
	}
}

func TestSupervisorStopsOthersOnFailure(t *testing.T) {
	sup := NewSupervisor(nil, processmgr.NewProcessManager(nil, nil))
	start := time.Now()

	exits, _, err := sup.Run(context.Background(), ProcessOptions{
		Ingredients: 3,
		Orders:      1,
		Store:       statestore.NewMemory(),
		Argv: func(role string, id int) []string {
			if role == RoleSmoker && id == 1 {
				return []string{"/bin/sh", "-c", "echo boom >&2; exit 1"}
			}
			return []string{"/bin/sleep", "30"}
		},
	})
	if err == nil {
		t.Fatal("expected an error from the failed smoker")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("run took %v, other participants were not stopped", time.Since(start))
	}
	if len(exits) != 7 {
		t.Fatalf("exits = %+v", exits)
	}
}
