//go:build linux && (amd64 || arm64)

package sysvipc

import (
	"context"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"golang.org/x/sys/unix"
)

// Segment is an attached System V shared memory segment used as the state
// store. It satisfies statestore.Store.
type Segment struct {
	id   int
	data []byte
}

// CreateSegment creates and attaches a fresh segment of size bytes under key.
// It fails if a segment with that key already exists.
func CreateSegment(key, size int) (*Segment, error) {
	id, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		return nil, shmErr("shmget create", err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, shmErr("shmat", err)
	}
	return &Segment{id: id, data: data}, nil
}

// OpenSegment attaches the existing segment under key.
func OpenSegment(key int) (*Segment, error) {
	id, err := unix.SysvShmGet(key, 0, 0)
	if err != nil {
		return nil, shmErr("shmget", err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, shmErr("shmat", err)
	}
	return &Segment{id: id, data: data}, nil
}

// Load decodes the state frame. Caller holds the mutex gate.
func (s *Segment) Load(context.Context) (*factory.State, error) {
	if s.data == nil {
		return nil, shmErr("load", unix.EINVAL)
	}
	return statestore.ReadFrame(s.data)
}

// Save encodes st into the segment. Caller holds the mutex gate.
func (s *Segment) Save(_ context.Context, st *factory.State) error {
	if s.data == nil {
		return shmErr("save", unix.EINVAL)
	}
	return statestore.WriteFrame(s.data, st)
}

// Detach unmaps the segment from this process. Idempotent.
func (s *Segment) Detach() error {
	if s.data == nil {
		return nil
	}
	if err := unix.SysvShmDetach(s.data); err != nil {
		return shmErr("shmdt", err)
	}
	s.data = nil
	return nil
}

// Destroy marks the segment for removal; the kernel frees it once the last
// process detaches.
func (s *Segment) Destroy() error {
	if _, err := unix.SysvShmCtl(s.id, unix.IPC_RMID, nil); err != nil {
		return shmErr("shmctl IPC_RMID", err)
	}
	return nil
}
