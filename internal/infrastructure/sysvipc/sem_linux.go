//go:build linux && (amd64 || arm64)

package sysvipc

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"golang.org/x/sys/unix"
)

// pollInterval bounds how long one semtimedop call blocks before the context
// is checked again.
const pollInterval = 250 * time.Millisecond

// sembuf mirrors struct sembuf from <sys/sem.h>.
type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// SemSet is a System V semaphore set laid out by gateset.Layout. It satisfies
// gateset.Set.
type SemSet struct {
	id     int
	layout gateset.Layout
}

// CreateSemSet creates a fresh semaphore set under key with the layout's
// initial counts. It fails if a set with that key already exists.
func CreateSemSet(key int, layout gateset.Layout) (*SemSet, error) {
	id, err := semget(key, layout.Size(), unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		return nil, semErr("semget create", err)
	}
	s := &SemSet{id: id, layout: layout}

	// new semaphores start at zero; raise the ones with a positive count
	for _, g := range layout.Gates() {
		for n := layout.InitialCount(g); n > 0; n-- {
			if err := s.Release(context.Background(), g); err != nil {
				_ = s.Destroy()
				return nil, err
			}
		}
	}
	return s, nil
}

// OpenSemSet connects to the existing semaphore set under key.
func OpenSemSet(key int, layout gateset.Layout) (*SemSet, error) {
	id, err := semget(key, 0, 0)
	if err != nil {
		return nil, semErr("semget", err)
	}
	return &SemSet{id: id, layout: layout}, nil
}

// Acquire performs a blocking down on g.
//
// The wait is split into bounded semtimedop calls so context cancellation is
// observed. EINTR is retried: the Go runtime preempts goroutines with signals
// and System V semaphore calls are never restarted by the kernel.
func (s *SemSet) Acquire(ctx context.Context, g gateset.Gate) error {
	num, err := s.layout.Index(g)
	if err != nil {
		return err
	}
	ops := []sembuf{{num: uint16(num), op: -1}}
	timeout := unix.NsecToTimespec(int64(pollInterval))

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: acquire %s: %v", gateset.ErrPrimitive, g, err)
		}
		err := semtimedop(s.id, ops, &timeout)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EIDRM), errors.Is(err, unix.EINVAL):
			return fmt.Errorf("acquire %s: %w", g, gateset.ErrDestroyed)
		default:
			return semErr("semop down "+g.String(), err)
		}
	}
}

// Release performs an up on g.
func (s *SemSet) Release(_ context.Context, g gateset.Gate) error {
	num, err := s.layout.Index(g)
	if err != nil {
		return err
	}
	ops := []sembuf{{num: uint16(num), op: 1}}
	for {
		err := semtimedop(s.id, ops, nil)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EIDRM), errors.Is(err, unix.EINVAL):
			return fmt.Errorf("release %s: %w", g, gateset.ErrDestroyed)
		default:
			return semErr("semop up "+g.String(), err)
		}
	}
}

// Count returns the current value of g (GETVAL).
func (s *SemSet) Count(g gateset.Gate) (int, error) {
	num, err := s.layout.Index(g)
	if err != nil {
		return 0, err
	}
	v, err := semctl(s.id, num, getval)
	if err != nil {
		return 0, semErr("semctl GETVAL", err)
	}
	return v, nil
}

// Destroy removes the set; blocked waiters fail with ErrDestroyed.
func (s *SemSet) Destroy() error {
	if _, err := semctl(s.id, 0, unix.IPC_RMID); err != nil {
		return semErr("semctl IPC_RMID", err)
	}
	return nil
}

// GETVAL from <linux/sem.h>; x/sys/unix does not export the semctl commands.
const getval = 12

func semget(key, nsems, flag int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(flag))
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func semtimedop(id int, ops []sembuf, timeout *unix.Timespec) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMTIMEDOP,
		uintptr(id),
		uintptr(unsafe.Pointer(&ops[0])),
		uintptr(len(ops)),
		uintptr(unsafe.Pointer(timeout)),
		0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semctl(id, num, cmd int) (int, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(cmd), 0, 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}
