package statestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edirooss/smokers/internal/domain/factory"
)

var (
	// ErrPrimitive wraps every failure of the shared region itself
	// (segment gone, transport error, undecodable bytes).
	ErrPrimitive = errors.New("shared state store failure")

	// ErrMissing means the store was never initialized or was destroyed.
	ErrMissing = fmt.Errorf("%w: no state stored", ErrPrimitive)
)

// Store holds the single shared State record of a run.
//
// A Store does not serialize participants: callers must hold the mutex gate
// around every Load/Save pair. Load returns a private copy; changes become
// visible to others only through Save.
type Store interface {
	Load(ctx context.Context) (*factory.State, error)
	Save(ctx context.Context, st *factory.State) error
}

// Memory is a Store for participants sharing one address space.
type Memory struct {
	mu sync.Mutex // memory safety only; protocol exclusion is the mutex gate
	st *factory.State
}

// NewMemory returns an empty store; Save the initial state before use.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (*factory.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil, ErrMissing
	}
	return m.st.Clone(), nil
}

func (m *Memory) Save(_ context.Context, st *factory.State) error {
	if st == nil {
		return fmt.Errorf("%w: nil state", ErrPrimitive)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st.Clone()
	return nil
}

// Destroy drops the stored state; later Loads fail with ErrMissing.
func (m *Memory) Destroy() {
	m.mu.Lock()
	m.st = nil
	m.mu.Unlock()
}
