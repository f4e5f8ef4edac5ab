package gateset

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPrimitive wraps every failure of the underlying counting semaphore
	// (object removed, interrupted wait, transport error). It is fatal for the
	// participant that observes it.
	ErrPrimitive = errors.New("synchronization primitive failure")

	// ErrDestroyed is returned by operations on a destroyed gate set.
	ErrDestroyed = fmt.Errorf("%w: gate set destroyed", ErrPrimitive)

	// ErrUnknownGate is returned for a gate outside the set's layout.
	ErrUnknownGate = errors.New("unknown gate")
)

// Set is a named collection of counting semaphores.
//
//   - Acquire blocks until the gate's count is positive, then decrements it.
//   - Release increments the count and unblocks at most one waiter.
//
// Releases accumulate: a Release with no waiter is never lost.
type Set interface {
	Acquire(ctx context.Context, g Gate) error
	Release(ctx context.Context, g Gate) error
}

// Kind identifies the role of a gate.
type Kind uint8

const (
	KindMutex           Kind = iota // guards the shared state; initial count 1
	KindCigaretteDone               // agent waits for a rolled cigarette
	KindIngredientReady             // one per ingredient; agent → watcher
	KindPairReady                   // one per smoker; watcher/agent → smoker
)

// Gate names one semaphore of the set.
type Gate struct {
	Kind  Kind
	Index int // ingredient or smoker index; zero for singleton gates
}

var (
	Mutex         = Gate{Kind: KindMutex}
	CigaretteDone = Gate{Kind: KindCigaretteDone}
)

// IngredientReady returns the gate the watcher of ingredient i waits on.
func IngredientReady(i int) Gate { return Gate{Kind: KindIngredientReady, Index: i} }

// PairReady returns the gate smoker k waits on.
func PairReady(k int) Gate { return Gate{Kind: KindPairReady, Index: k} }

func (g Gate) String() string {
	switch g.Kind {
	case KindMutex:
		return "mutex"
	case KindCigaretteDone:
		return "cigaretteDone"
	case KindIngredientReady:
		return fmt.Sprintf("ingredientReady[%d]", g.Index)
	case KindPairReady:
		return fmt.Sprintf("pairReady[%d]", g.Index)
	default:
		return fmt.Sprintf("gate(%d,%d)", g.Kind, g.Index)
	}
}

// Layout maps gates of an N-ingredient factory onto dense semaphore numbers:
//
//	0            mutex
//	1            cigaretteDone
//	2 .. 2+N     ingredientReady[i]
//	2+N .. 2+2N  pairReady[k]
type Layout struct {
	Ingredients int
}

// Size returns the number of semaphores in the set.
func (l Layout) Size() int { return 2 + 2*l.Ingredients }

// Index returns the semaphore number of g.
func (l Layout) Index(g Gate) (int, error) {
	switch g.Kind {
	case KindMutex:
		return 0, nil
	case KindCigaretteDone:
		return 1, nil
	case KindIngredientReady:
		if g.Index >= 0 && g.Index < l.Ingredients {
			return 2 + g.Index, nil
		}
	case KindPairReady:
		if g.Index >= 0 && g.Index < l.Ingredients {
			return 2 + l.Ingredients + g.Index, nil
		}
	}
	return 0, fmt.Errorf("%w: %s (ingredients=%d)", ErrUnknownGate, g, l.Ingredients)
}

// Gates lists every gate in semaphore-number order.
func (l Layout) Gates() []Gate {
	out := []Gate{Mutex, CigaretteDone}
	for i := 0; i < l.Ingredients; i++ {
		out = append(out, IngredientReady(i))
	}
	for k := 0; k < l.Ingredients; k++ {
		out = append(out, PairReady(k))
	}
	return out
}

// InitialCount is 1 for the mutex and 0 for every signaling gate.
func (l Layout) InitialCount(g Gate) int {
	if g.Kind == KindMutex {
		return 1
	}
	return 0
}
