package factory

import (
	"errors"
	"fmt"
)

// MinIngredients is the smallest factory that still needs a rendezvous:
// with two ingredients a smoker would need only one, so no pairing exists.
const MinIngredients = 3

// ErrInvalidShape is returned when a State cannot be built for the requested
// ingredient or order counts.
var ErrInvalidShape = errors.New("invalid factory shape")

// State is the whole mutable state of one simulation run. A single instance
// is shared by every participant; it must only be read or written while the
// caller holds the mutex gate.
//
// Ingredient i is owned by smoker i; smoker k needs every ingredient j != k.
// Each order stocks exactly one unit of N-1 distinct ingredients, which for
// the canonical N = 3 is the classic pair of two.
//
// Bookkeeping beyond the phases and the inventory:
//   - Reserved[j] counts units earmarked for a smoker whose pairReady token is
//     outstanding (Matched[k]). A unit is never earmarked twice.
//   - Produced/Consumed are lifetime counters; Produced = Inventory + Consumed.
//   - CloseSent/WatcherCloseSent record which participants already got their
//     closing token so that a repeated close broadcast releases nothing.
type State struct {
	Agent    AgentPhase     `json:"agent" msgpack:"agent"`
	Watchers []WatcherPhase `json:"watchers" msgpack:"watchers"`
	Smokers  []SmokerPhase  `json:"smokers" msgpack:"smokers"`

	Inventory  []int `json:"inventory" msgpack:"inventory"`
	Reserved   []int `json:"reserved" msgpack:"reserved"`
	Cigarettes []int `json:"cigarettes" msgpack:"cigarettes"`
	Produced   []int `json:"produced" msgpack:"produced"`
	Consumed   []int `json:"consumed" msgpack:"consumed"`

	Matched          []bool `json:"matched" msgpack:"matched"`
	CloseSent        []bool `json:"close_sent" msgpack:"close_sent"`
	WatcherCloseSent []bool `json:"watcher_close_sent" msgpack:"watcher_close_sent"`

	LastStock       []int `json:"last_stock" msgpack:"last_stock"` // ingredients stocked by the latest order
	Orders          int   `json:"orders" msgpack:"orders"`
	OrdersRemaining int   `json:"orders_remaining" msgpack:"orders_remaining"`

	Seq uint64 `json:"seq" msgpack:"seq"` // committed critical sections
}

// New returns the initial state for n ingredients (and n smokers) and the
// given number of orders. A run with zero orders starts out closing.
func New(n, orders int) (*State, error) {
	if n < MinIngredients {
		return nil, fmt.Errorf("%w: need at least %d ingredients, got %d", ErrInvalidShape, MinIngredients, n)
	}
	if orders < 0 {
		return nil, fmt.Errorf("%w: negative order count %d", ErrInvalidShape, orders)
	}

	st := &State{
		Watchers:         make([]WatcherPhase, n),
		Smokers:          make([]SmokerPhase, n),
		Inventory:        make([]int, n),
		Reserved:         make([]int, n),
		Cigarettes:       make([]int, n),
		Produced:         make([]int, n),
		Consumed:         make([]int, n),
		Matched:          make([]bool, n),
		CloseSent:        make([]bool, n),
		WatcherCloseSent: make([]bool, n),
		LastStock:        []int{},
		Orders:           orders,
		OrdersRemaining:  orders,
	}
	if orders == 0 {
		st.Agent = AgentClosing
	}
	return st, nil
}

// N returns the number of ingredient types (equal to the number of smokers).
func (s *State) N() int { return len(s.Inventory) }

// PackSize returns how many distinct ingredients one order stocks.
func (s *State) PackSize() int { return s.N() - 1 }

// Closing reports whether the agent has entered its terminal phase.
func (s *State) Closing() bool { return s.Agent == AgentClosing }

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Watchers = append([]WatcherPhase(nil), s.Watchers...)
	c.Smokers = append([]SmokerPhase(nil), s.Smokers...)
	c.Inventory = append([]int(nil), s.Inventory...)
	c.Reserved = append([]int(nil), s.Reserved...)
	c.Cigarettes = append([]int(nil), s.Cigarettes...)
	c.Produced = append([]int(nil), s.Produced...)
	c.Consumed = append([]int(nil), s.Consumed...)
	c.Matched = append([]bool(nil), s.Matched...)
	c.CloseSent = append([]bool(nil), s.CloseSent...)
	c.WatcherCloseSent = append([]bool(nil), s.WatcherCloseSent...)
	c.LastStock = append([]int{}, s.LastStock...)
	return &c
}

// TotalCigarettes sums the cigarettes smoked by every smoker.
func (s *State) TotalCigarettes() int {
	total := 0
	for _, c := range s.Cigarettes {
		total += c
	}
	return total
}

// Snapshot is one committed view of the state, as handed to observers after a
// state-mutating critical section.
type Snapshot struct {
	Seq   uint64 `json:"seq" msgpack:"seq"`
	By    string `json:"by" msgpack:"by"`       // participant that committed it, e.g. "SM02"
	Event string `json:"event" msgpack:"event"` // what the critical section did
	State *State `json:"state" msgpack:"state"`
}

// SnapshotOf copies st into a Snapshot.
func SnapshotOf(st *State, by, event string) Snapshot {
	return Snapshot{Seq: st.Seq, By: by, Event: event, State: st.Clone()}
}
