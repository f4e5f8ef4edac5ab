package factory

import (
	"errors"
	"fmt"
)

// ProtocolViolation reports a broken invariant of the shared state. It marks a
// logic defect, never a runtime condition: callers treat it as fatal.
type ProtocolViolation struct {
	Rule   string // short invariant name, e.g. "conservation"
	Detail string
	State  *State // offending state (copy), may be nil
}

func (v *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation (%s): %s", v.Rule, v.Detail)
}

// IsProtocolViolation reports whether err carries a *ProtocolViolation.
func IsProtocolViolation(err error) bool {
	var v *ProtocolViolation
	return errors.As(err, &v)
}

// Violatef builds a ProtocolViolation carrying a copy of st.
func Violatef(st *State, rule, format string, args ...any) *ProtocolViolation {
	return &ProtocolViolation{Rule: rule, Detail: fmt.Sprintf(format, args...), State: st.Clone()}
}

// Validate checks every invariant of the state. The first broken one is
// returned as a *ProtocolViolation.
func (s *State) Validate() error {
	n := s.N()
	if n < MinIngredients {
		return Violatef(s, "shape", "only %d ingredients", n)
	}
	for name, l := range map[string]int{
		"watchers":           len(s.Watchers),
		"smokers":            len(s.Smokers),
		"reserved":           len(s.Reserved),
		"cigarettes":         len(s.Cigarettes),
		"produced":           len(s.Produced),
		"consumed":           len(s.Consumed),
		"matched":            len(s.Matched),
		"close_sent":         len(s.CloseSent),
		"watcher_close_sent": len(s.WatcherCloseSent),
	} {
		if l != n {
			return Violatef(s, "shape", "%s has %d entries, want %d", name, l, n)
		}
	}

	if s.OrdersRemaining < 0 || s.OrdersRemaining > s.Orders {
		return Violatef(s, "orders", "orders remaining %d outside [0, %d]", s.OrdersRemaining, s.Orders)
	}
	if (s.OrdersRemaining == 0) != s.Closing() {
		return Violatef(s, "agent_phase", "agent %s with %d orders remaining", s.Agent, s.OrdersRemaining)
	}

	// reserved[j] must equal the number of outstanding matches that need j
	want := make([]int, n)
	for k, m := range s.Matched {
		if !m {
			continue
		}
		if s.Smokers[k] == SmokerClosed {
			return Violatef(s, "matched_closed", "smoker %d closed with a pending pair", k)
		}
		for j := 0; j < n; j++ {
			if j != k {
				want[j]++
			}
		}
	}

	for i := 0; i < n; i++ {
		switch {
		case s.Inventory[i] < 0:
			return Violatef(s, "inventory", "inventory[%d] = %d", i, s.Inventory[i])
		case s.Reserved[i] < 0:
			return Violatef(s, "reserved", "reserved[%d] = %d", i, s.Reserved[i])
		case s.Reserved[i] > s.Inventory[i]:
			return Violatef(s, "reserved", "reserved[%d] = %d exceeds inventory %d", i, s.Reserved[i], s.Inventory[i])
		case s.Reserved[i] != want[i]:
			return Violatef(s, "reserved", "reserved[%d] = %d but %d pending matches need it", i, s.Reserved[i], want[i])
		case s.Cigarettes[i] < 0:
			return Violatef(s, "cigarettes", "cigarettes[%d] = %d", i, s.Cigarettes[i])
		case s.Produced[i] != s.Inventory[i]+s.Consumed[i]:
			return Violatef(s, "conservation", "ingredient %d: produced %d != inventory %d + consumed %d",
				i, s.Produced[i], s.Inventory[i], s.Consumed[i])
		}
		if s.Smokers[i] == SmokerClosed && !s.Closing() {
			return Violatef(s, "smoker_closed", "smoker %d closed while agent %s", i, s.Agent)
		}
		if s.Watchers[i] == WatcherClosed && !s.Closing() {
			return Violatef(s, "watcher_closed", "watcher %d closed while agent %s", i, s.Agent)
		}
		if s.CloseSent[i] && !s.Closing() {
			return Violatef(s, "close_sent", "closing token sent to smoker %d while agent %s", i, s.Agent)
		}
	}

	// every consumed unit belongs to exactly one rolled cigarette
	done := s.Orders - s.OrdersRemaining
	for i := 0; i < n; i++ {
		if s.Consumed[i] > done+1 {
			return Violatef(s, "consumption", "ingredient %d consumed %d times after %d orders", i, s.Consumed[i], done)
		}
	}
	return nil
}
