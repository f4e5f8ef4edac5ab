package factory

import "fmt"

// Matching is centralized: it runs inside the same critical section that
// reads the inventory, so eligibility is always evaluated against committed
// state and a unit can be earmarked for at most one smoker.

// Free returns the units of ingredient i that are stocked and not yet
// earmarked for a pending match.
func (s *State) Free(i int) int { return s.Inventory[i] - s.Reserved[i] }

// Readiness returns how many of the N-1 ingredients smoker k needs have at
// least one free unit. Smoker k is eligible exactly when it reaches N-1.
func (s *State) Readiness(k int) int {
	ready := 0
	for j := 0; j < s.N(); j++ {
		if j != k && s.Free(j) > 0 {
			ready++
		}
	}
	return ready
}

// Eligible reports whether smoker k can be credited with a pair right now.
// A smoker already holding an outstanding match, or a closed one, is not.
// The smoker does not have to be waiting: a smoker still busy with its
// previous cigarette is credited and picks the token up on its next wait.
func (s *State) Eligible(k int) bool {
	if s.Smokers[k] == SmokerClosed || s.Matched[k] {
		return false
	}
	return s.Readiness(k) == s.N()-1
}

// Match returns the lowest-indexed eligible smoker.
func (s *State) Match() (int, bool) {
	for k := 0; k < s.N(); k++ {
		if s.Eligible(k) {
			return k, true
		}
	}
	return 0, false
}

// Claim earmarks one unit of every ingredient smoker k needs and records the
// outstanding match. The caller releases pairReady[k] after committing.
func (s *State) Claim(k int) error {
	if !s.Eligible(k) {
		return Violatef(s, "claim", "smoker %d is not eligible (readiness %d/%d, matched %t)",
			k, s.Readiness(k), s.N()-1, s.Matched[k])
	}
	for j := 0; j < s.N(); j++ {
		if j != k {
			s.Reserved[j]++
		}
	}
	s.Matched[k] = true
	return nil
}

// Consume takes the units earmarked for smoker k out of the inventory.
func (s *State) Consume(k int) error {
	if !s.Matched[k] {
		return Violatef(s, "consume", "smoker %d woken without a matched pair", k)
	}
	for j := 0; j < s.N(); j++ {
		if j == k {
			continue
		}
		if s.Reserved[j] < 1 || s.Inventory[j] < 1 {
			return Violatef(s, "consume", "smoker %d needs ingredient %d but inventory %d reserved %d",
				k, j, s.Inventory[j], s.Reserved[j])
		}
		s.Inventory[j]--
		s.Reserved[j]--
		s.Consumed[j]++
	}
	s.Matched[k] = false
	return nil
}

// Stock adds one unit of each ingredient in pack, which must hold exactly N-1
// distinct valid indices, and records it as the latest stocking event.
func (s *State) Stock(pack []int) error {
	if err := s.checkPack(pack); err != nil {
		return err
	}
	for _, i := range pack {
		s.Inventory[i]++
		s.Produced[i]++
	}
	s.LastStock = append(s.LastStock[:0], pack...)
	return nil
}

func (s *State) checkPack(pack []int) error {
	if len(pack) != s.PackSize() {
		return fmt.Errorf("%w: pack %v has %d ingredients, want %d", ErrInvalidShape, pack, len(pack), s.PackSize())
	}
	seen := make(map[int]struct{}, len(pack))
	for _, i := range pack {
		if i < 0 || i >= s.N() {
			return fmt.Errorf("%w: ingredient %d out of range [0, %d)", ErrInvalidShape, i, s.N())
		}
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: ingredient %d repeated in pack %v", ErrInvalidShape, i, pack)
		}
		seen[i] = struct{}{}
	}
	return nil
}

// MissingPairOwner is the history-free lookup of the smoker a pack is meant
// for: with N-1 distinct ingredients stocked, the owner of the single absent
// ingredient is the only smoker that can use them.
func MissingPairOwner(n int, pack []int) (int, bool) {
	if len(pack) != n-1 {
		return 0, false
	}
	seen := make([]bool, n)
	for _, i := range pack {
		if i < 0 || i >= n || seen[i] {
			return 0, false
		}
		seen[i] = true
	}
	for k, ok := range seen {
		if !ok {
			return k, true
		}
	}
	return 0, false
}
