package service

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// Chooser picks the ingredients of the next pack.
type Chooser interface {
	// Choose returns n-1 distinct ingredient indices in [0, n).
	Choose(n int) ([]int, error)
}

// RandomChooser omits one ingredient uniformly at random.
type RandomChooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomChooser seeds a chooser; seed 0 picks a random seed.
func NewRandomChooser(seed uint64) *RandomChooser {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomChooser{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *RandomChooser) Choose(n int) ([]int, error) {
	c.mu.Lock()
	missing := c.rng.IntN(n)
	c.mu.Unlock()
	return packWithout(n, missing), nil
}

// packWithout returns every index in [0, n) except missing, ascending.
func packWithout(n, missing int) []int {
	pack := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != missing {
			pack = append(pack, i)
		}
	}
	return pack
}

// ErrScriptExhausted is returned once a ScriptChooser ran out of packs.
var ErrScriptExhausted = errors.New("pack script exhausted")

// ScriptChooser replays a fixed list of packs.
type ScriptChooser struct {
	mu    sync.Mutex
	packs [][]int
	next  int
}

func NewScriptChooser(packs ...[]int) *ScriptChooser {
	return &ScriptChooser{packs: packs}
}

func (c *ScriptChooser) Choose(int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.packs) {
		return nil, ErrScriptExhausted
	}
	p := c.packs[c.next]
	c.next++
	return append([]int(nil), p...), nil
}
