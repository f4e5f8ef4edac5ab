package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
	"github.com/edirooss/smokers/internal/infrastructure/tracelog"
)

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func requireClean(t *testing.T, res *Result, n int) {
	t.Helper()
	if len(res.Exits) != 1+2*n {
		t.Fatalf("%d participants exited, want %d", len(res.Exits), 1+2*n)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("participants failed: %v", err)
	}
	st := res.Final
	if err := st.Validate(); err != nil {
		t.Fatalf("final state: %v", err)
	}
	for i := 0; i < n; i++ {
		if st.Smokers[i] != factory.SmokerClosed {
			t.Errorf("smoker %d ended %s", i, st.Smokers[i])
		}
		if st.Watchers[i] != factory.WatcherClosed {
			t.Errorf("watcher %d ended %s", i, st.Watchers[i])
		}
		if st.Inventory[i] != 0 || st.Reserved[i] != 0 {
			t.Errorf("ingredient %d left over: inventory %d reserved %d", i, st.Inventory[i], st.Reserved[i])
		}
	}
	if st.TotalCigarettes() != st.Orders {
		t.Errorf("%d cigarettes for %d orders", st.TotalCigarettes(), st.Orders)
	}
}

func TestScriptedRunWakesOwnersInOrder(t *testing.T) {
	ctx := withTimeout(t)
	gates := gateset.NewMemory(gateset.Layout{Ingredients: 3})
	defer gates.Destroy()
	rec := tracelog.NewRecorder()

	res, err := RunInProcess(ctx, nil, Options{
		Ingredients: 3,
		Orders:      5,
		Chooser:     NewScriptChooser([]int{0, 1}, []int{1, 2}, []int{0, 2}, []int{0, 1}, []int{1, 2}),
		Gates:       gates,
		Observer:    rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, res, 3)

	var woken []string
	for _, snap := range rec.Chronological() {
		if snap.Event == EventConsume {
			woken = append(woken, snap.By)
		}
	}
	want := []string{"SM02", "SM00", "SM01", "SM02", "SM00"}
	if len(woken) != len(want) {
		t.Fatalf("wake order %v, want %v", woken, want)
	}
	for i := range want {
		if woken[i] != want[i] {
			t.Fatalf("wake order %v, want %v", woken, want)
		}
	}

	if got := res.Final.Cigarettes; got[0] != 2 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("cigarettes = %v, want [2 1 2]", got)
	}
	for k := 0; k < 3; k++ {
		if c := gates.Count(gateset.PairReady(k)); c != 0 {
			t.Errorf("pairReady[%d] left with %d tokens", k, c)
		}
	}
	if c := gates.Count(gateset.Mutex); c != 1 {
		t.Errorf("mutex count = %d at the end", c)
	}
	if c := gates.Count(gateset.CigaretteDone); c != 0 {
		t.Errorf("cigaretteDone count = %d at the end", c)
	}
}

func TestConsumeMovesSmokerToRolling(t *testing.T) {
	rec := tracelog.NewRecorder()
	res, err := RunInProcess(withTimeout(t), nil, Options{
		Ingredients: 3,
		Orders:      5,
		Chooser:     NewScriptChooser([]int{0, 1}, []int{1, 2}, []int{0, 2}, []int{0, 1}, []int{1, 2}),
		Observer:    rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, res, 3)

	consumed := 0
	for _, snap := range rec.Chronological() {
		if snap.Event != EventConsume {
			continue
		}
		consumed++
		var k int
		for k = 0; k < 3; k++ {
			if SmokerName(k) == snap.By {
				break
			}
		}
		if k == 3 {
			t.Fatalf("seq %d: consume by unknown participant %q", snap.Seq, snap.By)
		}
		if ph := snap.State.Smokers[k]; ph != factory.SmokerRolling {
			t.Errorf("seq %d: %s consumed its pair but is %s", snap.Seq, snap.By, ph)
		}
		if snap.State.Matched[k] {
			t.Errorf("seq %d: %s still matched after consuming", snap.Seq, snap.By)
		}
	}
	if consumed != 5 {
		t.Fatalf("%d consume rows, want 5", consumed)
	}
}

func TestTraceIsTotallyOrdered(t *testing.T) {
	rec := tracelog.NewRecorder()
	res, err := RunInProcess(withTimeout(t), nil, Options{Ingredients: 3, Orders: 8, Observer: rec})
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, res, 3)

	rows := rec.Chronological()
	if rows[0].Event != EventInit || rows[0].Seq != 0 {
		t.Fatalf("first row = %s seq %d", rows[0].Event, rows[0].Seq)
	}
	for i, snap := range rows {
		if snap.Seq != uint64(i) {
			t.Fatalf("row %d has seq %d", i, snap.Seq)
		}
		if err := snap.State.Validate(); err != nil {
			t.Fatalf("row %d (%s by %s): %v", i, snap.Event, snap.By, err)
		}
	}
}

func TestRandomRunsTerminate(t *testing.T) {
	for _, n := range []int{3, 4, 6} {
		res, err := RunInProcess(withTimeout(t), nil, Options{
			Ingredients: n,
			Orders:      25,
			Chooser:     NewRandomChooser(uint64(n)),
			Rolling:     func(k int) DurationSource { return NormalDuration(time.Millisecond, 300*time.Microsecond, uint64(k+1)) },
			Smoking:     func(int) DurationSource { return Fixed(200 * time.Microsecond) },
		})
		if err != nil {
			t.Fatalf("N=%d: %v", n, err)
		}
		requireClean(t, res, n)
	}
}

func TestZeroOrdersClosesImmediately(t *testing.T) {
	res, err := RunInProcess(withTimeout(t), nil, Options{Ingredients: 3, Orders: 0})
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, res, 3)
}

// exclusionProbe counts holders of the mutex and checks that every state
// access happens under it.
type exclusionProbe struct {
	gateset.Set
	store   statestore.Store
	holders atomic.Int32
	bad     atomic.Int32
}

func (p *exclusionProbe) Acquire(ctx context.Context, g gateset.Gate) error {
	if err := p.Set.Acquire(ctx, g); err != nil {
		return err
	}
	if g == gateset.Mutex && p.holders.Add(1) != 1 {
		p.bad.Add(1)
	}
	return nil
}

func (p *exclusionProbe) Release(ctx context.Context, g gateset.Gate) error {
	if g == gateset.Mutex {
		p.holders.Add(-1)
	}
	return p.Set.Release(ctx, g)
}

func (p *exclusionProbe) Load(ctx context.Context) (*factory.State, error) {
	if p.holders.Load() != 1 {
		p.bad.Add(1)
	}
	return p.store.Load(ctx)
}

func (p *exclusionProbe) Save(ctx context.Context, st *factory.State) error {
	if p.holders.Load() != 1 {
		p.bad.Add(1)
	}
	return p.store.Save(ctx, st)
}

func TestMutualExclusion(t *testing.T) {
	ctx := withTimeout(t)
	mem := gateset.NewMemory(gateset.Layout{Ingredients: 4})
	defer mem.Destroy()
	inner := statestore.NewMemory()
	probe := &exclusionProbe{Set: mem, store: inner}

	// the initial state is written before anyone runs
	if _, err := Bootstrap(ctx, inner, nil, 4, 30); err != nil {
		t.Fatal(err)
	}
	opts := Options{Ingredients: 4, Orders: 30, Gates: probe, Store: &bootstrapped{probe}}
	res, err := RunInProcess(ctx, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	requireClean(t, res, 4)
	if b := probe.bad.Load(); b != 0 {
		t.Fatalf("%d accesses outside or overlapping the critical section", b)
	}
}

// bootstrapped skips the unguarded initial Save of RunInProcess.
type bootstrapped struct{ *exclusionProbe }

func (b *bootstrapped) Save(ctx context.Context, st *factory.State) error {
	if st.Seq == 0 {
		return nil
	}
	return b.exclusionProbe.Save(ctx, st)
}

func newParticipant(t *testing.T, n, orders int) (*gateset.Memory, statestore.Store, func(string) *Conn) {
	t.Helper()
	gates := gateset.NewMemory(gateset.Layout{Ingredients: n})
	t.Cleanup(gates.Destroy)
	store := statestore.NewMemory()
	if _, err := Bootstrap(context.Background(), store, nil, n, orders); err != nil {
		t.Fatal(err)
	}
	return gates, store, func(name string) *Conn { return NewConn(nil, name, gates, store, nil) }
}

func TestCloseFactoryIsIdempotent(t *testing.T) {
	gates, _, conn := newParticipant(t, 3, 0)
	ag := NewAgent(nil, conn(AgentName), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := ag.CloseFactory(ctx); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
	for k := 0; k < 3; k++ {
		if c := gates.Count(gateset.PairReady(k)); c != 1 {
			t.Errorf("pairReady[%d] = %d closing tokens, want 1", k, c)
		}
		if c := gates.Count(gateset.IngredientReady(k)); c != 1 {
			t.Errorf("ingredientReady[%d] = %d closing tokens, want 1", k, c)
		}
	}
}

func TestCloseFactoryBeforeLastOrderIsViolation(t *testing.T) {
	_, _, conn := newParticipant(t, 3, 2)
	err := NewAgent(nil, conn(AgentName), nil).CloseFactory(context.Background())
	if !factory.IsProtocolViolation(err) {
		t.Fatalf("err = %v, want protocol violation", err)
	}
}

func TestSmokerWokenWithoutPairIsViolation(t *testing.T) {
	gates, store, conn := newParticipant(t, 3, 3)
	ctx := context.Background()
	if err := gates.Release(ctx, gateset.PairReady(0)); err != nil {
		t.Fatal(err)
	}

	sm := NewSmoker(nil, conn(SmokerName(0)), 0, nil, nil)
	_, err := sm.WaitForIngredients(ctx)
	var v *factory.ProtocolViolation
	if !errors.As(err, &v) || v.Rule != "pair_ready" {
		t.Fatalf("err = %v, want pair_ready violation", err)
	}
	if c := gates.Count(gateset.Mutex); c != 1 {
		t.Fatalf("mutex count = %d after violation, want 1", c)
	}
	st, _ := store.Load(ctx)
	if st.Smokers[0] != factory.SmokerWaitingPair {
		t.Fatalf("violating change was committed: smoker 0 %s", st.Smokers[0])
	}
}

func TestWatcherCreditsAtMostOneSmoker(t *testing.T) {
	gates, _, conn := newParticipant(t, 3, 3)
	ctx := context.Background()
	ag := NewAgent(nil, conn(AgentName), NewScriptChooser([]int{0, 2}))
	if err := ag.PrepareIngredients(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, i := range []int{0, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if closed, err := NewWatcher(nil, conn(WatcherName(i)), i).WaitAndNotify(ctx); err != nil || closed {
				t.Errorf("watcher %d: closed=%t err=%v", i, closed, err)
			}
		}()
	}
	wg.Wait()

	if c := gates.Count(gateset.PairReady(1)); c != 1 {
		t.Fatalf("pairReady[1] = %d, want exactly 1", c)
	}
	for _, k := range []int{0, 2} {
		if c := gates.Count(gateset.PairReady(k)); c != 0 {
			t.Fatalf("pairReady[%d] = %d, want 0", k, c)
		}
	}
}

func TestNormalDurationBounds(t *testing.T) {
	src := NormalDuration(10*time.Millisecond, 8*time.Millisecond, 7)
	for i := 0; i < 1000; i++ {
		if d := src(); d < 0 || d > 20*time.Millisecond {
			t.Fatalf("sample %v outside [0, 20ms]", d)
		}
	}
	if d := NormalDuration(5*time.Millisecond, 0, 1)(); d != 5*time.Millisecond {
		t.Fatalf("zero stddev gave %v", d)
	}
}

func TestScriptChooserExhausts(t *testing.T) {
	c := NewScriptChooser([]int{0, 1})
	if p, err := c.Choose(3); err != nil || len(p) != 2 {
		t.Fatalf("first pack %v, %v", p, err)
	}
	if _, err := c.Choose(3); !errors.Is(err, ErrScriptExhausted) {
		t.Fatalf("err = %v, want ErrScriptExhausted", err)
	}
}
