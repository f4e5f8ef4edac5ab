package tracelog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edirooss/smokers/internal/domain/factory"
)

func TestFormatHeaderAndRow(t *testing.T) {
	if got, want := FormatHeader(3), " AG  W00 W01 W02  S00 S01 S02  I00 I01 I02  C00 C01 C02"; got != want {
		t.Fatalf("header\n got %q\nwant %q", got, want)
	}

	st, _ := factory.New(3, 5)
	if err := st.Stock([]int{0, 1}); err != nil {
		t.Fatal(err)
	}
	st.Watchers[1] = factory.WatcherNotifying
	st.Smokers[2] = factory.SmokerRolling
	st.Cigarettes[0] = 2

	if got, want := FormatRow(st), "  0    0   1   0    0   0   1    1   1   0    2   0   0"; got != want {
		t.Fatalf("row\n got %q\nwant %q", got, want)
	}
	if len(FormatRow(st)) != len(FormatHeader(3)) {
		t.Fatal("row and header widths differ")
	}
}

func TestFileTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	f := NewFile(path)
	if err := f.Create(3); err != nil {
		t.Fatal(err)
	}

	st, _ := factory.New(3, 1)
	for i := 0; i < 2; i++ {
		if err := f.Observe(factory.SnapshotOf(st, "AG", "init")); err != nil {
			t.Fatal(err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want title, blank, header and 2 rows:\n%s", len(lines), b)
	}
	if lines[0] != Title || lines[1] != "" || lines[2] != FormatHeader(3) {
		t.Fatalf("unexpected preamble:\n%s", b)
	}

	// Create truncates
	if err := f.Create(3); err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(path)
	if strings.Count(string(b), "\n") != 3 {
		t.Fatalf("Create did not truncate:\n%s", b)
	}
}

func TestRecorderRing(t *testing.T) {
	r := NewRecorder()
	if rows := r.Read(10); rows != nil {
		t.Fatalf("empty recorder returned %d rows", len(rows))
	}

	st, _ := factory.New(3, 1)
	for i := 0; i < recorderCap+20; i++ {
		st.Seq = uint64(i)
		if err := r.Observe(factory.SnapshotOf(st, "AG", "tick")); err != nil {
			t.Fatal(err)
		}
	}

	rows := r.Read(3)
	if len(rows) != 3 || rows[0].Seq != recorderCap+19 || rows[2].Seq != recorderCap+17 {
		t.Fatalf("Read(3) seqs = %d,%d,%d", rows[0].Seq, rows[1].Seq, rows[2].Seq)
	}
	all := r.Chronological()
	if len(all) != recorderCap || all[0].Seq != 20 {
		t.Fatalf("kept %d rows starting at %d, want %d starting at 20", len(all), all[0].Seq, recorderCap)
	}
	if r.Total() != recorderCap+20 {
		t.Fatalf("Total = %d", r.Total())
	}
}

type failing struct{ calls int }

func (f *failing) Observe(factory.Snapshot) error {
	f.calls++
	return errors.New("sink down")
}

func TestMultiCallsEveryObserver(t *testing.T) {
	bad := &failing{}
	rec := NewRecorder()
	m := Multi{bad, nil, rec, Discard{}}

	st, _ := factory.New(3, 1)
	if err := m.Observe(factory.SnapshotOf(st, "AG", "init")); err == nil {
		t.Fatal("expected the failing observer's error")
	}
	if bad.calls != 1 || rec.Total() != 1 {
		t.Fatalf("calls: failing=%d recorder=%d", bad.calls, rec.Total())
	}
}
