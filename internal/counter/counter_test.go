package counter

import (
	"testing"

	"github.com/Voskan/sheetkv/internal/hkv"
	"github.com/Voskan/sheetkv/internal/memarena"
)

func putCounterKey(t *testing.T, arena *memarena.Arena, key string) uint32 {
	t.Helper()
	val := make([]byte, ValueSize)
	n, err := hkv.EncodedLen(len(key), len(val))
	if err != nil {
		t.Fatalf("EncodedLen: %v", err)
	}
	off, err := arena.Reserve(n)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := hkv.Encode(arena.BytesN(off, n), []byte(key), val); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return off
}

func newTestEngine(t *testing.T) (*Engine, *memarena.Arena) {
	t.Helper()
	arena, err := memarena.New(1<<16, 1<<24)
	if err != nil {
		t.Fatalf("memarena.New: %v", err)
	}
	t.Cleanup(func() { arena.Close() })
	// Offset 0 is the reserved "none" sentinel (spec §3, §4.2); reserve it
	// up front the way the Instance facade does before handing the arena
	// to the counter/probe engines.
	if _, err := arena.Reserve(1); err != nil {
		t.Fatalf("reserve sentinel byte: %v", err)
	}
	return NewEngine(arena), arena
}

// TestRunawayCounter mirrors the scenario of three keys bootstrapped at
// count 1, one of which is incremented 1000 times while the other two
// stay put: at every step the descending walk must surface the hot key
// first, and after the last step exactly two count nodes are live.
func TestRunawayCounter(t *testing.T) {
	e, arena := newTestEngine(t)
	_ = arena

	k1 := putCounterKey(t, arena, "k1")
	k2 := putCounterKey(t, arena, "k2")
	k3 := putCounterKey(t, arena, "k3")

	for _, off := range []uint32{k1, k2, k3} {
		if err := e.Bootstrap(0, off); err != nil {
			t.Fatalf("Bootstrap: %v", err)
		}
	}

	for i := 0; i < 1000; i++ {
		newCount, err := e.Increment(0, k1)
		if err != nil {
			t.Fatalf("Increment step %d: %v", i, err)
		}
		if want := uint64(i + 2); newCount != want {
			t.Fatalf("step %d: count = %d, want %d", i, newCount, want)
		}

		off1, next1, end1 := e.Walk(0, Descending, ZeroCursor)
		if end1 || off1 != k1 {
			t.Fatalf("step %d: descending walk head = %d (end=%v), want k1 %d", i, off1, end1, k1)
		}
		off2, next2, end2 := e.Walk(0, Descending, next1)
		if end2 {
			t.Fatalf("step %d: expected a second key, got end", i)
		}
		off3, _, end3 := e.Walk(0, Descending, next2)
		if end3 {
			t.Fatalf("step %d: expected a third key, got end", i)
		}
		seen := map[uint32]bool{off2: true, off3: true}
		if !seen[k2] || !seen[k3] {
			t.Fatalf("step %d: expected {k2,k3} after k1, got {%d,%d}", i, off2, off3)
		}
	}

	if got := e.NodesInUse(); got != 2 {
		t.Fatalf("NodesInUse = %d, want 2", got)
	}
}

// TestThreeKeyCountSort exercises bootstrap ordering directly: the most
// recently bootstrapped key is the head of its node's chain.
func TestThreeKeyCountSort(t *testing.T) {
	e, arena := newTestEngine(t)

	k1 := putCounterKey(t, arena, "a")
	k2 := putCounterKey(t, arena, "b")
	k3 := putCounterKey(t, arena, "c")
	for _, off := range []uint32{k1, k2, k3} {
		if err := e.Bootstrap(1, off); err != nil {
			t.Fatalf("Bootstrap: %v", err)
		}
	}

	if _, err := e.Increment(1, k2); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	off, next, end := e.Walk(1, Descending, ZeroCursor)
	if end || off != k2 {
		t.Fatalf("descending head = %d (end=%v), want k2 %d", off, end, k2)
	}
	idx, err := e.NodeIndexOf(k2)
	if err != nil {
		t.Fatalf("NodeIndexOf: %v", err)
	}
	if c := e.NodeCount(idx); c != 2 {
		t.Fatalf("k2 count = %d, want 2", c)
	}

	off2, next2, end2 := e.Walk(1, Descending, next)
	if end2 || off2 != k3 {
		t.Fatalf("second = %d (end=%v), want k3 %d", off2, end2, k3)
	}
	off3, _, end3 := e.Walk(1, Descending, next2)
	if end3 || off3 != k1 {
		t.Fatalf("third = %d (end=%v), want k1 %d", off3, end3, k1)
	}
}

// TestIncrementRejectsWrongValueLength covers the documented failure mode:
// a key whose value is not exactly 12 bytes can never be incremented.
func TestIncrementRejectsWrongValueLength(t *testing.T) {
	arena, err := memarena.New(1<<16, 1<<24)
	if err != nil {
		t.Fatalf("memarena.New: %v", err)
	}
	defer arena.Close()
	if _, err := arena.Reserve(1); err != nil {
		t.Fatalf("reserve sentinel byte: %v", err)
	}
	e := NewEngine(arena)

	key := []byte("short")
	val := []byte("not12bytes")
	n, err := hkv.EncodedLen(len(key), len(val))
	if err != nil {
		t.Fatalf("EncodedLen: %v", err)
	}
	off, err := arena.Reserve(n)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := hkv.Encode(arena.BytesN(off, n), key, val); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := e.Increment(0, off); err != ErrNotCounterEligible {
		t.Fatalf("Increment: got %v, want ErrNotCounterEligible", err)
	}
}

// TestWalkEmptyListEnds confirms an untouched list immediately ends.
func TestWalkEmptyListEnds(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, _, end := e.Walk(5, Ascending, ZeroCursor); !end {
		t.Fatalf("expected end on empty list")
	}
}
