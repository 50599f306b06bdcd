package sheetidx

import (
	"bytes"
	"testing"

	"github.com/Voskan/sheetkv/internal/keyhash"
	"github.com/Voskan/sheetkv/internal/memarena"
)

func newTestProbe(t *testing.T, initialSheets int) *Probe {
	t.Helper()
	store, err := NewStore(initialSheets)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	kv, err := memarena.New(1<<16, 1<<24)
	if err != nil {
		t.Fatalf("memarena.New: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	if _, err := kv.Reserve(1); err != nil {
		t.Fatalf("reserve sentinel byte: %v", err)
	}

	return NewProbe(store, kv)
}

func TestInsertLookupRoundTrip(t *testing.T) {
	p := newTestProbe(t, 1)

	key := []byte("hello")
	val := []byte("world")
	h := keyhash.Prepare(key)

	off, ref, err := p.Insert(h, key, val)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	gotOff, gotRef, found := p.Lookup(h, key)
	if !found {
		t.Fatalf("Lookup did not find inserted key")
	}
	if gotOff != off || gotRef != ref {
		t.Fatalf("Lookup returned (%d,%v), want (%d,%v)", gotOff, gotRef, off, ref)
	}

	rec, err := p.DecodeAt(gotOff)
	if err != nil {
		t.Fatalf("DecodeAt: %v", err)
	}
	if !bytes.Equal(rec.Value, val) {
		t.Fatalf("value = %q, want %q", rec.Value, val)
	}

	hashLo, hashHi, kvOff := p.CellAt(gotRef)
	if hashLo != h.Lo || hashHi != h.Hi || kvOff != gotOff {
		t.Fatalf("CellAt mismatch: got (%d,%d,%d), want (%d,%d,%d)", hashLo, hashHi, kvOff, h.Lo, h.Hi, gotOff)
	}

	if kl, mc, sp := p.Stats(); kl != 0 || mc != 0 || sp != 0 {
		t.Fatalf("Stats = (%d,%d,%d), want all zero", kl, mc, sp)
	}
}

func TestLookupTagMatchKeyLengthMiss(t *testing.T) {
	p := newTestProbe(t, 1)

	h := keyhash.Hash{Hi: 7, Lo: 42, R1: 1, R2: 2}
	if _, _, err := p.Insert(h, []byte("ab"), []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, _, found := p.Lookup(h, []byte("xyz")); found {
		t.Fatalf("Lookup unexpectedly found a different-length key sharing a tag")
	}
	if kl, _, _ := p.Stats(); kl != 1 {
		t.Fatalf("keylenMisses = %d, want 1", kl)
	}
}

func TestInsertRejectsEmptyKey(t *testing.T) {
	p := newTestProbe(t, 1)
	h := keyhash.Prepare(nil)
	if _, _, err := p.Insert(h, nil, []byte("v")); err != ErrKeyInvalid {
		t.Fatalf("Insert(empty key): got %v, want ErrKeyInvalid", err)
	}
}

// TestSplitPreservesAllKeys fills both candidate rows of a single sheet
// to capacity with keys spread across many buckets, forces a split on
// the 33rd insert, and checks every key (old and new) is still found by
// Lookup with its original value afterward.
func TestSplitPreservesAllKeys(t *testing.T) {
	p := newTestProbe(t, 1)

	type entry struct {
		key []byte
		val []byte
		h   keyhash.Hash
	}
	var entries []entry
	for i := 0; i < 32; i++ {
		h := keyhash.Hash{Hi: uint16(i), Lo: uint16(i), R1: 5, R2: 6}
		key := []byte{byte('a' + i%26), byte(i)}
		val := []byte{byte(i), byte(i + 1)}
		if _, _, err := p.Insert(h, key, val); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
		entries = append(entries, entry{key: key, val: val, h: h})
	}

	if p.Store().SheetCount() != 1 {
		t.Fatalf("SheetCount = %d before overflow, want 1", p.Store().SheetCount())
	}

	overflowHash := keyhash.Hash{Hi: 32, Lo: 32, R1: 5, R2: 6}
	overflowKey := []byte("overflow-key")
	overflowVal := []byte("ov")
	if _, _, err := p.Insert(overflowHash, overflowKey, overflowVal); err != nil {
		t.Fatalf("Insert overflow key: %v", err)
	}
	entries = append(entries, entry{key: overflowKey, val: overflowVal, h: overflowHash})

	if p.Store().SheetCount() != 2 {
		t.Fatalf("SheetCount = %d after overflow, want 2", p.Store().SheetCount())
	}
	if _, _, splits := p.Stats(); splits == 0 {
		t.Fatalf("expected at least one recorded split")
	}

	for i, e := range entries {
		off, _, found := p.Lookup(e.h, e.key)
		if !found {
			t.Fatalf("entry %d: key %q not found after split", i, e.key)
		}
		rec, err := p.DecodeAt(off)
		if err != nil {
			t.Fatalf("entry %d: DecodeAt: %v", i, err)
		}
		if !bytes.Equal(rec.Value, e.val) {
			t.Fatalf("entry %d: value = %q, want %q", i, rec.Value, e.val)
		}
	}
}
