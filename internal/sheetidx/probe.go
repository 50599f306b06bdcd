package sheetidx

import (
	"errors"
	"sync/atomic"

	"github.com/Voskan/sheetkv/internal/hkv"
	"github.com/Voskan/sheetkv/internal/keyhash"
	"github.com/Voskan/sheetkv/internal/memarena"
)

// ErrKeyInvalid is returned for a zero-length key or a key/value exceeding
// the header_8 limits (spec §4.4 "Failure modes", §7 KeyInvalid).
var ErrKeyInvalid = errors.New("sheetidx: invalid key or value length")

// ErrArenaCapped is returned when writing the record would cross the
// caller-configured KV arena cap (spec §7 ArenaCapped).
var ErrArenaCapped = memarena.ErrFull

// ErrShardFull is returned when both candidate rows are full and
// sheet_count has already reached MAX_SHEETS (spec §4.4, §7 ShardFull).
var ErrShardFull = errors.New("sheetidx: both rows full and sheet_count == MAX_SHEETS")

// CellRef locates a single cell by the coordinate a UID packs: bucket
// (stable across splits), row, and column within whichever physical
// sheet the bucket currently resolves to (spec §3 "Compact identifier").
type CellRef struct {
	Bucket uint16
	Row    uint16
	Col    uint8
}

// Probe implements the two-row cuckoo-style lookup/insert engine (spec
// §4.4) with sheet-split on row overflow (§4.5).
type Probe struct {
	store *Store
	kv    *memarena.Arena

	keylenMisses atomic.Uint64
	memcmpMisses atomic.Uint64
	splitsTotal  atomic.Uint64
}

// NewProbe builds a probe engine over an existing sheet store and KV
// arena. Both are owned by the caller (the Instance facade).
func NewProbe(store *Store, kv *memarena.Arena) *Probe {
	return &Probe{store: store, kv: kv}
}

// Lookup scans both candidate rows cell-by-cell for key, per spec §4.4
// "Lookup". It returns the KV arena offset of the matching record, the
// cell it was found in, and whether a match was found.
func (p *Probe) Lookup(h keyhash.Hash, key []byte) (kvOff uint32, ref CellRef, found bool) {
	sheetID, row1, row2 := p.store.Resolve(h)
	bucket := Bucket(h)
	for _, row := range [2]uint16{row1, row2} {
		for col := 0; col < CellsPerRow; col++ {
			hashLo, hashHi, off := p.store.Cell(sheetID, row, col)
			if off == 0 {
				continue
			}
			if hashLo != h.Lo || hashHi != h.Hi {
				continue
			}
			rec, err := hkv.Decode(p.kv.Bytes(off))
			if err != nil {
				continue
			}
			if len(rec.Key) != len(key) {
				p.keylenMisses.Add(1)
				continue
			}
			if !hkv.KeysEqual(rec, key) {
				p.memcmpMisses.Add(1)
				continue
			}
			return off, CellRef{Bucket: bucket, Row: row, Col: uint8(col)}, true
		}
	}
	return 0, CellRef{}, false
}

// Insert writes a new (key, value) record and commits it to a free cell
// in one of the two candidate rows, splitting the owning sheet (and
// retrying) as many times as needed when both rows are full. The caller
// must already know key does not exist (a prior Lookup returned false).
func (p *Probe) Insert(h keyhash.Hash, key, val []byte) (kvOff uint32, ref CellRef, err error) {
	if len(key) == 0 {
		return 0, CellRef{}, ErrKeyInvalid
	}
	n, encErr := hkv.EncodedLen(len(key), len(val))
	if encErr != nil {
		return 0, CellRef{}, ErrKeyInvalid
	}

	for {
		sheetID, row1, row2 := p.store.Resolve(h)
		pop1, free1 := p.store.RowStats(sheetID, row1)
		pop2, free2 := p.store.RowStats(sheetID, row2)

		target, col, ok := chooseTarget(row1, pop1, free1, row2, pop2, free2)
		if ok {
			off, rerr := p.reserveAndWrite(n, key, val)
			if rerr != nil {
				return 0, CellRef{}, rerr
			}
			p.store.SetCell(sheetID, target, col, h.Lo, h.Hi, off)
			return off, CellRef{Bucket: Bucket(h), Row: target, Col: uint8(col)}, nil
		}

		if _, serr := p.store.Split(sheetID); serr != nil {
			if errors.Is(serr, ErrSheetsExhausted) {
				return 0, CellRef{}, ErrShardFull
			}
			return 0, CellRef{}, serr
		}
		p.splitsTotal.Add(1)
		// Restart from scratch: the hash's bucket may now resolve
		// elsewhere (spec §4.4 "the whole lookup/insert is restarted").
	}
}

// chooseTarget implements "insert into the less-populated of the two,
// choosing the first free cell in that row (ties broken toward row_1)".
func chooseTarget(row1 uint16, pop1, free1 int, row2 uint16, pop2, free2 int) (row uint16, col int, ok bool) {
	if free1 == -1 && free2 == -1 {
		return 0, 0, false
	}
	if free1 == -1 {
		return row2, free2, true
	}
	if free2 == -1 {
		return row1, free1, true
	}
	if pop1 <= pop2 {
		return row1, free1, true
	}
	return row2, free2, true
}

func (p *Probe) reserveAndWrite(n int, key, val []byte) (uint32, error) {
	off, err := p.kv.Reserve(n)
	if err != nil {
		return 0, err
	}
	dst := p.kv.BytesN(off, n)
	if _, err := hkv.Encode(dst, key, val); err != nil {
		return 0, err
	}
	return off, nil
}

// SetValueInPlace rewrites the value bytes of an existing record in place,
// provided the new value's length matches the stored one (spec §3 "the
// value bytes may be rewritten in place only if the length is
// unchanged").
func (p *Probe) SetValueInPlace(kvOff uint32, newVal []byte) error {
	rec, err := hkv.Decode(p.kv.Bytes(kvOff))
	if err != nil {
		return err
	}
	if len(rec.Value) != len(newVal) {
		return errors.New("sheetidx: value length must be unchanged for in-place rewrite")
	}
	copy(rec.Value, newVal)
	return nil
}

// Stats returns the probe engine's negative-match counters (spec §4.4).
func (p *Probe) Stats() (keylenMisses, memcmpMisses, splits uint64) {
	return p.keylenMisses.Load(), p.memcmpMisses.Load(), p.splitsTotal.Load()
}

// Store exposes the underlying sheet store (used by the walker/UID codec
// to resolve coordinates back to sheets and by the Instance facade for
// stats and reboot).
func (p *Probe) Store() *Store { return p.store }

// KVArena exposes the underlying KV arena.
func (p *Probe) KVArena() *memarena.Arena { return p.kv }

// DecodeAt decodes the HKV record at the given KV arena offset.
func (p *Probe) DecodeAt(off uint32) (hkv.Record, error) {
	return hkv.Decode(p.kv.Bytes(off))
}

// CellAt returns the raw cell content at a CellRef, used to validate a
// UID still resolves to the same record (spec §8 "After any number of
// splits...").
func (p *Probe) CellAt(ref CellRef) (hashLo, hashHi uint16, kvOff uint32) {
	return p.store.Cell(p.store.SheetForBucket(ref.Bucket), ref.Row, int(ref.Col))
}
