package sheetidx

import (
	"encoding/binary"
	"errors"

	"github.com/Voskan/sheetkv/internal/keyhash"
	"github.com/Voskan/sheetkv/internal/memarena"
)

// ErrSheetsExhausted is returned when a split is requested but
// sheet_count has already reached MAX_SHEETS (spec §4.5 precondition).
var ErrSheetsExhausted = errors.New("sheetidx: sheet_count == MAX_SHEETS")

// errSplitNoProgress signals the internal invariant violation spec §4.5
// step 2 guards against ("Assert at least two toggles occurred").
var errSplitNoProgress = errors.New("sheetidx: sheet split made no progress")

// Store owns the sheet index (a fixed 8192-entry array of physical sheet
// ids) and the sheet store itself (a single mremappable region holding
// sheet_count sheets of RowsPerSheet x CellsPerRow cells).
//
// Grounded on internal/genring's "ring of growable, ID-tagged regions"
// shape, generalized from TTL-driven rotation to split-driven
// append-only growth; the deeper ancestor is
// original_source/libsxe/lib-sxe-pool/sxe-pool.c's flat array-of-slots
// layout (spec §9's "index-based, not pointer-based" recommendation).
type Store struct {
	arena      *memarena.Arena
	index      [MaxSheets]uint16
	sheetCount uint32
}

// NewStore constructs a store with initialSheets physical sheets already
// allocated and the sheet index round-robined across initialSheets*2
// virtual slots, per spec §3 "Sheet index".
func NewStore(initialSheets int) (*Store, error) {
	if initialSheets < 1 {
		initialSheets = 1
	}
	if initialSheets > MaxSheets {
		initialSheets = MaxSheets
	}
	arena, err := memarena.New(initialSheets*SheetBytes, uint64(MaxSheets)*SheetBytes)
	if err != nil {
		return nil, err
	}
	for i := 0; i < initialSheets; i++ {
		if _, err := arena.Reserve(SheetBytes); err != nil {
			arena.Close()
			return nil, err
		}
	}
	s := &Store{arena: arena, sheetCount: uint32(initialSheets)}
	s.rebuildIndexRoundRobin()
	return s, nil
}

func (s *Store) rebuildIndexRoundRobin() {
	slots := uint32(s.sheetCount) * 2
	for bucket := 0; bucket < MaxSheets; bucket++ {
		virtual := uint32(bucket) % slots
		s.index[bucket] = uint16(virtual % s.sheetCount)
	}
}

// SheetCount returns the number of physical sheets currently live.
func (s *Store) SheetCount() uint32 { return s.sheetCount }

// Close releases the backing mapping.
func (s *Store) Close() error { return s.arena.Close() }

// Bucket returns the sheet-index bucket a hash resolves to: hash.hi mod
// MAX_SHEETS. Unlike the physical sheet id, the bucket never changes for
// a given hash, even across splits — only what it resolves to does. It
// is therefore the field a UID embeds (spec §3 "Compact identifier").
func Bucket(h keyhash.Hash) uint16 { return h.Hi % MaxSheets }

// SheetForBucket returns the physical sheet id a bucket currently
// resolves to.
func (s *Store) SheetForBucket(bucket uint16) uint32 { return uint32(s.index[bucket]) }

// Resolve implements spec §4.3 lookup: sheet_id = sheet_index[hash.hi mod
// MAX_SHEETS], row_1 = hash.r1 mod ROWS_PER_SHEET, row_2 = hash.r2 mod
// ROWS_PER_SHEET.
func (s *Store) Resolve(h keyhash.Hash) (sheetID uint32, row1, row2 uint16) {
	sheetID = s.SheetForBucket(Bucket(h))
	row1 = h.R1 % RowsPerSheet
	row2 = h.R2 % RowsPerSheet
	return
}

func (s *Store) sheetBase(sheetID uint32) uint32 {
	return sheetID * SheetBytes
}

func (s *Store) rowBase(sheetID uint32, row uint16) uint32 {
	return s.sheetBase(sheetID) + uint32(row)*rowBytes
}

// Cell reads the (hash_lo, hash_hi, kv_off) triple at (sheet, row, col).
func (s *Store) Cell(sheetID uint32, row uint16, col int) (hashLo, hashHi uint16, kvOff uint32) {
	base := s.rowBase(sheetID, row)
	buf := s.arena.BytesN(base, rowBytes)
	hashLo = binary.LittleEndian.Uint16(buf[cellsLoOffset+col*2:])
	hashHi = binary.LittleEndian.Uint16(buf[cellsHiOffset+col*2:])
	kvOff = binary.LittleEndian.Uint32(buf[cellsKVOffset+col*4:])
	return
}

// SetCell writes the (hash_lo, hash_hi, kv_off) triple at (sheet, row,
// col). kvOff == 0 clears the cell (spec §3 "kv_off == 0 means empty").
func (s *Store) SetCell(sheetID uint32, row uint16, col int, hashLo, hashHi uint16, kvOff uint32) {
	base := s.rowBase(sheetID, row)
	buf := s.arena.BytesN(base, rowBytes)
	binary.LittleEndian.PutUint16(buf[cellsLoOffset+col*2:], hashLo)
	binary.LittleEndian.PutUint16(buf[cellsHiOffset+col*2:], hashHi)
	binary.LittleEndian.PutUint32(buf[cellsKVOffset+col*4:], kvOff)
}

// RowStats returns the number of populated cells in (sheet, row) and the
// index of the first free cell, or -1 if the row is full.
func (s *Store) RowStats(sheetID uint32, row uint16) (populated int, firstFree int) {
	firstFree = -1
	for c := 0; c < CellsPerRow; c++ {
		_, _, kvOff := s.Cell(sheetID, row, c)
		if kvOff == 0 {
			if firstFree == -1 {
				firstFree = c
			}
			continue
		}
		populated++
	}
	return
}

// Split implements spec §4.5: grow the store by one sheet, toggle half of
// the sheet index entries pointing at the overflowing sheet to the new
// sheet, then move every cell whose bucket now resolves to the new sheet.
func (s *Store) Split(overflowing uint32) (newSheetID uint32, err error) {
	if s.sheetCount >= MaxSheets {
		return 0, ErrSheetsExhausted
	}

	t := s.sheetCount
	if _, err := s.arena.Reserve(SheetBytes); err != nil {
		return 0, err
	}
	s.sheetCount++

	toggles := 0
	matches := 0
	for bucket := 0; bucket < MaxSheets; bucket++ {
		if uint32(s.index[bucket]) != overflowing {
			continue
		}
		matches++
		// First, third, fifth... stay at overflowing; second, fourth,
		// sixth... move to t, per spec §4.5 step 2.
		if matches%2 == 0 {
			s.index[bucket] = uint16(t)
			toggles++
		}
	}
	if toggles < 2 {
		panic(errSplitNoProgress)
	}

	for row := uint16(0); row < RowsPerSheet; row++ {
		for col := 0; col < CellsPerRow; col++ {
			hashLo, hashHi, kvOff := s.Cell(overflowing, row, col)
			if kvOff == 0 {
				continue
			}
			bucket := hashHi % MaxSheets
			if uint32(s.index[bucket]) == t {
				s.SetCell(t, row, col, hashLo, hashHi, kvOff)
				s.SetCell(overflowing, row, col, 0, 0, 0)
			}
		}
	}

	return t, nil
}
