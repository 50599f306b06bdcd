package sheetkv

import "github.com/Voskan/sheetkv/internal/sheetidx"

// UIDSize is the width of the compact logical address spec §3 describes:
// {instance:8, bucket:16, row:12, cell:4}, packed little-endian.
const UIDSize = 5

// UID is a 5-byte logical address for a key, stable across sheet splits
// and KV-arena remaps (spec §3). The instance byte is always 0; the
// Ensemble records the owning shard in a separate leading byte of its
// 8-byte ensemble-level UID (see ensemble.go).
type UID [UIDSize]byte

// NoneUID is the all-ones sentinel (spec §3 "The all-ones UID is the
// 'none' sentinel").
var NoneUID = UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// IsNone reports whether u is the none sentinel.
func (u UID) IsNone() bool { return u == NoneUID }

func encodeUID(instance uint8, bucket uint16, row uint16, cell uint8) UID {
	rowCell := (row << 4) | uint16(cell&0x0F)
	return UID{
		instance,
		byte(bucket), byte(bucket >> 8),
		byte(rowCell), byte(rowCell >> 8),
	}
}

func decodeUID(u UID) (instance uint8, bucket uint16, row uint16, cell uint8) {
	instance = u[0]
	bucket = uint16(u[1]) | uint16(u[2])<<8
	rowCell := uint16(u[3]) | uint16(u[4])<<8
	row = rowCell >> 4
	cell = uint8(rowCell & 0x0F)
	return
}

// cellRefToUID packs a sheetidx.CellRef into a bare-instance UID (instance
// byte 0).
func cellRefToUID(ref sheetidx.CellRef) UID {
	return encodeUID(0, ref.Bucket, ref.Row, ref.Col)
}

// uidToCellRef unpacks a bare-instance UID back into a CellRef, rejecting
// anything with a non-zero instance byte (such a UID belongs to an
// Ensemble, not a standalone Instance).
func uidToCellRef(u UID) (sheetidx.CellRef, bool) {
	if u.IsNone() {
		return sheetidx.CellRef{}, false
	}
	instance, bucket, row, cell := decodeUID(u)
	if instance != 0 {
		return sheetidx.CellRef{}, false
	}
	return sheetidx.CellRef{Bucket: bucket, Row: row, Col: cell}, true
}
