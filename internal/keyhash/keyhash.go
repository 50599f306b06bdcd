// Package keyhash implements the "caller hash contract" of spec §6: every
// key-scoped operation is preceded by preparing a 128-bit hash of the key,
// from which four 16-bit lanes are drawn (hi: sheet-bucket selector, lo:
// in-cell tag, r1/r2: primary/alternate row selectors).
//
// The hash function itself is explicitly out of scope (spec §1 treats it
// as "a black-box producing 128 bits"); this package uses two independent
// hash/maphash passes, the same hashing tool an earlier cache's shard
// selection used (shard.hash), since maphash is good enough to
// be a row/bucket selector and introducing a keyed-hash dependency the
// rest of the example pack does not otherwise need would not serve any
// SPEC_FULL.md component better.
//
// Go has no implicit thread-local storage, so rather than "stash the hash
// in TLS" (the C idiom spec §6 describes), Prepare returns the Hash value
// directly and callers thread it through to the operation that needs it —
// the idiomatic Go equivalent of the same contract.
//
// © 2025 sheetkv authors. MIT License.
package keyhash

import "hash/maphash"

// Hash is the 128-bit value spec §3 describes, exposed as its four
// consumed 16-bit lanes.
type Hash struct {
	Hi uint16 // sheet-bucket selector: sheet_index[Hi mod MAX_SHEETS]
	Lo uint16 // in-cell tag, compared against a cell's hash_lo
	R1 uint16 // primary row selector within a sheet
	R2 uint16 // alternate row selector within a sheet; guaranteed R1 != R2
}

var (
	seedA = maphash.MakeSeed()
	seedB = maphash.MakeSeed()
)

// Prepare computes the 128-bit hash of key and extracts the four lanes.
// If R1 == R2, R2 is replaced by the first further 16-bit lane of the hash
// that differs from R1, and then incremented by one until it differs
// (spec §6: "Implementations must ensure the two row-selector lanes
// differ").
func Prepare(key []byte) Hash {
	var ha, hb maphash.Hash
	ha.SetSeed(seedA)
	hb.SetSeed(seedB)
	ha.Write(key)
	hb.Write(key)
	a := ha.Sum64()
	b := hb.Sum64()

	h := Hash{
		Hi: uint16(a),
		Lo: uint16(a >> 16),
		R1: uint16(b),
		R2: uint16(b >> 16),
	}
	if h.R1 == h.R2 {
		// Fall back to further lanes of b, then a, incrementing by an odd
		// step so repeated collisions cannot recur, per the reference's
		// documented strategy (spec §6, §9 "Hash contract").
		for _, lane := range [...]uint16{uint16(b >> 32), uint16(b >> 48), uint16(a >> 32), uint16(a >> 48)} {
			if lane != h.R1 {
				h.R2 = lane
				break
			}
		}
		for h.R1 == h.R2 {
			h.R2 += 1
		}
	}
	return h
}
