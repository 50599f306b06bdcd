package sheetkv

import "github.com/Voskan/sheetkv/internal/keyhash"

// Hash is the 128-bit value every key-scoped operation is prepared
// against (spec §6 "caller hash contract"), exposed as its four consumed
// 16-bit lanes. Every Instance/Ensemble method takes the key itself and
// computes its Hash internally with PrepareHash; no method accepts a
// prepared Hash, so each call on the same key hashes it again.
type Hash = keyhash.Hash

// PrepareHash computes the 128-bit hash of key and its four lanes.
func PrepareHash(key []byte) Hash {
	return keyhash.Prepare(key)
}
