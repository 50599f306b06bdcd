// loader.go collapses concurrent bootstraps of the same not-yet-existing
// counter-eligible key into a single winner, grounded on the prior
// loaderGroup (singleflight.Group keyed by a precomputed hash string),
// generalized from "dedupe a missing cache load" to "dedupe a missing
// counter placeholder install" (spec §4.6 "bootstrap").
//
// © 2025 sheetkv authors. MIT License.
package sheetkv

import (
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/Voskan/sheetkv/internal/keyhash"
)

// loaderGroup is the zero-value-usable singleflight wrapper Instance.
// Increment uses so that when several goroutines race to increment a
// brand new key, only one of them inserts the key and installs its
// counter placeholder; the rest observe the same resulting UID.
type loaderGroup struct {
	g singleflight.Group
}

// bootstrapOnce runs fn at most once for a given keyHash among concurrent
// callers; every other concurrent caller with the same keyHash blocks and
// receives fn's result without running it again.
func (lg *loaderGroup) bootstrapOnce(keyHash uint64, fn func() (UID, error)) (UID, error, bool) {
	k := strconv.FormatUint(keyHash, 16)
	v, err, shared := lg.g.Do(k, func() (any, error) {
		return fn()
	})
	if err != nil {
		return UID{}, err, shared
	}
	return v.(UID), nil, shared
}

// hashKey64 folds a prepared Hash's four lanes into a single uint64, used
// only as a singleflight dedup key, never for addressing. A collision
// here merely serializes two unrelated keys' bootstraps behind the same
// singleflight call, which the re-check inside Increment's closure makes
// harmless.
func hashKey64(h keyhash.Hash) uint64 {
	return uint64(h.Hi)<<48 | uint64(h.Lo)<<32 | uint64(h.R1)<<16 | uint64(h.R2)
}
