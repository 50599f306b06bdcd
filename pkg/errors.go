package sheetkv

import (
	"errors"

	"github.com/Voskan/sheetkv/internal/counter"
	"github.com/Voskan/sheetkv/internal/sheetidx"
)

// Public sentinel errors (spec §7). Surfaceable errors never mutate state.
// A sheet split that made no progress panics. A failed remap is returned
// as an error from the call that tried to grow the region, and a counter
// value whose count_node_idx is out of range is returned as an error from
// Increment; neither of these panics.
var (
	// ErrKeyInvalid: key_len == 0, or key/value length exceeds the
	// header_8 limits.
	ErrKeyInvalid = sheetidx.ErrKeyInvalid
	// ErrArenaCapped: the KV arena would exceed its configured cap.
	ErrArenaCapped = sheetidx.ErrArenaCapped
	// ErrShardFull: both candidate rows are full and sheet_count has
	// already reached MAX_SHEETS.
	ErrShardFull = sheetidx.ErrShardFull
	// ErrNotACounter: Increment was called on a key whose value length
	// is not exactly 12 bytes.
	ErrNotACounter = counter.ErrNotCounterEligible
	// ErrKeyNotFound is returned by Get/GetRaw/GetUID when the key does not
	// exist; Increment bootstraps a missing key instead (not a spec §7
	// kind by name, but every facade needs it: the
	// underlying Probe.Lookup returning found=false has to surface as
	// something).
	ErrKeyNotFound = errors.New("sheetkv: key not found")
	// ErrUIDInvalid is returned when a UID fails its defensive checks —
	// wrong instance byte, or a cell whose contents no longer match the
	// UID's embedded coordinates.
	ErrUIDInvalid = errors.New("sheetkv: UID does not resolve to a live record")
	// ErrValueLengthChanged is returned by SetUIDValue when the replacement
	// value's length differs from the stored record's (spec §3 "may be
	// rewritten in place only if the length is unchanged").
	ErrValueLengthChanged = errors.New("sheetkv: replacement value length must match the stored record")
)

// ErrLockNotTaken and ErrAlreadyTaken mirror spec §7's LockNotTaken/
// AlreadyTaken kinds for the Ensemble facade's locking; internal/spinlock's
// Acquire reports them as a Status, not an error. Ensemble methods return
// ErrLockNotTaken when Acquire reports NotTaken. No Ensemble method returns
// ErrAlreadyTaken: an AlreadyTaken status is treated as the lock being
// held and the call proceeds.
var (
	ErrLockNotTaken = errors.New("sheetkv: spin bound exceeded before the lock could be taken")
	ErrAlreadyTaken = errors.New("sheetkv: lock already held by the calling goroutine")
)
