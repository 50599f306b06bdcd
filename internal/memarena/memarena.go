// Package memarena implements the growable, mmap-backed byte region behind
// the KV arena (spec §4.2) and the sheet store (§4.3). Both grow by
// remapping in whole-page (or whole-chunk) steps and are addressed by plain
// integer offsets rather than live pointers, so that growth never
// invalidates anything except a short-lived borrow (see Bytes/BytesN
// below). The counter engine's count-node table is not held in an Arena;
// it is a plain Go slice.
//
// Concurrency
// -----------
// Arena is *not* thread-safe. Every mutating call (Reserve) must be
// externally serialized — in sheetkv that serialization is done by the
// caller of the owning Instance, or by the Ensemble facade's per-shard
// spinlock. This mirrors
// the internal/arena and internal/genring packages this was ported from, which make
// the identical assumption.
//
// © 2025 sheetkv authors. MIT License.
package memarena

import (
	"errors"
	"os"
)

// ErrFull is returned by Reserve when growth would exceed the arena's
// configured cap or the 32-bit offset space (spec §3 KV_MAX = 2^32).
var ErrFull = errors.New("memarena: arena full")

// pageSize is resolved once; all growth steps are rounded up to it.
var pageSize = os.Getpagesize()

// backend abstracts the OS-specific mapping primitive. Implementations
// live in memarena_linux.go, memarena_unix.go, and memarena_other.go.
type backend interface {
	// mapAnon creates a fresh anonymous mapping of at least size bytes.
	mapAnon(size int) ([]byte, error)
	// grow remaps cur to be at least newSize bytes, preserving its
	// contents. The returned slice may or may not share memory with cur.
	grow(cur []byte, newSize int) ([]byte, error)
	// unmap releases the mapping.
	unmap(b []byte) error
}

// Arena is a contiguous, growable byte buffer referenced by 32-bit
// offsets. Offset 0 has no special meaning to Arena itself — callers that
// need a reserved "none" sentinel (the KV arena does, per spec §3) reserve
// it explicitly right after construction.
type Arena struct {
	buf  []byte
	used uint64
	cap  uint64 // hard cap in bytes; 0 means the 32-bit address space cap
	be   backend
}

// defaultCap is the spec's KV_MAX: offsets are 32-bit, so the arena can
// never grow past 2^32 bytes regardless of a caller-supplied cap.
const defaultCap = uint64(1) << 32

// New constructs an arena with an initial mapping of at least initial
// bytes (rounded up to a page). A hardCap of 0 means "no cap besides the
// 32-bit offset space".
func New(initial int, hardCap uint64) (*Arena, error) {
	if initial < 0 {
		initial = 0
	}
	be := newBackend()
	size := roundUpPage(initial)
	if size == 0 {
		size = pageSize
	}
	buf, err := be.mapAnon(size)
	if err != nil {
		return nil, err
	}
	cap := hardCap
	if cap == 0 || cap > defaultCap {
		cap = defaultCap
	}
	return &Arena{buf: buf, cap: cap, be: be}, nil
}

func roundUpPage(n int) int {
	if n <= 0 {
		return 0
	}
	return ((n + pageSize - 1) / pageSize) * pageSize
}

// Reserve grows the arena if needed and returns the offset of a fresh,
// zero-initialized region of n bytes. Growth, when it happens, adds
// ceil(n/page)*page + page bytes to the backing mapping, per spec §4.2.
func (a *Arena) Reserve(n int) (uint32, error) {
	if n < 0 {
		return 0, errors.New("memarena: negative reservation")
	}
	need := a.used + uint64(n)
	if need < a.used { // overflow
		return 0, ErrFull
	}
	if need > a.cap {
		return 0, ErrFull
	}
	if need > uint64(len(a.buf)) {
		growth := roundUpPage(n) + pageSize
		newSize := len(a.buf) + growth
		if uint64(newSize) > a.cap {
			newSize = int(a.cap)
		}
		if uint64(newSize) < need {
			return 0, ErrFull
		}
		grown, err := a.be.grow(a.buf, newSize)
		if err != nil {
			return 0, err
		}
		a.buf = grown
	}
	off := a.used
	a.used = need
	if off > uint64(^uint32(0)) {
		return 0, ErrFull
	}
	return uint32(off), nil
}

// Bytes returns a view of the arena starting at offset and running to the
// end of the *used* region. The slice aliases arena memory and is valid
// only until the next call to Reserve (which may remap and relocate the
// backing memory).
func (a *Arena) Bytes(offset uint32) []byte {
	if uint64(offset) >= a.used {
		return nil
	}
	return a.buf[offset:a.used]
}

// BytesN returns a fixed-length view [offset, offset+n) of arena memory,
// valid under the same rules as Bytes.
func (a *Arena) BytesN(offset uint32, n int) []byte {
	end := uint64(offset) + uint64(n)
	if end > a.used {
		return nil
	}
	return a.buf[offset:end]
}

// Size returns the current backing mapping size in bytes.
func (a *Arena) Size() uint64 { return uint64(len(a.buf)) }

// Used returns the number of bytes handed out via Reserve so far.
func (a *Arena) Used() uint64 { return a.used }

// Close releases the backing mapping. The arena must not be used
// afterwards.
func (a *Arena) Close() error {
	if a.buf == nil {
		return nil
	}
	err := a.be.unmap(a.buf)
	a.buf = nil
	return err
}
