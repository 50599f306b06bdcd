// Package counter implements the counter engine and walker (spec §4.6,
// §4.7): 256 independent counter-sorted doubly-linked list systems layered
// over the HKV arena. Each count node owns a doubly-linked chain of HKV
// records tied to that count; a key becomes "counter-eligible" the moment
// its stored value is exactly the 12-byte {count_node_idx, next_hkv_off,
// prev_hkv_off} triple this package reads and rewrites in place.
//
// Grounded on the flat-array-plus-free-list shape of
// original_source/libsxe/lib-sxe-pool/sxe-pool.c and on an earlier
// index-based ring (genring's idCtr/free-slot reuse), generalized
// from "one free-list" to "256 independent sorted lists sharing one
// free-list of count nodes" per spec §3 "Counter list".
//
// © 2025 sheetkv authors. MIT License.
package counter

import (
	"encoding/binary"
	"errors"

	"github.com/Voskan/sheetkv/internal/hkv"
	"github.com/Voskan/sheetkv/internal/memarena"
)

// Lists is the number of independent counter orderings (spec §3 COUNT_LISTS).
const Lists = 256

// ValueSize is the exact value length that makes a key counter-eligible
// (spec §3 "A key becomes counter-eligible precisely when its value length
// equals this 12-byte size").
const ValueSize = 12

// none is the reserved "no node" / "no HKV" sentinel. Count node index 0
// and HKV offset 0 are both reserved exactly this way in spec §3/§4.2.
const none = 0

// ErrNotCounterEligible is returned when the HKV at the given offset does
// not hold a 12-byte counter value (spec §3, §4.6 "increment preconditions").
var ErrNotCounterEligible = errors.New("counter: value is not exactly 12 bytes; key is not counter-eligible")

// ErrCorruptCounterState is returned when a counter value's embedded
// count_node_idx falls outside the live node table — a defensive check,
// never expected in a correctly driven engine.
var ErrCorruptCounterState = errors.New("counter: count_node_idx out of range")

// countNode is one entry in a list's ascending-by-count chain (spec §3
// "count node ... {count: u48, next: u32, prev: u32, head_hkv: u32}").
// count is widened to u64 in memory; only the low 48 bits are meaningful.
type countNode struct {
	count   uint64
	next    uint32
	prev    uint32
	headHKV uint32
}

// counterValue is the 12-byte payload stored as an eligible key's HKV
// value (spec §3).
type counterValue struct {
	countNodeIdx uint32
	nextHKV      uint32
	prevHKV      uint32
}

func decodeCounterValue(b []byte) counterValue {
	return counterValue{
		countNodeIdx: binary.LittleEndian.Uint32(b[0:4]),
		nextHKV:      binary.LittleEndian.Uint32(b[4:8]),
		prevHKV:      binary.LittleEndian.Uint32(b[8:12]),
	}
}

func (v counterValue) encodeInto(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], v.countNodeIdx)
	binary.LittleEndian.PutUint32(b[4:8], v.nextHKV)
	binary.LittleEndian.PutUint32(b[8:12], v.prevHKV)
}

// Engine owns the count-node table (shared by all 256 lists, each with its
// own free-standing lo/hi endpoints) and decodes/rewrites counter values
// directly in the KV arena's backing bytes.
type Engine struct {
	kv       *memarena.Arena
	nodes    []countNode
	freeHead uint32
	live     uint32
	lo       [Lists]uint32
	hi       [Lists]uint32
}

// NewEngine builds a counter engine over an existing KV arena (owned by
// the caller, shared with the probe engine).
func NewEngine(kv *memarena.Arena) *Engine {
	return &Engine{kv: kv, nodes: []countNode{{}}}
}

func (e *Engine) valueBytes(off uint32) ([]byte, error) {
	rec, err := hkv.Decode(e.kv.Bytes(off))
	if err != nil {
		return nil, err
	}
	if len(rec.Value) != ValueSize {
		return nil, ErrNotCounterEligible
	}
	return rec.Value, nil
}

func (e *Engine) allocNode(count uint64) uint32 {
	e.live++
	if e.freeHead != none {
		idx := e.freeHead
		e.freeHead = e.nodes[idx].next
		e.nodes[idx] = countNode{count: count}
		return idx
	}
	e.nodes = append(e.nodes, countNode{count: count})
	return uint32(len(e.nodes) - 1)
}

func (e *Engine) freeNode(idx uint32) {
	e.live--
	e.nodes[idx] = countNode{next: e.freeHead}
	e.freeHead = idx
}

// NodesInUse returns the number of live count nodes across all lists
// (spec §8 scenario 3 "counts_used").
func (e *Engine) NodesInUse() int { return int(e.live) }

// NodeCount returns the count value stored at a node index, for tests and
// diagnostics.
func (e *Engine) NodeCount(idx uint32) uint64 { return e.nodes[idx].count }

// NodeIndexOf returns the count node an eligible key's HKV currently
// belongs to.
func (e *Engine) NodeIndexOf(off uint32) (uint32, error) {
	val, err := e.valueBytes(off)
	if err != nil {
		return 0, err
	}
	return decodeCounterValue(val).countNodeIdx, nil
}

// prependHKV makes off the new head of nodeIdx's HKV chain, fixing up the
// old head's prev pointer.
func (e *Engine) prependHKV(nodeIdx uint32, off uint32, val []byte) {
	oldHead := e.nodes[nodeIdx].headHKV
	cv := counterValue{countNodeIdx: nodeIdx, nextHKV: oldHead, prevHKV: none}
	cv.encodeInto(val)
	if oldHead != none {
		if ov, err := e.valueBytes(oldHead); err == nil {
			oc := decodeCounterValue(ov)
			oc.prevHKV = off
			oc.encodeInto(ov)
		}
	}
	e.nodes[nodeIdx].headHKV = off
}

// setSoleHKV makes off the lone occupant of a freshly allocated node.
func (e *Engine) setSoleHKV(nodeIdx uint32, off uint32, val []byte) {
	cv := counterValue{countNodeIdx: nodeIdx, nextHKV: none, prevHKV: none}
	cv.encodeInto(val)
	e.nodes[nodeIdx].headHKV = off
}

// Bootstrap installs a freshly put_val'd 12-byte-value key at count 1,
// reusing the list's lowest node if it is already at count 1 (spec §4.6
// "bootstrap").
func (e *Engine) Bootstrap(listID int, off uint32) error {
	val, err := e.valueBytes(off)
	if err != nil {
		return err
	}

	lo := e.lo[listID]
	var target uint32
	if lo != none && e.nodes[lo].count == 1 {
		target = lo
	} else {
		target = e.allocNode(1)
		e.nodes[target].next = lo
		e.nodes[target].prev = none
		if lo != none {
			e.nodes[lo].prev = target
		} else {
			e.hi[listID] = target
		}
		e.lo[listID] = target
	}
	e.prependHKV(target, off, val)
	return nil
}

// unlink removes off from nodeIdx's HKV chain, patching its chain
// neighbors, and reports whether the chain is now empty.
func (e *Engine) unlink(nodeIdx uint32, off uint32, cv counterValue) (headEmpty bool) {
	if cv.prevHKV != none {
		if pv, err := e.valueBytes(cv.prevHKV); err == nil {
			pc := decodeCounterValue(pv)
			pc.nextHKV = cv.nextHKV
			pc.encodeInto(pv)
		}
	}
	if cv.nextHKV != none {
		if nv, err := e.valueBytes(cv.nextHKV); err == nil {
			nc := decodeCounterValue(nv)
			nc.prevHKV = cv.prevHKV
			nc.encodeInto(nv)
		}
	}
	if e.nodes[nodeIdx].headHKV == off {
		e.nodes[nodeIdx].headHKV = cv.nextHKV
	}
	return e.nodes[nodeIdx].headHKV == none
}

// freeAndRelink removes an emptied node from its list, stitching its
// former neighbors together and fixing the list's lo/hi endpoints.
func (e *Engine) freeAndRelink(listID int, nodeIdx, prevC, nextC uint32) {
	if prevC != none {
		e.nodes[prevC].next = nextC
	} else {
		e.lo[listID] = nextC
	}
	if nextC != none {
		e.nodes[nextC].prev = prevC
	} else {
		e.hi[listID] = prevC
	}
	e.freeNode(nodeIdx)
}

// linkInto inserts off, now valued at newCount, immediately after leftC and
// before nextC — allocating a new terminal node, prepending to an existing
// node already at newCount, or splicing a new node between the two, per
// spec §4.6 "general path".
func (e *Engine) linkInto(listID int, leftC, nextC uint32, newCount uint64, off uint32, val []byte) {
	switch {
	case nextC == none:
		idx := e.allocNode(newCount)
		e.nodes[idx].prev = leftC
		e.nodes[idx].next = none
		if leftC != none {
			e.nodes[leftC].next = idx
		} else {
			e.lo[listID] = idx
		}
		e.hi[listID] = idx
		e.setSoleHKV(idx, off, val)
	case e.nodes[nextC].count == newCount:
		e.prependHKV(nextC, off, val)
	default:
		idx := e.allocNode(newCount)
		e.nodes[idx].prev = leftC
		e.nodes[idx].next = nextC
		if leftC != none {
			e.nodes[leftC].next = idx
		} else {
			e.lo[listID] = idx
		}
		e.nodes[nextC].prev = idx
		e.setSoleHKV(idx, off, val)
	}
}

// Increment implements spec §4.6: bump the counter-eligible key at off by
// one, taking the O(1) fast path when off is the sole occupant of a node
// already below its successor's count, and the general unlink/relink path
// otherwise.
func (e *Engine) Increment(listID int, off uint32) (newCount uint64, err error) {
	val, err := e.valueBytes(off)
	if err != nil {
		return 0, err
	}
	cv := decodeCounterValue(val)
	thisC := cv.countNodeIdx
	if thisC == none || int(thisC) >= len(e.nodes) {
		return 0, ErrCorruptCounterState
	}

	nextC := e.nodes[thisC].next
	newCount = e.nodes[thisC].count + 1

	if e.nodes[thisC].headHKV == off && cv.nextHKV == none &&
		(nextC == none || e.nodes[nextC].count > newCount) {
		e.nodes[thisC].count = newCount
		return newCount, nil
	}

	prevC := e.nodes[thisC].prev
	headEmpty := e.unlink(thisC, off, cv)
	leftC := thisC
	if headEmpty {
		e.freeAndRelink(listID, thisC, prevC, nextC)
		leftC = prevC
	}
	e.linkInto(listID, leftC, nextC, newCount, off, val)
	return newCount, nil
}
