package counter

// Direction selects which way Walk traverses a list's count nodes.
const (
	Ascending  = 0 // low-to-high by count
	Descending = 1 // high-to-low by count
)

// Cursor is the walker's position: a count node index and the HKV offset
// within that node's chain currently pointed at (spec §4.7
// "cursor_count, cursor_hkv").
type Cursor struct {
	Count uint32
	HKV   uint32
}

// ZeroCursor is the initial cursor (spec §4.7 "(NONE, NONE)"), resolving
// to the list's low or high endpoint depending on direction.
var ZeroCursor = Cursor{}

// EndCursor is returned once a walk is exhausted or a cursor fails a
// defensive check; it is deliberately outside the live count-node table
// (spec §4.7 "defensive checks reject cursors outside the counts table").
var EndCursor = Cursor{Count: ^uint32(0), HKV: ^uint32(0)}

// Walk advances one step along listID in the given direction from cur,
// returning the HKV offset at that position and the cursor to pass on the
// next call. end is true when the walk has nothing left to emit, in which
// case off and next must be ignored.
//
// Traversal under concurrent Increment on the same list is undefined; the
// caller must quiesce mutations first (spec §4.7).
func (e *Engine) Walk(listID int, direction int, cur Cursor) (off uint32, next Cursor, end bool) {
	if cur == EndCursor {
		return 0, EndCursor, true
	}

	var countIdx, hkvOff uint32
	if cur == ZeroCursor {
		if direction == Ascending {
			countIdx = e.lo[listID]
		} else {
			countIdx = e.hi[listID]
		}
		if countIdx == none {
			return 0, EndCursor, true
		}
		hkvOff = e.nodes[countIdx].headHKV
	} else {
		if cur.Count == none || int(cur.Count) >= len(e.nodes) {
			return 0, EndCursor, true
		}
		val, err := e.valueBytes(cur.HKV)
		if err != nil {
			return 0, EndCursor, true
		}
		cv := decodeCounterValue(val)
		if cv.countNodeIdx != cur.Count {
			return 0, EndCursor, true
		}
		countIdx, hkvOff = cur.Count, cur.HKV
	}

	off = hkvOff
	val, err := e.valueBytes(hkvOff)
	if err != nil {
		return off, EndCursor, false
	}
	cv := decodeCounterValue(val)
	if cv.nextHKV != none {
		return off, Cursor{Count: countIdx, HKV: cv.nextHKV}, false
	}

	var nextNode uint32
	if direction == Ascending {
		nextNode = e.nodes[countIdx].next
	} else {
		nextNode = e.nodes[countIdx].prev
	}
	if nextNode == none {
		return off, EndCursor, false
	}
	return off, Cursor{Count: nextNode, HKV: e.nodes[nextNode].headHKV}, false
}
