package spinlock

import (
	"bytes"
	"runtime"
	"strconv"
)

// Token identifies the calling goroutine for SpinLock purposes. The zero
// Token never occurs in practice (runtime goroutine ids start at 1) and is
// reserved inside SpinLock to mean "unheld", matching the reference's
// tid == 0 sentinel.
type Token uint64

// CurrentToken derives a Token for the calling goroutine by parsing the
// header line of runtime.Stack's output ("goroutine 123 [running]:") —
// the closest Go equivalent of SXE_GETTID(), since goroutines have no
// public numeric identifier. Expensive relative to a raw syscall, so
// callers obtain it once per critical section and pass it down rather
// than call it on every Acquire/Release.
func CurrentToken() Token {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return Token(id)
}
