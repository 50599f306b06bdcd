// Package bench provides reproducible micro-benchmarks for sheetkv.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks use a fixed key/value shape so results are comparable
// across versions:
//   • Key   – 8 random bytes (hashed through the same path a production
//             key would take)
//   • Value – 64-byte payload
//
// We measure:
//   1. Put           – write-only workload (first insert of each key)
//   2. Get           – read-only workload (after warm-up)
//   3. GetParallel   – highly concurrent reads (b.RunParallel)
//   4. Increment     – 90% bumps of existing counters, 10% cold bootstraps
//   5. Walk          – ascending counter-list traversal
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live in package sheetkv; this file is only for
// performance.
//
// © 2025 sheetkv authors. MIT License.

package bench

import (
	"math/rand"
	"runtime"
	"testing"

	"github.com/Voskan/sheetkv/internal/counter"
	sheetkv "github.com/Voskan/sheetkv/pkg"
)

const (
	keys = 1 << 16 // 64K keys for dataset
)

func newTestInstance(b *testing.B) *sheetkv.Instance {
	inst, err := sheetkv.New(sheetkv.WithInitialSheets(64))
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	return inst
}

// global dataset reused across benches to avoid reallocating large slices.
var ds = func() [][]byte {
	rnd := rand.New(rand.NewSource(42))
	arr := make([][]byte, keys)
	for i := range arr {
		k := make([]byte, 8)
		rnd.Read(k)
		arr[i] = k
	}
	return arr
}()

var val = make([]byte, 64)

func BenchmarkPut(b *testing.B) {
	inst := newTestInstance(b)
	defer inst.Destroy()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		if _, err := inst.Put(key, val); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
}

func BenchmarkGet(b *testing.B) {
	inst := newTestInstance(b)
	defer inst.Destroy()
	for _, k := range ds {
		if _, err := inst.Put(k, val); err != nil {
			b.Fatalf("warm-up Put: %v", err)
		}
	}
	scratch := sheetkv.NewScratch()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		if _, _, err := inst.Get(k, scratch); err != nil {
			b.Fatalf("Get: %v", err)
		}
	}
}

func BenchmarkGetParallel(b *testing.B) {
	inst := newTestInstance(b)
	defer inst.Destroy()
	for _, k := range ds {
		if _, err := inst.Put(k, val); err != nil {
			b.Fatalf("warm-up Put: %v", err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		scratch := sheetkv.NewScratch()
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			inst.Get(ds[idx], scratch)
		}
	})
}

func BenchmarkIncrement(b *testing.B) {
	inst := newTestInstance(b)
	defer inst.Destroy()
	// Preload 90% of keys so 10% of increments hit the cold bootstrap path.
	for i, k := range ds {
		if i%10 != 0 {
			if _, _, err := inst.Increment(0, k); err != nil {
				b.Fatalf("warm-up Increment: %v", err)
			}
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		if _, _, err := inst.Increment(0, k); err != nil {
			b.Fatalf("Increment: %v", err)
		}
	}
}

func BenchmarkWalk(b *testing.B) {
	inst := newTestInstance(b)
	defer inst.Destroy()
	for _, k := range ds {
		if _, _, err := inst.Increment(0, k); err != nil {
			b.Fatalf("warm-up Increment: %v", err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	cur := counter.ZeroCursor
	for i := 0; i < b.N; i++ {
		_, _, next, end := inst.Walk(0, counter.Ascending, cur)
		if end {
			cur = counter.ZeroCursor
			continue
		}
		cur = next
	}
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
