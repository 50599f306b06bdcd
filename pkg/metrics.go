// metrics.go is a thin abstraction over Prometheus, following the
// pkg/metrics.go metricsSink/noopMetrics/promMetrics shape
// almost verbatim: when the caller passes a *prometheus.Registry via
// WithMetrics, labeled collectors are created and registered; otherwise a
// no-op sink absorbs every call at zero cost.
//
// © 2025 sheetkv authors. MIT License.
package sheetkv

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal interface Instance and Ensemble call into;
// it is not exposed outside the package.
type metricsSink interface {
	incPut(shard uint8)
	incGet(shard uint8)
	incMiss(shard uint8)
	incIncrement(shard uint8)
	incSplit(shard uint8)
	incLockNotTaken(shard uint8)
	setSheetCount(shard uint8, n uint64)
	setArenaBytes(shard uint8, n uint64)
}

type noopMetrics struct{}

func (noopMetrics) incPut(uint8)                {}
func (noopMetrics) incGet(uint8)                {}
func (noopMetrics) incMiss(uint8)               {}
func (noopMetrics) incIncrement(uint8)          {}
func (noopMetrics) incSplit(uint8)              {}
func (noopMetrics) incLockNotTaken(uint8)       {}
func (noopMetrics) setSheetCount(uint8, uint64) {}
func (noopMetrics) setArenaBytes(uint8, uint64) {}

type promMetrics struct {
	puts         *prometheus.CounterVec
	gets         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	increments   *prometheus.CounterVec
	splits       *prometheus.CounterVec
	lockNotTaken *prometheus.CounterVec
	sheetCount   *prometheus.GaugeVec
	arenaBytes   *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}
	pm := &promMetrics{
		puts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "puts_total", Help: "Number of Put/Increment-bootstrap calls.",
		}, label),
		gets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "gets_total", Help: "Number of Get calls that found a key.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "misses_total", Help: "Number of Get calls that found nothing.",
		}, label),
		increments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "increments_total", Help: "Number of successful Increment calls.",
		}, label),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "sheet_splits_total", Help: "Number of sheet splits performed.",
		}, label),
		lockNotTaken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetkv", Name: "lock_not_taken_total", Help: "Number of times a shard spinlock exceeded its spin bound.",
		}, label),
		sheetCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sheetkv", Name: "sheet_count", Help: "Live physical sheet count.",
		}, label),
		arenaBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sheetkv", Name: "kv_arena_bytes", Help: "Bytes used in the KV arena.",
		}, label),
	}
	reg.MustRegister(pm.puts, pm.gets, pm.misses, pm.increments, pm.splits, pm.lockNotTaken, pm.sheetCount, pm.arenaBytes)
	return pm
}

func (m *promMetrics) incPut(shard uint8)       { m.puts.WithLabelValues(shardLabel(shard)).Inc() }
func (m *promMetrics) incGet(shard uint8)       { m.gets.WithLabelValues(shardLabel(shard)).Inc() }
func (m *promMetrics) incMiss(shard uint8)      { m.misses.WithLabelValues(shardLabel(shard)).Inc() }
func (m *promMetrics) incIncrement(shard uint8) { m.increments.WithLabelValues(shardLabel(shard)).Inc() }
func (m *promMetrics) incSplit(shard uint8)     { m.splits.WithLabelValues(shardLabel(shard)).Inc() }
func (m *promMetrics) incLockNotTaken(shard uint8) {
	m.lockNotTaken.WithLabelValues(shardLabel(shard)).Inc()
}
func (m *promMetrics) setSheetCount(shard uint8, n uint64) {
	m.sheetCount.WithLabelValues(shardLabel(shard)).Set(float64(n))
}
func (m *promMetrics) setArenaBytes(shard uint8, n uint64) {
	m.arenaBytes.WithLabelValues(shardLabel(shard)).Set(float64(n))
}

func shardLabel(shard uint8) string { return strconv.Itoa(int(shard)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
