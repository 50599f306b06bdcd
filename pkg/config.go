// config.go defines the internal configuration object and the functional
// options New accepts, following pkg/config.go's established shape
// (defaultConfig / Option / applyOptions) re-keyed to this domain's
// knobs: initial sheet count, KV arena cap, and spin bound, in place of
// the prior capacity/TTL/shard-count/weight-fn/eject-callback set.
//
// © 2025 sheetkv authors. MIT License.
package sheetkv

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/sheetkv/internal/sheetidx"
	"github.com/Voskan/sheetkv/internal/spinlock"
)

// Option configures an Instance (or an Ensemble, which applies the same
// Options to every shard it constructs).
type Option func(*config)

type config struct {
	initialSheets int
	kvCap         uint64 // 0 means the memarena default (2^32, spec KV_MAX)
	spinBound     uint

	registry *prometheus.Registry
	logger   *zap.Logger
}

func defaultConfig() *config {
	return &config{
		initialSheets: 1,
		kvCap:         0,
		spinBound:     spinlock.DefaultBound,
		logger:        zap.NewNop(),
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default): the hot path never pays for a label lookup it
// doesn't need.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. sheetkv never logs on the hot
// path; only slow events (sheet split, reboot) are emitted, at Warn
// level.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInitialSheets sets how many physical sheets an Instance starts
// with (spec §3 "keys_at_start" sizing, restored verbatim by Reboot).
func WithInitialSheets(n int) Option {
	return func(c *config) { c.initialSheets = n }
}

// WithArenaCap caps the KV arena at capBytes. 0 (the default) means the
// full KV_MAX (2^32) address space spec §3 allows.
func WithArenaCap(capBytes uint64) Option {
	return func(c *config) { c.kvCap = capBytes }
}

// WithSpinBound overrides the per-Instance (or per-shard, under an
// Ensemble) spinlock's spin bound.
func WithSpinBound(n uint) Option {
	return func(c *config) { c.spinBound = n }
}

func applyOptions(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.initialSheets <= 0 {
		return nil, errInvalidInitialSheets
	}
	if cfg.initialSheets > sheetidx.MaxSheets {
		return nil, errInvalidInitialSheets
	}
	return cfg, nil
}

var errInvalidInitialSheets = errors.New("sheetkv: initial sheet count must be in [1, MAX_SHEETS]")
