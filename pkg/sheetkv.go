// sheetkv.go is the Instance facade (spec §4.8): it owns the sheet index,
// sheet store, KV arena, and counter engine, and exposes put/get/increment/
// walk by key or by compact UID.
//
// Grounded on pkg/cache.go's former Cache[K,V] constructor/option-
// application shape (validate args, build a config, applyOptions,
// construct the owned subsystems), generalized from "N generic shards"
// to "the three owned regions of one instance". The thread-local scratch
// buffer spec §4.8/§9 describes has no Go equivalent (no implicit TLS),
// so it is modeled as an explicit Scratch handle the caller holds and
// passes to the copy-returning accessors, mirroring how spinlock.Token
// and keyhash.Hash are threaded through explicitly elsewhere in this
// module.
//
// © 2025 sheetkv authors. MIT License.
package sheetkv

import (
	"go.uber.org/zap"

	"github.com/Voskan/sheetkv/internal/counter"
	"github.com/Voskan/sheetkv/internal/memarena"
	"github.com/Voskan/sheetkv/internal/sheetidx"
)

// initialKVArenaBytes is a sizing hint, not a spec constant: the initial
// KV arena mapping is this many bytes per configured initial sheet,
// enough headroom that a freshly constructed Instance rarely pays for an
// immediate mremap.
const initialKVArenaBytes = 1 << 16

// Instance owns one sheet index, sheet store, KV arena, and counter
// engine (spec §4.8). It addresses up to KV_MAX (2^32) bytes of value
// data and roughly MAX_SHEETS*KEYS_PER_SHEET keys.
//
// Instance is not internally synchronized: spec §4.9 places locking at
// the Ensemble layer (one spinlock per shard), so a bare Instance assumes
// the caller already serializes concurrent access, exactly as the
// Ensemble facade does on its behalf.
type Instance struct {
	cfg     *config
	store   *sheetidx.Store
	kv      *memarena.Arena
	probe   *sheetidx.Probe
	counter *counter.Engine
	loader  loaderGroup
	logger  *zap.Logger
	metrics metricsSink
	shardID uint8 // set by Ensemble; 0 for a standalone Instance

	lastSplitsTotal uint64
}

// New constructs a standalone Instance.
func New(opts ...Option) (*Instance, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newInstance(cfg, 0)
}

func newInstance(cfg *config, shardID uint8) (*Instance, error) {
	store, err := sheetidx.NewStore(cfg.initialSheets)
	if err != nil {
		return nil, err
	}

	kv, err := memarena.New(cfg.initialSheets*initialKVArenaBytes, cfg.kvCap)
	if err != nil {
		store.Close()
		return nil, err
	}
	// Offset 0 is the reserved "none" sentinel (spec §3, §4.2); the owner
	// of the arena reserves it once, up front.
	if _, err := kv.Reserve(1); err != nil {
		store.Close()
		kv.Close()
		return nil, err
	}

	return &Instance{
		cfg:     cfg,
		store:   store,
		kv:      kv,
		probe:   sheetidx.NewProbe(store, kv),
		counter: counter.NewEngine(kv),
		logger:  cfg.logger,
		metrics: newMetricsSink(cfg.registry),
		shardID: shardID,
	}, nil
}

// Scratch is an explicit, per-caller growable buffer standing in for the
// thread-local scratch spec §4.8/§9 describes. Typically one per
// goroutine; it grows on demand to the largest record accessed through it
// and never shrinks.
type Scratch struct {
	buf []byte
}

// NewScratch returns an empty Scratch ready to grow on first use.
func NewScratch() *Scratch { return &Scratch{} }

func (s *Scratch) copyFrom(src []byte) []byte {
	if cap(s.buf) < len(src) {
		s.buf = make([]byte, len(src))
	}
	s.buf = s.buf[:len(src)]
	copy(s.buf, src)
	return s.buf
}

// Put inserts key/value and returns its UID. Put is idempotent: spec §3's
// append-only model and invariant 2 ("every live key occupies exactly one
// cell") leave no room for re-inserting an existing key, so a Put on an
// already-present key is a no-op that returns the existing UID rather
// than an error or a second cell.
func (inst *Instance) Put(key, value []byte) (UID, error) {
	h := PrepareHash(key)
	if _, ref, found := inst.probe.Lookup(h, key); found {
		return cellRefToUID(ref), nil
	}
	_, ref, err := inst.probe.Insert(h, key, value)
	if err != nil {
		return UID{}, err
	}
	inst.metrics.incPut(inst.shardID)
	inst.metrics.setSheetCount(inst.shardID, uint64(inst.store.SheetCount()))
	inst.metrics.setArenaBytes(inst.shardID, inst.kv.Used())
	inst.recordSplitDelta()
	return cellRefToUID(ref), nil
}

// GetRaw looks up key and returns a direct view into the KV arena (spec
// §4.8 "get_hkv_raw" + "get_uid"), valid only until the next mutating
// call on this Instance.
func (inst *Instance) GetRaw(key []byte) (value []byte, uid UID, err error) {
	h := PrepareHash(key)
	off, ref, found := inst.probe.Lookup(h, key)
	if !found {
		inst.metrics.incMiss(inst.shardID)
		return nil, UID{}, ErrKeyNotFound
	}
	inst.metrics.incGet(inst.shardID)
	rec, derr := inst.probe.DecodeAt(off)
	if derr != nil {
		return nil, UID{}, derr
	}
	return rec.Value, cellRefToUID(ref), nil
}

// Get looks up key and returns a copy of its value in scratch, safe to
// retain across subsequent mutating calls (spec §4.8's "thread-local
// copy" accessor).
func (inst *Instance) Get(key []byte, scratch *Scratch) (value []byte, uid UID, err error) {
	raw, uid, err := inst.GetRaw(key)
	if err != nil {
		return nil, UID{}, err
	}
	return scratch.copyFrom(raw), uid, nil
}

// GetUID resolves key to its UID without decoding the value (spec §4.8
// "get_uid").
func (inst *Instance) GetUID(key []byte) (UID, error) {
	h := PrepareHash(key)
	_, ref, found := inst.probe.Lookup(h, key)
	if !found {
		return UID{}, ErrKeyNotFound
	}
	return cellRefToUID(ref), nil
}

// GetUIDValueRaw resolves uid and returns a direct view of its value
// (spec §4.8 "get_uid_hkv_raw"), valid only until the next mutating
// call. It fails with ErrUIDInvalid if uid's cell no longer holds a live
// record.
func (inst *Instance) GetUIDValueRaw(uid UID) ([]byte, error) {
	ref, ok := uidToCellRef(uid)
	if !ok {
		return nil, ErrUIDInvalid
	}
	_, _, kvOff := inst.probe.CellAt(ref)
	if kvOff == 0 {
		return nil, ErrUIDInvalid
	}
	rec, err := inst.probe.DecodeAt(kvOff)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// GetUIDValue resolves uid and copies its value into scratch (spec §4.8
// "get_uid_hkv").
func (inst *Instance) GetUIDValue(uid UID, scratch *Scratch) ([]byte, error) {
	raw, err := inst.GetUIDValueRaw(uid)
	if err != nil {
		return nil, err
	}
	return scratch.copyFrom(raw), nil
}

// SetUIDValue re-persists newValue at uid's cell (spec §4.8
// "set_uid_hkv"). The new value's length must equal the stored length;
// any other mismatch surfaces as ErrValueLengthChanged.
func (inst *Instance) SetUIDValue(uid UID, newValue []byte) error {
	ref, ok := uidToCellRef(uid)
	if !ok {
		return ErrUIDInvalid
	}
	_, _, kvOff := inst.probe.CellAt(ref)
	if kvOff == 0 {
		return ErrUIDInvalid
	}
	if err := inst.probe.SetValueInPlace(kvOff, newValue); err != nil {
		return ErrValueLengthChanged
	}
	return nil
}

// Increment bumps key's counter on list listID by one, bootstrapping the
// key at count 1 the first time it is incremented (spec §4.6
// "increment"/"bootstrap"). Concurrent first-time Increment calls on the
// same key are collapsed through loaderGroup so only one goroutine
// performs the Insert+Bootstrap.
func (inst *Instance) Increment(listID int, key []byte) (newCount uint64, uid UID, err error) {
	h := PrepareHash(key)
	if off, ref, found := inst.probe.Lookup(h, key); found {
		newCount, err = inst.counter.Increment(listID, off)
		if err != nil {
			return 0, UID{}, err
		}
		inst.metrics.incIncrement(inst.shardID)
		return newCount, cellRefToUID(ref), nil
	}

	keyHash := hashKey64(h)
	result, err, _ := inst.loader.bootstrapOnce(keyHash, func() (UID, error) {
		if _, ref2, found2 := inst.probe.Lookup(h, key); found2 {
			return cellRefToUID(ref2), nil
		}
		placeholder := make([]byte, counter.ValueSize)
		off2, ref2, ierr := inst.probe.Insert(h, key, placeholder)
		if ierr != nil {
			return UID{}, ierr
		}
		if berr := inst.counter.Bootstrap(listID, off2); berr != nil {
			return UID{}, berr
		}
		return cellRefToUID(ref2), nil
	})
	if err != nil {
		return 0, UID{}, err
	}
	inst.metrics.incPut(inst.shardID)
	inst.metrics.incIncrement(inst.shardID)
	inst.recordSplitDelta()
	return 1, result, nil
}

// Walk advances one step along listID (spec §4.7): Ascending is low-to-
// high, Descending is high-to-low. The zero Cursor starts the walk; pass
// back next on the following call. end is true once nothing is left to
// emit.
func (inst *Instance) Walk(listID int, direction int, cur counter.Cursor) (key, value []byte, next counter.Cursor, end bool) {
	off, next, end := inst.counter.Walk(listID, direction, cur)
	if end {
		return nil, nil, counter.EndCursor, true
	}
	rec, err := inst.probe.DecodeAt(off)
	if err != nil {
		return nil, nil, counter.EndCursor, true
	}
	return rec.Key, rec.Value, next, false
}

// Stats returns the probe engine's negative-match and split counters
// (spec §4.4).
func (inst *Instance) Stats() (keylenMisses, memcmpMisses, splits uint64) {
	return inst.probe.Stats()
}

// SheetCount returns the number of live physical sheets.
func (inst *Instance) SheetCount() uint32 { return inst.store.SheetCount() }

// ArenaUsed returns the number of bytes used in the KV arena.
func (inst *Instance) ArenaUsed() uint64 { return inst.kv.Used() }

// Destroy releases all three mmapped regions. The Instance must not be
// used afterward.
func (inst *Instance) Destroy() error {
	if err := inst.store.Close(); err != nil {
		return err
	}
	return inst.kv.Close()
}

// Reboot releases and re-creates all three regions at the original
// "keys_at_start" sizing (spec §4.8 "reboot"), leaving the Instance
// empty but otherwise ready for use.
func (inst *Instance) Reboot() error {
	if err := inst.Destroy(); err != nil {
		return err
	}
	fresh, err := newInstance(inst.cfg, inst.shardID)
	if err != nil {
		return err
	}
	*inst = *fresh
	inst.logger.Warn("instance rebooted")
	return nil
}

func (inst *Instance) recordSplitDelta() {
	_, _, total := inst.probe.Stats()
	if total <= inst.lastSplitsTotal {
		return
	}
	for i := inst.lastSplitsTotal; i < total; i++ {
		inst.metrics.incSplit(inst.shardID)
	}
	inst.lastSplitsTotal = total
	inst.logger.Warn("sheet split", zap.Uint32("sheet_count", inst.store.SheetCount()))
}
