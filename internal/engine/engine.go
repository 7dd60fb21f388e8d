// Package engine presents a single logical key space over many shards and
// owns the CAS and TTL contracts. Every operation hashes its key, locks
// exactly one shard, mutates or reads the entry store, updates shard-local
// counters, and returns; no operation blocks across shards.
package engine

import (
	"log/slog"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine/db"
	"github.com/hivecache/hivecache/internal/engine/db/model"
	"github.com/hivecache/hivecache/internal/shared/cachedtime"
)

// Cache is the engine handle. All methods are safe for concurrent use;
// operations on the same key are strictly serialized by the owning shard's
// lock, operations on different shards run fully in parallel.
type Cache struct {
	cfg      *config.Cache
	db       *db.Map
	logger   *slog.Logger
	clock    clock.Clock
	counters *counters
	metrics  Metrics
	onEvict  EvictionFunc
	picker   db.VictimPicker
	sample   int

	// casSrc is the cache-global monotonic version source. It is independent
	// of entry identity, so a delete+re-insert can never collide with a
	// version a concurrent reader just observed.
	casSrc atomic.Uint64

	defaultTTL int64
	budget     int64
}

// Option adjusts engine construction.
type Option func(*Cache)

// WithClock overrides the time source. Tests pass a mock for TTL determinism.
func WithClock(cl clock.Clock) Option {
	return func(c *Cache) { c.clock = cl }
}

// WithEvictionCallback registers the observer invoked for every entry
// removed by expiration, memory pressure, or Clear.
func WithEvictionCallback(fn EvictionFunc) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// WithMetrics plugs an observability sink (e.g. the prometheus adapter).
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New builds the engine from an adjusted config. The shard count and load
// factor are fixed for the cache's lifetime.
func New(cfg *config.Cache, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		cfg:        cfg,
		logger:     logger,
		counters:   newCounters(),
		metrics:    NoopMetrics{},
		clock:      clock.New(),
		db:         db.NewMap(cfg.Engine.Shards, cfg.Engine.ExpectedEntries, cfg.Engine.LoadFactor),
		defaultTTL: cfg.Engine.DefaultTTL.Nanoseconds(),
		budget:     cfg.Engine.MemoryBudgetBytes,
		sample:     1,
	}
	if cfg.Eviction.Enabled() {
		c.picker = db.NewPicker(cfg.Eviction.Policy)
		c.sample = cfg.Eviction.SampleWidth
	} else {
		c.picker = db.NewPicker(config.PolicyRandom)
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("cache engine initialized",
		"shards", cfg.Engine.Shards,
		"use_cas", cfg.Engine.UseCAS,
		"memory_budget", cfg.Engine.MemoryBudgetBytes,
	)
	return c
}

// Store inserts or replaces the value for a key. The engine takes ownership
// of the value slice; the caller must not reuse it afterwards.
func (c *Cache) Store(key, value []byte, o *StoreOptions) Result {
	return c.store(key, value, o, true)
}

// Load looks a key up and, on a hit, runs onEntry under the shard lock with
// zero-copy entry metadata. A requested update is applied before the lock is
// released, so the read-modify pair is atomic for that key.
func (c *Cache) Load(key []byte, onEntry LoadFunc, o *LoadOptions) Result {
	return c.load(key, onEntry, o, true)
}

// Delete removes a key if present. An explicit delete is a user action, not
// an eviction: the eviction callback is not invoked.
func (c *Cache) Delete(key []byte, o *DeleteOptions) Result {
	return c.delete(key, o, true)
}

func (c *Cache) store(key, value []byte, o *StoreOptions, countOp bool) Result {
	if o == nil {
		o = &StoreOptions{}
	}
	now := c.now()
	k := model.NewKey(key)
	sh := c.db.Shard(k.Value())

	sh.Lock()
	defer sh.Unlock()
	if countOp {
		sh.IncOps()
	}

	old, hit := sh.GetUnlocked(k)
	if hit && old.IsExpiredAt(now) {
		c.dropExpiredUnlocked(sh, old, now)
		old, hit = nil, false
	}

	if o.CASOp {
		if !c.cfg.Engine.UseCAS {
			return CASMismatch
		}
		if !hit {
			return NotFound
		}
		if old.CAS() != o.CAS {
			c.counters.casMismatches.Add(1)
			return CASMismatch
		}
	}
	if o.NX && hit {
		return Found
	}
	if o.XX && !hit {
		return NotFound
	}
	if hit && o.Entry != nil && !o.Entry(c.view(sh, old, now)) {
		return Canceled
	}

	expires := c.deadline(o, old, hit, now)
	cas := c.nextCAS()

	var res Result
	if hit {
		sh.AddMem(old.SwapValue(value))
		old.SetFlags(o.Flags)
		old.SetExpires(expires)
		old.SetCAS(cas)
		old.Touch(now)
		c.counters.replaced.Add(1)
		res = Replaced
	} else {
		sh.AttachUnlocked(model.NewEntry(k, value, expires, o.Flags, cas, now))
		c.counters.inserted.Add(1)
		res = Inserted
	}

	if c.budget > 0 {
		c.reclaimShardUnlocked(sh, now)
	}
	return res
}

func (c *Cache) load(key []byte, onEntry LoadFunc, o *LoadOptions, countOp bool) Result {
	if o == nil {
		o = &LoadOptions{}
	}
	now := c.now()
	k := model.NewKey(key)
	sh := c.db.Shard(k.Value())

	// The exclusive lock covers the lazy-expire path and the optional
	// in-place update the callback may request.
	sh.Lock()
	defer sh.Unlock()
	if countOp {
		sh.IncOps()
	}

	e, hit := sh.GetUnlocked(k)
	if !hit {
		c.counters.misses.Add(1)
		c.metrics.Miss()
		return NotFound
	}
	if e.IsExpiredAt(now) {
		c.dropExpiredUnlocked(sh, e, now)
		c.counters.misses.Add(1)
		c.metrics.Miss()
		return NotFound
	}

	if !o.NoTouch {
		e.Touch(now)
	}
	c.counters.hits.Add(1)
	c.metrics.Hit()

	if onEntry != nil {
		if upd := onEntry(c.view(sh, e, now)); upd != nil {
			sh.AddMem(e.SwapValue(upd.Value))
			e.SetFlags(upd.Flags)
			e.SetExpires(upd.Expires)
			e.SetCAS(c.nextCAS())
		}
	}
	return Found
}

func (c *Cache) delete(key []byte, o *DeleteOptions, countOp bool) Result {
	if o == nil {
		o = &DeleteOptions{}
	}
	now := c.now()
	k := model.NewKey(key)
	sh := c.db.Shard(k.Value())

	sh.Lock()
	defer sh.Unlock()
	if countOp {
		sh.IncOps()
	}

	e, hit := sh.GetUnlocked(k)
	if !hit {
		return NotFound
	}
	if e.IsExpiredAt(now) {
		c.dropExpiredUnlocked(sh, e, now)
		return NotFound
	}
	if o.Entry != nil && !o.Entry(c.view(sh, e, now)) {
		return Canceled
	}

	sh.DetachUnlocked(k)
	c.counters.deleted.Add(1)
	return Deleted
}

// Clear removes every entry from every shard, reporting each through the
// eviction callback with ReasonCleared.
func (c *Cache) Clear() {
	now := c.now()
	for idx := 0; idx < c.db.NShards(); idx++ {
		sh := c.db.ShardAt(idx)
		sh.Lock()
		items := sh.DrainUnlocked(func(e *model.Entry) {
			c.notifyEvictUnlocked(sh, ReasonCleared, e, now)
		})
		sh.Unlock()
		c.counters.cleared.Add(items)
	}
}

// Count returns the number of live entries, summed over per-shard counters.
// Eventually consistent under concurrent mutation.
func (c *Cache) Count() int64 { return c.db.Len() }

// Size returns the tracked memory in bytes, summed over per-shard counters.
func (c *Cache) Size() int64 { return c.db.Mem() }

// Total returns the monotonic operation count, summed over per-shard
// counters.
func (c *Cache) Total() uint64 { return c.db.Ops() }

// NShards returns the fixed shard count.
func (c *Cache) NShards() int { return c.db.NShards() }

// Stats returns a cumulative snapshot of engine activity.
func (c *Cache) Stats() Stats { return c.counters.snapshot() }

// SoftMemoryLimitOvercome reports whether background eviction should engage.
// A zero soft limit means no memory budget is configured and the cache is
// unbounded: no pressure, ever.
func (c *Cache) SoftMemoryLimitOvercome() bool {
	return c.cfg.Eviction.Enabled() && c.cfg.Eviction.SoftMemoryLimitBytes > 0 &&
		c.db.Len() > 0 && c.db.Mem() > c.cfg.Eviction.SoftMemoryLimitBytes
}

// SoftEvictUntilWithinLimit runs one bounded background eviction round.
func (c *Cache) SoftEvictUntilWithinLimit(backoff int64) (freed, evicted int64) {
	if !c.cfg.Eviction.Enabled() || c.cfg.Eviction.SoftMemoryLimitBytes <= 0 {
		return 0, 0
	}
	now := c.now()
	freed, evicted = c.db.EvictUntilWithinLimit(
		c.cfg.Eviction.SoftMemoryLimitBytes, backoff, c.picker, c.sample,
		func(shardID int, e *model.Entry) {
			c.notifyEvictByID(shardID, ReasonLowMem, e, now)
		},
	)
	c.counters.evictedLowMem.Add(evicted)
	c.counters.evictedBytes.Add(freed)
	return freed, evicted
}

// PublishSize pushes current aggregates to the metrics sink. Called by the
// telemetry loop so hot paths never pay for gauge updates.
func (c *Cache) PublishSize() {
	c.metrics.Size(c.db.Len(), c.db.Mem())
}

/**
 * Private API.
 */

// reclaimShardUnlocked evicts from the shard the writer already holds until
// the summed total is back under the budget or the shard runs dry. The
// remainder, if any, is the background evictor's job; keeping the loop on
// one shard means a store never blocks other shards.
func (c *Cache) reclaimShardUnlocked(sh *db.Shard, now int64) {
	for c.db.Mem() > c.budget && sh.Len() > 0 {
		if !sh.EvictOneUnlocked(c.picker, c.sample, func(e *model.Entry) {
			c.notifyEvictUnlocked(sh, ReasonLowMem, e, now)
			c.counters.evictedLowMem.Add(1)
			c.counters.evictedBytes.Add(e.Weight())
		}) {
			return
		}
	}
}

// dropExpiredUnlocked lazily removes an expired entry and reports it.
func (c *Cache) dropExpiredUnlocked(sh *db.Shard, e *model.Entry, now int64) {
	sh.DetachUnlocked(e.Key())
	c.counters.expired.Add(1)
	c.notifyEvictUnlocked(sh, ReasonExpired, e, now)
}

func (c *Cache) notifyEvictUnlocked(sh *db.Shard, reason Reason, e *model.Entry, now int64) {
	c.notifyEvictByID(int(sh.ID()), reason, e, now)
}

func (c *Cache) notifyEvictByID(shardID int, reason Reason, e *model.Entry, now int64) {
	c.metrics.Evict(reason)
	if c.onEvict == nil {
		return
	}
	c.onEvict(shardID, reason, EntryView{
		Shard:   shardID,
		Time:    now,
		Key:     e.Key().Bytes(),
		Value:   e.Value(),
		Expires: e.Expires(),
		Flags:   e.Flags(),
		CAS:     e.CAS(),
	})
}

func (c *Cache) view(sh *db.Shard, e *model.Entry, now int64) EntryView {
	return EntryView{
		Shard:   int(sh.ID()),
		Time:    now,
		Key:     e.Key().Bytes(),
		Value:   e.Value(),
		Expires: e.Expires(),
		Flags:   e.Flags(),
		CAS:     e.CAS(),
	}
}

// deadline resolves the absolute expiry for a store.
func (c *Cache) deadline(o *StoreOptions, old *model.Entry, hit bool, now int64) int64 {
	if o.Expires != 0 {
		return o.Expires
	}
	if o.KeepTTL && hit {
		return old.Expires()
	}
	ttl := o.TTL.Nanoseconds()
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return 0
	}
	return now + ttl
}

func (c *Cache) nextCAS() uint64 { return c.casSrc.Add(1) }

func (c *Cache) now() int64 {
	if c.cfg.Engine.CachedTimeEnabled {
		return cachedtime.UnixNano()
	}
	return c.clock.Now().UnixNano()
}
