package telemetry

import (
	"github.com/hivecache/hivecache/internal/engine"
	"github.com/hivecache/hivecache/internal/evictor"
	"github.com/hivecache/hivecache/internal/sweeper"
)

type sampler struct {
	cache   *engine.Cache
	evictor evictor.Evictor
	sweeper sweeper.Sweeper
}

func newSampler(c *engine.Cache, e evictor.Evictor, s sweeper.Sweeper) sampler {
	return sampler{cache: c, evictor: e, sweeper: s}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	hits          uint64
	misses        uint64
	inserted      uint64
	replaced      uint64
	deleted       uint64
	casMismatches uint64
	lazyExpired   uint64

	evictorScans   uint64
	evictorHits    uint64
	evictedItems   uint64
	evictedBytes   uint64
	inlineEvicted  uint64
	inlineEvictedB uint64

	sweepPolls  uint64
	sweepRuns   uint64
	sweptItems  uint64
	sweptKept   uint64
}

func (s sampler) snapshot() snapshot {
	st := s.cache.Stats()
	scans, hits, evItems, evBytes := s.evictor.EvictorMetrics()
	polls, sweeps, swept, kept := s.sweeper.SweeperMetrics()

	return snapshot{
		hits:          uint64(max(st.Hits, 0)),
		misses:        uint64(max(st.Misses, 0)),
		inserted:      uint64(max(st.Inserted, 0)),
		replaced:      uint64(max(st.Replaced, 0)),
		deleted:       uint64(max(st.Deleted, 0)),
		casMismatches: uint64(max(st.CASMismatches, 0)),
		lazyExpired:   uint64(max(st.Expired, 0)),

		evictorScans:   uint64(max(scans, 0)),
		evictorHits:    uint64(max(hits, 0)),
		evictedItems:   uint64(max(evItems, 0)),
		evictedBytes:   uint64(max(evBytes, 0)),
		inlineEvicted:  uint64(max(st.EvictedLowMem, 0)),
		inlineEvictedB: uint64(max(st.EvictedBytes, 0)),

		sweepPolls: uint64(max(polls, 0)),
		sweepRuns:  uint64(max(sweeps, 0)),
		sweptItems: uint64(max(swept, 0)),
		sweptKept:  uint64(max(kept, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:          delta(prev.hits, cur.hits),
		misses:        delta(prev.misses, cur.misses),
		inserted:      delta(prev.inserted, cur.inserted),
		replaced:      delta(prev.replaced, cur.replaced),
		deleted:       delta(prev.deleted, cur.deleted),
		casMismatches: delta(prev.casMismatches, cur.casMismatches),
		lazyExpired:   delta(prev.lazyExpired, cur.lazyExpired),

		evictorScans:   delta(prev.evictorScans, cur.evictorScans),
		evictorHits:    delta(prev.evictorHits, cur.evictorHits),
		evictedItems:   delta(prev.evictedItems, cur.evictedItems),
		evictedBytes:   delta(prev.evictedBytes, cur.evictedBytes),
		inlineEvicted:  delta(prev.inlineEvicted, cur.inlineEvicted),
		inlineEvictedB: delta(prev.inlineEvictedB, cur.inlineEvictedB),

		sweepPolls: delta(prev.sweepPolls, cur.sweepPolls),
		sweepRuns:  delta(prev.sweepRuns, cur.sweepRuns),
		sweptItems: delta(prev.sweptItems, cur.sweptItems),
		sweptKept:  delta(prev.sweptKept, cur.sweptKept),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
