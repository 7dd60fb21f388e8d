package engine

import "sync/atomic"

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	inserted      atomic.Int64
	replaced      atomic.Int64
	deleted       atomic.Int64
	casMismatches atomic.Int64

	expired       atomic.Int64
	evictedLowMem atomic.Int64
	evictedBytes  atomic.Int64
	cleared       atomic.Int64

	sweeps atomic.Int64
	swept  atomic.Int64
}

func newCounters() *counters { return &counters{} }

// Stats is a cumulative snapshot of engine activity for protocol front ends
// and the telemetry logger.
type Stats struct {
	Hits          int64
	Misses        int64
	Inserted      int64
	Replaced      int64
	Deleted       int64
	CASMismatches int64

	Expired       int64
	EvictedLowMem int64
	EvictedBytes  int64
	Cleared       int64

	Sweeps int64
	Swept  int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Inserted:      c.inserted.Load(),
		Replaced:      c.replaced.Load(),
		Deleted:       c.deleted.Load(),
		CASMismatches: c.casMismatches.Load(),
		Expired:       c.expired.Load(),
		EvictedLowMem: c.evictedLowMem.Load(),
		EvictedBytes:  c.evictedBytes.Load(),
		Cleared:       c.cleared.Load(),
		Sweeps:        c.sweeps.Load(),
		Swept:         c.swept.Load(),
	}
}
