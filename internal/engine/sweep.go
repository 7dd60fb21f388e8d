package engine

import (
	"context"

	"github.com/hivecache/hivecache/internal/engine/db"
	"github.com/hivecache/hivecache/internal/engine/db/model"
)

// Sweep scans every shard and removes all entries whose deadline has passed,
// reporting each through the eviction callback with ReasonExpired. It holds
// one shard lock at a time and checks ctx between shards, so explicit user
// operations are never starved for longer than one shard's critical section.
// LFU access counters are aged in the same pass so stale popularity decays.
func (c *Cache) Sweep(ctx context.Context) (swept, kept int64) {
	now := c.now()
	c.counters.sweeps.Add(1)

	c.db.WalkShards(ctx, func(_ int, sh *db.Shard) {
		sh.Lock()
		dropped, remained := sh.FilterUnlocked(
			func(e *model.Entry) bool { return e.IsExpiredAt(now) },
			func(e *model.Entry) {
				c.notifyEvictUnlocked(sh, ReasonExpired, e, now)
			},
		)
		sh.WalkUnlocked(func(e *model.Entry) bool {
			e.AgeFrequency()
			return true
		})
		sh.Unlock()
		swept += dropped
		kept += remained
	})

	c.counters.expired.Add(swept)
	c.counters.swept.Add(swept)
	return swept, kept
}

// SweepPoll samples up to pollSize entries and returns the fraction already
// expired. The background sweeper uses it to decide whether a full sweep is
// worth taking every shard lock.
func (c *Cache) SweepPoll(pollSize int) float64 {
	return c.db.PollExpired(c.now(), pollSize)
}
