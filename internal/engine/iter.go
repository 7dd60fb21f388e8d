package engine

import (
	"context"

	"github.com/hivecache/hivecache/internal/engine/db/model"
)

// Iterate walks every shard, invoking fn once per live, non-expired entry
// under the owning shard's lock with the same zero-copy metadata as Load.
// IterStop halts the whole walk; IterDelete removes the current entry and
// may be OR-combined with IterStop. There is no snapshot isolation across
// shards, only per-shard consistency: entries deleted concurrently in
// not-yet-visited shards are simply skipped.
func (c *Cache) Iterate(ctx context.Context, fn IterFunc) {
	for idx := 0; idx < c.db.NShards(); idx++ {
		if ctx.Err() != nil {
			return
		}
		if stopped := c.iterateShard(idx, fn); stopped {
			return
		}
	}
}

// IterateShard walks a single shard. Used by the persistence dumper to
// snapshot shards in parallel without serializing the whole cache.
func (c *Cache) IterateShard(idx int, fn IterFunc) {
	c.iterateShard(idx, fn)
}

func (c *Cache) iterateShard(idx int, fn IterFunc) (stopped bool) {
	now := c.now()
	sh := c.db.ShardAt(idx)

	sh.Lock()
	defer sh.Unlock()

	// Deletions are collected and applied after the walk: detaching an entry
	// rewires its collision chain, which would break the in-flight traversal.
	var doomed []*model.Key
	sh.WalkUnlocked(func(e *model.Entry) bool {
		if e.IsExpiredAt(now) {
			return true // logically absent; the sweeper will reclaim it
		}
		act := fn(c.view(sh, e, now))
		if act&IterDelete != 0 {
			doomed = append(doomed, e.Key())
		}
		if act&IterStop != 0 {
			stopped = true
			return false
		}
		return true
	})

	for _, k := range doomed {
		if _, hit := sh.DetachUnlocked(k); hit {
			c.counters.deleted.Add(1)
		}
	}
	return stopped
}
