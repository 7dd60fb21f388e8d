package engine

// Batch is a grouped-write session over the same logical cache. It amortizes
// per-operation bookkeeping: the operation counter is accumulated locally
// and flushed once at End instead of one atomic add per call. Lock
// acquisition is unchanged - every write still locks exactly the owning
// shard - so a batch provides NO cross-shard atomicity; it is a throughput
// optimization, not a transaction.
//
// A Batch is not safe for concurrent use; open one per writer.
type Batch struct {
	c    *Cache
	ops  uint64
	done bool
}

// Begin opens a grouped-write session.
func (c *Cache) Begin() *Batch {
	return &Batch{c: c}
}

// Store behaves exactly like Cache.Store with deferred op accounting.
func (b *Batch) Store(key, value []byte, o *StoreOptions) Result {
	b.ops++
	return b.c.store(key, value, o, false)
}

// Load behaves exactly like Cache.Load with deferred op accounting.
func (b *Batch) Load(key []byte, onEntry LoadFunc, o *LoadOptions) Result {
	b.ops++
	return b.c.load(key, onEntry, o, false)
}

// Delete behaves exactly like Cache.Delete with deferred op accounting.
func (b *Batch) Delete(key []byte, o *DeleteOptions) Result {
	b.ops++
	return b.c.delete(key, o, false)
}

// End closes the session and flushes the accumulated operation count.
// Calling End twice is a no-op.
func (b *Batch) End() {
	if b.done {
		return
	}
	b.done = true
	if b.ops > 0 {
		// Total() only ever sums shard counters, so crediting one shard
		// keeps the aggregate exact.
		b.c.db.ShardAt(0).AddOps(b.ops)
	}
}
