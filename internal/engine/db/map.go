// Package db implements the sharded entry store under the cache engine.
// Hot paths (lookup/insert/detach) avoid allocations and keep critical
// sections short. Aggregates (Len/Mem/Ops) are explicit summations of
// per-shard atomics: eventually consistent under concurrent mutation,
// never a shared global counter.
package db

import (
	"context"
	"sync/atomic"
)

// Map routes keys to shards with a mask over the 64-bit key hash. The shard
// count is fixed at creation and power-of-two aligned.
type Map struct {
	shards []*Shard
	mask   uint64
	iter   uint64 // round-robin cursor for NextShard()
}

// NewMap creates the shard set. nshards must be a power of two; each shard's
// table is pre-sized from the expected entry count and load factor.
func NewMap(nshards, expectedEntries, loadFactor int) *Map {
	if nshards <= 0 || nshards&(nshards-1) != 0 {
		panic("shard count must be a positive power of two")
	}
	capacityHint := 0
	if expectedEntries > 0 && loadFactor > 0 {
		capacityHint = expectedEntries * 100 / loadFactor / nshards
	}

	m := &Map{shards: make([]*Shard, nshards), mask: uint64(nshards - 1)}
	for id := range m.shards {
		m.shards[id] = NewShard(uint64(id), capacityHint)
	}
	return m
}

// Shard returns the owning shard for a key hash.
func (m *Map) Shard(hash uint64) *Shard { return m.shards[hash&m.mask] }

// ShardAt returns the shard with the given index.
func (m *Map) ShardAt(idx int) *Shard { return m.shards[idx] }

// NextShard advances the round-robin cursor. Used by sampling walks.
func (m *Map) NextShard() *Shard {
	return m.shards[atomic.AddUint64(&m.iter, 1)&m.mask]
}

func (m *Map) NShards() int { return len(m.shards) }

// Len sums live entry counts over all shards.
func (m *Map) Len() (total int64) {
	for _, sh := range m.shards {
		total += sh.Len()
	}
	return total
}

// Mem sums tracked bytes over all shards.
func (m *Map) Mem() (total int64) {
	for _, sh := range m.shards {
		total += sh.Weight()
	}
	return total
}

// Ops sums local operation counters over all shards.
func (m *Map) Ops() (total uint64) {
	for _, sh := range m.shards {
		total += sh.Ops()
	}
	return total
}

// WalkShards applies fn to all shards sequentially. fn is responsible for
// locking; the walk checks ctx between shards, never mid-shard, so explicit
// deletes are not starved by long scans.
func (m *Map) WalkShards(ctx context.Context, fn func(idx int, sh *Shard)) {
	for idx, sh := range m.shards {
		if ctx.Err() != nil {
			return
		}
		fn(idx, sh)
	}
}
