package db

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hivecache/hivecache/internal/engine/db/model"
	"github.com/hivecache/hivecache/internal/shared/random"
)

const rLockSpins, rwLockSpins = 8, 16

// Shard is one independently locked partition of the key space. Entries with
// the same 64-bit routing hash chain off the bucket head; exact identity is
// settled by the full key. Counters are read with atomics so global readers
// can aggregate without taking any lock.
type Shard struct {
	sync.RWMutex
	buckets map[uint64]*model.Entry

	id  uint64
	mem int64  // total tracked weight in bytes (atomic)
	len int64  // number of live entries (atomic)
	ops uint64 // local operation counter (atomic)
}

// NewShard creates a shard with a table pre-sized from the capacity hint.
func NewShard(id uint64, capacityHint int) *Shard {
	return &Shard{id: id, buckets: make(map[uint64]*model.Entry, capacityHint)}
}

func (sh *Shard) ID() uint64    { return sh.id }
func (sh *Shard) Weight() int64 { return atomic.LoadInt64(&sh.mem) }
func (sh *Shard) Len() int64    { return atomic.LoadInt64(&sh.len) }
func (sh *Shard) Ops() uint64   { return atomic.LoadUint64(&sh.ops) }

// IncOps bumps the shard-local operation counter.
func (sh *Shard) IncOps() { atomic.AddUint64(&sh.ops, 1) }

// AddOps credits a batch of operations at once (grouped-write flush).
func (sh *Shard) AddOps(n uint64) { atomic.AddUint64(&sh.ops, n) }

// AddMem applies a byte delta after an in-place value replacement.
func (sh *Shard) AddMem(delta int64) {
	if atomic.AddInt64(&sh.mem, delta) < 0 {
		panic("shard memory counter went negative")
	}
}

// GetUnlocked walks the collision chain for the exact key. Any lock held.
func (sh *Shard) GetUnlocked(key *model.Key) (*model.Entry, bool) {
	for e := sh.buckets[key.Value()]; e != nil; e = e.Next() {
		if e.Key().IsTheSame(key) {
			return e, true
		}
	}
	return nil, false
}

// AttachUnlocked inserts a new entry at the head of its bucket chain and
// adjusts counters. The caller must have checked the key is absent.
// Write lock required.
func (sh *Shard) AttachUnlocked(e *model.Entry) {
	h := e.Key().Value()
	e.SetNext(sh.buckets[h])
	sh.buckets[h] = e
	atomic.AddInt64(&sh.len, 1)
	atomic.AddInt64(&sh.mem, e.Weight())
}

// DetachUnlocked unlinks the exact key from its bucket chain and adjusts
// counters. Write lock required.
func (sh *Shard) DetachUnlocked(key *model.Key) (*model.Entry, bool) {
	h := key.Value()
	var prev *model.Entry
	for e := sh.buckets[h]; e != nil; prev, e = e, e.Next() {
		if !e.Key().IsTheSame(key) {
			continue
		}
		if prev == nil {
			if next := e.Next(); next != nil {
				sh.buckets[h] = next
			} else {
				delete(sh.buckets, h)
			}
		} else {
			prev.SetNext(e.Next())
		}
		e.SetNext(nil)
		if atomic.AddInt64(&sh.len, -1) < 0 {
			panic("shard entry counter went negative")
		}
		sh.AddMem(-e.Weight())
		return e, true
	}
	return nil, false
}

// WalkUnlocked visits every entry including chained ones. Returning false
// stops the walk. Any lock held; the callback must be lightweight.
func (sh *Shard) WalkUnlocked(fn func(*model.Entry) bool) {
	for _, head := range sh.buckets {
		for e := head; e != nil; e = e.Next() {
			if !fn(e) {
				return
			}
		}
	}
}

// FilterUnlocked drops every entry matched by drop, invoking onDrop for each
// before it is unlinked, and rebuilds chains in place. Returns how many were
// dropped and how many remain. Write lock required.
func (sh *Shard) FilterUnlocked(drop func(*model.Entry) bool, onDrop func(*model.Entry)) (dropped, kept int64) {
	for h, head := range sh.buckets {
		var newHead, tail *model.Entry
		for e := head; e != nil; {
			next := e.Next()
			if drop(e) {
				if onDrop != nil {
					onDrop(e)
				}
				e.SetNext(nil)
				atomic.AddInt64(&sh.len, -1)
				sh.AddMem(-e.Weight())
				dropped++
			} else {
				e.SetNext(nil)
				if tail == nil {
					newHead = e
				} else {
					tail.SetNext(e)
				}
				tail = e
				kept++
			}
			e = next
		}
		if newHead == nil {
			delete(sh.buckets, h)
		} else {
			sh.buckets[h] = newHead
		}
	}
	return dropped, kept
}

// DrainUnlocked invokes fn for every entry, then resets the table and
// counters. Write lock required.
func (sh *Shard) DrainUnlocked(fn func(*model.Entry)) (items int64) {
	sh.WalkUnlocked(func(e *model.Entry) bool {
		if fn != nil {
			fn(e)
		}
		items++
		return true
	})
	sh.buckets = make(map[uint64]*model.Entry, items)
	atomic.StoreInt64(&sh.len, 0)
	atomic.StoreInt64(&sh.mem, 0)
	return items
}

// SampleUnlocked visits up to n entries from a randomly offset window of the
// walk. Go already randomizes the bucket a range starts at, but chain order
// inside a bucket is fixed; the random skip keeps chained entries from being
// over-represented in small samples. Any lock held.
func (sh *Shard) SampleUnlocked(n int, fn func(*model.Entry) bool) {
	if n <= 0 {
		return
	}
	skip := 0
	if live := int(sh.Len()); live > n {
		skip = random.Intn(live - n + 1)
	}
	sh.WalkUnlocked(func(e *model.Entry) bool {
		if skip > 0 {
			skip--
			return true
		}
		if !fn(e) {
			return false
		}
		n--
		return n > 0
	})
}

func (sh *Shard) tryRLock() bool {
	for i := 0; i < rLockSpins; i++ {
		if sh.TryRLock() {
			return true
		}
		runtime.Gosched()
	}
	return false
}

func (sh *Shard) tryLock() bool {
	for i := 0; i < rwLockSpins; i++ {
		if sh.TryLock() {
			return true
		}
		runtime.Gosched()
	}
	return false
}
