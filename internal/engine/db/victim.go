package db

import (
	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine/db/model"
)

// VictimPicker selects an eviction candidate from a single shard. Pick is
// always called with the shard lock held (read or write); it must not block.
type VictimPicker interface {
	Pick(sh *Shard, sample int) *model.Entry
}

// NewPicker maps a configured policy to its candidate-selection strategy.
func NewPicker(policy config.Policy) VictimPicker {
	switch policy {
	case config.PolicyRandom:
		return randomPicker{}
	case config.PolicyLFU:
		return sampledFrequencyPicker{}
	default:
		return sampledRecencyPicker{}
	}
}

// randomPicker takes the first entry the randomized map walk yields.
type randomPicker struct{}

func (randomPicker) Pick(sh *Shard, _ int) (victim *model.Entry) {
	sh.SampleUnlocked(1, func(e *model.Entry) bool {
		victim = e
		return false
	})
	return victim
}

// sampledRecencyPicker approximates LRU: oldest coarse last-touch stamp among
// a small sample. No recency list, so reads never serialize on list updates.
type sampledRecencyPicker struct{}

func (sampledRecencyPicker) Pick(sh *Shard, sample int) (victim *model.Entry) {
	var bestAt int64
	sh.SampleUnlocked(sample, func(e *model.Entry) bool {
		if at := e.TouchedAt(); victim == nil || at < bestAt {
			victim, bestAt = e, at
		}
		return true
	})
	return victim
}

// sampledFrequencyPicker approximates LFU: lowest saturating access counter
// among a sample; recency breaks ties so cold newcomers outlive hot ones.
type sampledFrequencyPicker struct{}

func (sampledFrequencyPicker) Pick(sh *Shard, sample int) (victim *model.Entry) {
	var (
		bestFreq uint32
		bestAt   int64
	)
	sh.SampleUnlocked(sample, func(e *model.Entry) bool {
		f, at := e.Frequency(), e.TouchedAt()
		if victim == nil || f < bestFreq || (f == bestFreq && at < bestAt) {
			victim, bestFreq, bestAt = e, f, at
		}
		return true
	})
	return victim
}

// EvictOneUnlocked removes one victim from the shard. onEvict observes the
// entry while it is still coherent. Write lock required.
func (sh *Shard) EvictOneUnlocked(picker VictimPicker, sample int, onEvict func(*model.Entry)) bool {
	victim := picker.Pick(sh, sample)
	if victim == nil {
		return false
	}
	if _, hit := sh.DetachUnlocked(victim.Key()); !hit {
		return false
	}
	if onEvict != nil {
		onEvict(victim)
	}
	return true
}

// EvictUntilWithinLimit walks shards round-robin, evicting one victim per
// locked shard until the summed memory drops under limit or the spin budget
// runs out. Each round locks exactly one shard, so eviction on one shard
// never blocks operations on another.
func (m *Map) EvictUntilWithinLimit(limit, backoff int64, picker VictimPicker, sample int, onEvict func(shardID int, e *model.Entry)) (freed, evicted int64) {
	for backoff > 0 && m.Mem() > limit && m.Len() > 0 {
		sh := m.NextShard()
		backoff--
		if sh.Len() == 0 || !sh.tryLock() {
			continue
		}
		before := sh.Weight()
		if sh.EvictOneUnlocked(picker, sample, func(e *model.Entry) {
			if onEvict != nil {
				onEvict(int(sh.ID()), e)
			}
		}) {
			freed += before - sh.Weight()
			evicted++
		}
		sh.Unlock()
	}
	return freed, evicted
}
