package db

import "github.com/hivecache/hivecache/internal/engine/db/model"

// PollExpired samples up to pollSize entries across round-robin shards and
// returns the fraction that are already expired at now. Cheap estimator the
// background sweeper uses to decide whether a full sweep is worth the locks.
func (m *Map) PollExpired(now int64, pollSize int) float64 {
	if pollSize <= 0 || m.Len() == 0 {
		return 0
	}

	var seen, expired int
	// Visit at most NShards shards so an almost-empty cache terminates.
	for probes := 0; probes < m.NShards() && seen < pollSize; probes++ {
		sh := m.NextShard()
		if sh.Len() == 0 || !sh.tryRLock() {
			continue
		}
		sh.SampleUnlocked(pollSize-seen, func(e *model.Entry) bool {
			seen++
			if e.IsExpiredAt(now) {
				expired++
			}
			return true
		})
		sh.RUnlock()
	}

	if seen == 0 {
		return 0
	}
	return float64(expired) / float64(seen)
}
