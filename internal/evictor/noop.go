package evictor

import "time"

// NoOpEvictor is used when eviction is disabled. It performs no work and
// reports zero metrics.
type NoOpEvictor struct{}

func (NoOpEvictor) ForceCall(time.Duration) error { return nil }

func (NoOpEvictor) EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64) {
	return 0, 0, 0, 0
}

func (NoOpEvictor) Close() error { return nil }
