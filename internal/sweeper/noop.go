package sweeper

import "time"

// NoOpSweeper is used when active sweeping is disabled; expired entries are
// then reclaimed lazily on access only.
type NoOpSweeper struct{}

func (NoOpSweeper) ForceSweep(time.Duration) error { return nil }

func (NoOpSweeper) SweeperMetrics() (polls, sweeps, swept, kept int64) {
	return 0, 0, 0, 0
}

func (NoOpSweeper) Close() error { return nil }
