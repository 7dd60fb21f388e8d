package sweeper

import "sync/atomic"

type sweeperCounters struct {
	polls  atomic.Int64 // sampling cycles performed
	sweeps atomic.Int64 // full sweeps triggered
	swept  atomic.Int64 // entries removed by sweeps
	kept   atomic.Int64 // entries inspected and kept
}

func newSweeperCounters() *sweeperCounters {
	return &sweeperCounters{}
}

func (c *sweeperCounters) snapshot() (polls, sweeps, swept, kept int64) {
	return c.polls.Load(), c.sweeps.Load(), c.swept.Load(), c.kept.Load()
}
