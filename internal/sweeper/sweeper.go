// Package sweeper runs active expired-entry reclamation in the background.
// Each paced cycle samples a handful of entries; a full sweep of all shards
// runs only when the expired fraction crosses the configured threshold, so
// a mostly-fresh cache never pays for whole-cache lock traffic.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine"
	"github.com/hivecache/hivecache/internal/shared/rate"
)

var ErrSweeperNotResponded = errors.New("sweeper not responded")

type Sweeper interface {
	ForceSweep(timeout time.Duration) error
	SweeperMetrics() (polls, sweeps, swept, kept int64)
	Close() error
}

type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.SweepCfg
	logger   *slog.Logger
	cache    *engine.Cache
	jitter   *rate.Jitter
	counters *sweeperCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.SweepCfg,
	logger *slog.Logger,
	cache *engine.Cache,
) Sweeper {
	if !cfg.Enabled() {
		return &NoOpSweeper{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		jitter:   rate.NewJitter(ctx, cfg.Rate),
		counters: newSweeperCounters(),
		invokeCh: make(chan struct{}),
	}).run()
}

// ForceSweep queues a full sweep regardless of the poll estimate.
func (w *SweepWorker) ForceSweep(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrSweeperNotResponded
	}
	return nil
}

func (w *SweepWorker) SweeperMetrics() (polls, sweeps, swept, kept int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) Close() error {
	w.cancel()
	return nil
}

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("sweeper is running",
		"rate", w.cfg.Rate,
		"poll_size", w.cfg.PollSize,
		"expired_threshold", w.cfg.ExpiredThreshold,
	)

	go w.loop()
	return w
}

func (w *SweepWorker) loop() {
	defer w.logger.Info("sweeper is stopped")

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-w.invokeCh:
			w.sweep()

		case <-w.jitter.Chan():
			if w.cache.Count() == 0 {
				continue
			}
			w.counters.polls.Add(1)
			if w.cache.SweepPoll(w.cfg.PollSize) >= w.cfg.ExpiredThreshold {
				w.sweep()
			}
		}
	}
}

func (w *SweepWorker) sweep() {
	swept, kept := w.cache.Sweep(w.ctx)
	w.counters.sweeps.Add(1)
	w.counters.swept.Add(swept)
	w.counters.kept.Add(kept)
}
