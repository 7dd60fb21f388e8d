package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine"
	"github.com/hivecache/hivecache/internal/evictor"
	"github.com/hivecache/hivecache/internal/shared/bytes"
	"github.com/hivecache/hivecache/internal/sweeper"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

// Logs periodically writes engine/worker activity deltas through slog.
type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Cache
	logger   *slog.Logger
	cache    *engine.Cache
	evictor  evictor.Evictor
	sweeper  sweeper.Sweeper
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Cache,
	logger *slog.Logger,
	cache *engine.Cache,
	evictor evictor.Evictor,
	sweeper sweeper.Sweeper,
	interval time.Duration,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		evictor:  evictor,
		sweeper:  sweeper,
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg != nil && l.cfg.Engine.IsTelemetryLogsEnabled {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	interval := l.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var budget = "INF"
	if l.cfg.Engine.MemoryBudgetBytes > 0 {
		budget = bytes.FmtMem(uint64(l.cfg.Engine.MemoryBudgetBytes))
	}
	var softLimit = "INF"
	if l.cfg.Eviction.Enabled() {
		softLimit = bytes.FmtMem(uint64(l.cfg.Eviction.SoftMemoryLimitBytes))
	}

	s := newSampler(l.cache, l.evictor, l.sweeper)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			l.cache.PublishSize()

			common := []any{"interval", interval.String()}

			l.logger.Info("engine",
				append(common,
					"hits", int64(d.hits),
					"misses", int64(d.misses),
					"inserted", int64(d.inserted),
					"replaced", int64(d.replaced),
					"deleted", int64(d.deleted),
					"cas_mismatches", int64(d.casMismatches),
					"lazy_expired", int64(d.lazyExpired),
				)...,
			)

			if l.cfg.Sweep.Enabled() {
				l.logger.Info("sweeper",
					append(common,
						"polls", int64(d.sweepPolls),
						"sweeps", int64(d.sweepRuns),
						"swept", int64(d.sweptItems),
						"kept", int64(d.sweptKept),
					)...,
				)
			}

			if l.cfg.Eviction.Enabled() {
				l.logger.Info("evictor",
					append(common,
						"scans", int64(d.evictorScans),
						"hits", int64(d.evictorHits),
						"freed_items", int64(d.evictedItems+d.inlineEvicted),
						"freed_bytes", bytes.FmtMem(d.evictedBytes+d.inlineEvictedB),
					)...,
				)
			}

			l.logger.Info("storage",
				append(common,
					"size", bytes.FmtMem(uint64(l.cache.Size())),
					"entries", l.cache.Count(),
					"ops", l.cache.Total(),
					"soft_limit", softLimit,
					"budget", budget,
				)...,
			)
		}
	}
}
