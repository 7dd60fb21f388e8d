// Package evictor runs memory-pressure eviction in the background so stores
// rarely have to reclaim inline. A provider goroutine watches the soft
// memory limit; consumer goroutines run bounded eviction rounds.
package evictor

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine"
)

var ErrEvictorNotResponded = errors.New("evictor not responded")

type Evictor interface {
	ForceCall(timeout time.Duration) error
	EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64)
	Close() error
}

type EvictionWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.EvictionCfg
	logger   *slog.Logger
	cache    *engine.Cache
	counters *evictorCounters
	invokeCh chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.EvictionCfg,
	logger *slog.Logger,
	cache *engine.Cache,
) Evictor {
	if !cfg.Enabled() {
		return &NoOpEvictor{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&EvictionWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		counters: newEvictorCounters(),
		invokeCh: make(chan struct{}),
	}).run()
}

// ForceCall wakes a consumer immediately, bounded by timeout.
func (w *EvictionWorker) ForceCall(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrEvictorNotResponded
	}
	return nil
}

func (w *EvictionWorker) EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64) {
	return w.counters.snapshot()
}

func (w *EvictionWorker) Close() error {
	w.cancel()
	return nil
}

func (w *EvictionWorker) run() *EvictionWorker {
	w.logger.Info("evictor is running",
		"policy", w.cfg.Policy,
		"calls_per_sec", w.cfg.CallsPerSec,
		"backoff_spins", w.cfg.BackoffSpinsPerCall,
	)

	go func() {
		defer w.logger.Info("evictor is stopped")
		var wg sync.WaitGroup
		for i := 0; i <= runtime.GOMAXPROCS(0); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.consumer()
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.provider()
		}()
		wg.Wait()
	}()

	return w
}

// provider wakes a consumer whenever the soft memory limit is overcome.
func (w *EvictionWorker) provider() {
	callsPerSec := w.cfg.CallsPerSec
	if callsPerSec <= 0 {
		callsPerSec = 1
	}

	tick := time.NewTicker(time.Second / time.Duration(callsPerSec))
	defer tick.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-tick.C:
			if w.cache.Count() == 0 {
				continue
			}
			w.counters.scans.Add(1)
			if w.cache.SoftMemoryLimitOvercome() {
				select {
				case <-w.ctx.Done():
					return
				case w.invokeCh <- struct{}{}:
					w.counters.scanHits.Add(1)
				}
			}
		}
	}
}

// consumer evicts until within the limit or the spin budget runs out.
func (w *EvictionWorker) consumer() {
	backoff := w.cfg.BackoffSpinsPerCall
	if backoff <= 0 {
		const defaultBackoffSpins = 2048
		backoff = defaultBackoffSpins
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.invokeCh:
			freedBytes, items := w.cache.SoftEvictUntilWithinLimit(backoff)
			if items > 0 || freedBytes > 0 {
				w.counters.evictedItems.Add(items)
				w.counters.evictedBytes.Add(freedBytes)
			}
		}
	}
}
