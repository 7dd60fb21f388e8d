// Package hivecache is an embeddable sharded in-memory cache with CAS
// versioning, per-entry TTLs, background sweeping, memory-pressure eviction,
// and optional snapshot persistence.
package hivecache

import (
	"context"
	"io"
	"log/slog"

	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/dump"
	"github.com/hivecache/hivecache/internal/engine"
	"github.com/hivecache/hivecache/internal/evictor"
	"github.com/hivecache/hivecache/internal/shared/cachedtime"
	"github.com/hivecache/hivecache/internal/sweeper"
	"github.com/hivecache/hivecache/internal/telemetry"
)

// Re-exported engine types; the engine package is internal.
type (
	Result        = engine.Result
	Reason        = engine.Reason
	EntryView     = engine.EntryView
	Update        = engine.Update
	StoreOptions  = engine.StoreOptions
	LoadOptions   = engine.LoadOptions
	DeleteOptions = engine.DeleteOptions
	LoadFunc      = engine.LoadFunc
	EvictionFunc  = engine.EvictionFunc
	IterFunc      = engine.IterFunc
	IterAction    = engine.IterAction
	Stats         = engine.Stats
	Metrics       = engine.Metrics
	Batch         = engine.Batch
	Option        = engine.Option
)

const (
	Inserted    = engine.Inserted
	Replaced    = engine.Replaced
	Found       = engine.Found
	NotFound    = engine.NotFound
	Deleted     = engine.Deleted
	CASMismatch = engine.CASMismatch
	Canceled    = engine.Canceled

	ReasonExpired = engine.ReasonExpired
	ReasonLowMem  = engine.ReasonLowMem
	ReasonCleared = engine.ReasonCleared

	IterContinue = engine.IterContinue
	IterStop     = engine.IterStop
	IterDelete   = engine.IterDelete
)

// Construction options, forwarded to the engine.
var (
	WithClock            = engine.WithClock
	WithEvictionCallback = engine.WithEvictionCallback
	WithMetrics          = engine.WithMetrics
)

// Cacher is the key-value surface of the cache.
type Cacher interface {
	Store(key, value []byte, o *StoreOptions) Result
	Load(key []byte, onEntry LoadFunc, o *LoadOptions) Result
	Delete(key []byte, o *DeleteOptions) Result
	Clear()
	Iterate(ctx context.Context, fn IterFunc)
	Begin() *Batch
	Sweep(ctx context.Context) (swept, kept int64)
	SweepPoll(pollSize int) float64
	Count() int64
	Size() int64
	Total() uint64
	NShards() int
	Stats() Stats
}

// HiveCache is the full facade: storage operations plus the background
// workers' control surfaces.
type HiveCache interface {
	Cacher
	evictor.Evictor
	sweeper.Sweeper
	telemetry.Logger
	dump.Dumper
	io.Closer
}

type Cache struct {
	*engine.Cache
	evictor.Evictor
	sweeper.Sweeper
	telemetry.Logger
	dump.Dumper
	cls context.CancelFunc
}

// New assembles the engine and its collaborators. The config must have been
// adjusted (config.LoadConfig does this; hand-built configs call
// cfg.AdjustConfig themselves). Everything started here exits when the
// returned cache is closed or ctx is canceled.
func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(ctx)

	if cfg.Engine.CachedTimeEnabled {
		cachedtime.Run(ctx)
	}

	eng := engine.New(cfg, logger, opts...)
	eviction := evictor.New(ctx, cfg.Eviction, logger, eng)
	sweep := sweeper.New(ctx, cfg.Sweep, logger, eng)
	telemeter := telemetry.New(ctx, cfg, logger, eng, eviction, sweep, cfg.Engine.TelemetryLogsInterval)
	dumper := dump.New(cfg.Persistence, eng)

	return &Cache{
		Cache:   eng,
		Evictor: eviction,
		Sweeper: sweep,
		Logger:  telemeter,
		Dumper:  dumper,
		cls:     cancel,
	}
}

// Close stops the background workers. Stored data stays readable; only the
// sweeper, evictor, and telemetry loops exit.
func (c *Cache) Close() error {
	c.cls()
	return nil
}

var _ HiveCache = (*Cache)(nil)
