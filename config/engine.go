package config

import "time"

// EngineCfg configures the core key-value engine.
type EngineCfg struct {
	// Shards is the number of independently locked partitions.
	// Zero picks an automatic value from the CPU count; any value is
	// rounded up to the next power of two so keys can be routed with a mask.
	Shards int `yaml:"shards"`

	// LoadFactor is the hash-table fill percentage used to size each
	// shard's table. Default 75.
	LoadFactor int `yaml:"load_factor"`

	// ExpectedEntries hints the total number of entries the cache will hold.
	// Used together with LoadFactor to pre-size shard tables. Optional.
	ExpectedEntries int `yaml:"expected_entries"`

	// UseCAS enables compare-and-swap versioning. When disabled, entries
	// still carry a version but casop stores are rejected.
	UseCAS bool `yaml:"use_cas"`

	// MemoryBudgetBytes bounds the tracked memory of all shards combined.
	// Zero means unbounded.
	MemoryBudgetBytes int64 `yaml:"memory_budget"`

	// DefaultTTL applies to stores that do not carry their own TTL.
	// Zero means entries never expire by default.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// CachedTimeEnabled switches hot-path timestamps to a coarse clock
	// updated by a background ticker instead of calling time.Now per op.
	CachedTimeEnabled bool `yaml:"cached_time_enabled"`

	// IsTelemetryLogsEnabled turns on the periodic stats logger.
	IsTelemetryLogsEnabled bool          `yaml:"stat_logs_enabled"`
	TelemetryLogsInterval  time.Duration `yaml:"stat_logs_interval"`
}
