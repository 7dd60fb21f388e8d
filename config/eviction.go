package config

// Policy selects how memory-pressure eviction picks its victims.
type Policy string

const (
	// PolicyRandom evicts a uniformly sampled entry from the offending shard.
	// Cheapest, weakest quality.
	PolicyRandom Policy = "random"

	// PolicyLRU evicts the entry with the oldest coarse last-touch timestamp
	// among a small random sample (Redis-like sampled recency).
	PolicyLRU Policy = "lru"

	// PolicyLFU evicts the entry with the lowest access count among a sample.
	// Counts come from per-entry saturating counters aged during sweeps.
	PolicyLFU Policy = "lfu"
)

type EvictionCfg struct {
	// Policy defines the victim-selection strategy.
	// Supported values: "random", "lru", "lfu". Default "lru".
	Policy Policy `yaml:"policy"`

	// SampleWidth is the number of candidates examined per eviction round.
	// Larger samples approximate the exact policy better at extra CPU cost.
	SampleWidth int `yaml:"sample_width"`

	// SoftLimitCoefficient defines the proactive eviction threshold as a
	// fraction of EngineCfg.MemoryBudgetBytes.
	//
	// Example:
	//   SoftLimitCoefficient: 0.80 // background eviction starts at 80% of the budget
	SoftLimitCoefficient float64 `yaml:"soft_limit_coefficient"`

	// SoftMemoryLimitBytes is derived during initialization from
	// EngineCfg.MemoryBudgetBytes and SoftLimitCoefficient.
	// Zero (no memory budget) keeps background eviction dormant.
	// It is not read from yaml.
	SoftMemoryLimitBytes int64 // virtual: computed during init (bytes)

	// CallsPerSec defines how many eviction scan cycles the background
	// evictor performs per second.
	CallsPerSec int64 `yaml:"calls_per_sec"`

	// BackoffSpinsPerCall bounds how many victims a single eviction round may
	// remove before yielding. The total removals per second is roughly
	// CallsPerSec * BackoffSpinsPerCall.
	BackoffSpinsPerCall int64 `yaml:"backoff_spins_per_call"`
}

func (cfg *EvictionCfg) Enabled() bool {
	return cfg != nil
}
