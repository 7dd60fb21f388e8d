package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Cache groups configuration of all cache subsystems.
// Optional subsystems are pointers and can be disabled by setting them to nil.
type Cache struct {
	Engine EngineCfg `yaml:"engine"`

	// Eviction configures memory-pressure eviction.
	// If nil, eviction is disabled and the cache is bounded only by TTLs
	// (not recommended for long-lived processes).
	Eviction *EvictionCfg `yaml:"eviction"`

	// Sweep configures the background expired-entry sweeper.
	// If nil, expired entries are reclaimed lazily on access only.
	Sweep *SweepCfg `yaml:"sweep"`

	// Persistence configures snapshot dump/restore of the cache contents.
	// If nil, the cache is purely in-memory.
	Persistence *PersistenceCfg `yaml:"persistence"`
}

// AdjustConfig derives the virtual fields from the yaml-visible ones.
// It must be called once after the config is built or unmarshalled.
func (cfg *Cache) AdjustConfig() {
	if cfg.Engine.Shards <= 0 {
		cfg.Engine.Shards = nextPow2(runtime.GOMAXPROCS(0) * defaultShardsPerCPU)
	} else {
		cfg.Engine.Shards = nextPow2(cfg.Engine.Shards)
	}

	if cfg.Engine.LoadFactor <= 0 || cfg.Engine.LoadFactor >= 100 {
		cfg.Engine.LoadFactor = defaultLoadFactor
	}

	if cfg.Eviction.Enabled() {
		if cfg.Eviction.Policy == "" {
			cfg.Eviction.Policy = PolicyLRU
		}
		if cfg.Eviction.SampleWidth <= 0 {
			cfg.Eviction.SampleWidth = defaultSampleWidth
		}
		if cfg.Eviction.SoftLimitCoefficient <= 0 || cfg.Eviction.SoftLimitCoefficient > 1 {
			cfg.Eviction.SoftLimitCoefficient = defaultSoftLimitCoefficient
		}
		// A zero budget means unbounded: no soft limit to derive, and the
		// background evictor must never see pressure.
		if cfg.Engine.MemoryBudgetBytes > 0 {
			cfg.Eviction.SoftMemoryLimitBytes = int64(float64(cfg.Engine.MemoryBudgetBytes) * cfg.Eviction.SoftLimitCoefficient)
		} else {
			cfg.Eviction.SoftMemoryLimitBytes = 0
		}
	}

	if cfg.Sweep.Enabled() {
		if cfg.Sweep.PollSize <= 0 {
			cfg.Sweep.PollSize = defaultSweepPollSize
		}
		if cfg.Sweep.ExpiredThreshold <= 0 || cfg.Sweep.ExpiredThreshold > 1 {
			cfg.Sweep.ExpiredThreshold = defaultSweepThreshold
		}
	}
}

// LoadConfig reads and unmarshals a yaml config file and derives virtual fields.
func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}

const (
	defaultShardsPerCPU         = 4
	defaultLoadFactor           = 75
	defaultSampleWidth          = 8
	defaultSoftLimitCoefficient = 0.8
	defaultSweepPollSize        = 20
	defaultSweepThreshold       = 0.25
)

// nextPow2 returns the smallest power of two >= n (and at least 1).
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
