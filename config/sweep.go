package config

type SweepCfg struct {
	// Rate limits how many poll cycles the background sweeper runs per
	// second. Each cycle samples PollSize entries; a full sweep runs only
	// when the expired fraction crosses ExpiredThreshold.
	Rate int `yaml:"rate"`

	// PollSize is the number of entries sampled per poll cycle. Default 20.
	PollSize int `yaml:"poll_size"`

	// ExpiredThreshold is the expired fraction of a poll at which a full
	// sweep of all shards is triggered. Range (0..1], default 0.25.
	ExpiredThreshold float64 `yaml:"expired_threshold"`
}

func (cfg *SweepCfg) Enabled() bool {
	return cfg != nil
}
