package engine

// Metrics receives engine-level observability events. Implementations must
// be safe for concurrent use; calls may happen under a shard lock, so keep
// them to counter bumps.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason Reason)
	Size(entries, bytes int64)
}

// NoopMetrics is the default Metrics sink.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                  {}
func (NoopMetrics) Miss()                 {}
func (NoopMetrics) Evict(Reason)          {}
func (NoopMetrics) Size(entries, b int64) {}

var _ Metrics = NoopMetrics{}
