package normup

import "time"

// Metrics receives dispatch and storage measurements.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// QueryDuration is reported once per storage call; label is "upsert <table>"
	QueryDuration(duration time.Duration, label string)
	// UpsertResult counts successful upserts per table, split into inserts and updates
	UpsertResult(table string, created bool)
	ConnectionCount(active, idle int32)
	ErrorCount(kind string)
	CircuitStateChanged(state string)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) QueryDuration(time.Duration, string) {}
func (NoopMetrics) UpsertResult(string, bool)           {}
func (NoopMetrics) ConnectionCount(int32, int32)        {}
func (NoopMetrics) ErrorCount(string)                   {}
func (NoopMetrics) CircuitStateChanged(string)          {}
