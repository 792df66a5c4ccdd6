package board

// Mutation outcomes reported to Metrics.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeNoop   = "noop"
	// OutcomeKept marks an optimistic change kept locally after its persistence failed.
	OutcomeKept = "kept_local"
)

// Metrics records Store activity. Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordMutation counts one call of op with its outcome.
	RecordMutation(op Operation, outcome string)
	// ObservePersist records the duration in seconds of the server call made by op.
	ObservePersist(op Operation, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

// RecordMutation does nothing.
func (NopMetrics) RecordMutation(Operation, string) {}

// ObservePersist does nothing.
func (NopMetrics) ObservePersist(Operation, float64) {}
