package streams

import (
	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// State identifies a stream's lifecycle position. Transitions are monotonic:
// StateReadable/StateWritable -> StateErroring -> StateErrored, or
// StateReadable/StateWritable -> StateClosed. Once StateClosed or
// StateErrored is reached, the state never changes again.
type State int32

const (
	// StateReadable is the live state of a readable stream.
	StateReadable State = iota

	// StateWritable is the live state of a writable stream.
	StateWritable

	// StateErroring is the transient writable state in which in-flight
	// operations drain before the stream finalizes as errored.
	StateErroring

	// StateClosed is the terminal success state.
	StateClosed

	// StateErrored is the terminal failure state.
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReadable:
		return "readable"
	case StateWritable:
		return "writable"
	case StateErroring:
		return "erroring"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Config holds optional configuration shared by both stream kinds.
type Config[T any] struct {
	// Strategy is the queuing strategy. Defaults to a count strategy with
	// a high-water mark of 1.
	Strategy strategy.Strategy[T]

	// Name labels the stream in metrics. Defaults to "stream".
	Name string

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

func (c *Config[T]) applyDefaults() {
	if c.Strategy == nil {
		c.Strategy = strategy.Default[T]()
	}
	if c.Name == "" {
		c.Name = "stream"
	}
}
