package throttle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

// Limit is a token refill rate in tokens per second. A chunk is admitted
// once its cost in tokens is available.
type Limit float64

// Inf is the infinite rate; it admits every chunk immediately.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between unit-cost chunks to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Config configures a throttle stage.
type Config[T any] struct {
	// Rate is the sustained admission rate in tokens per second. It must
	// be positive; use Inf to disable pacing.
	Rate Limit

	// Burst is the token reservoir size, bounding how many tokens can
	// accumulate while the stage is idle. Defaults to 1.
	Burst int

	// Cost maps a chunk to its token cost. Nil charges one token per
	// chunk. Costs below zero are charged as zero.
	Cost func(T) int

	// Name labels the stage in metrics. Defaults to "stream".
	Name string

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// New creates a pass-through transform stage that paces chunks to the
// given rate with a burst of 1.
func New[T any](rate Limit) (*streams.TransformStream[T, T], error) {
	return NewWithConfig(Config[T]{Rate: rate})
}

// NewWithConfig creates a pass-through transform stage paced per config.
// Pacing happens inside the stage's transform algorithm, so a stalled
// chunk holds the writable side's queue and backpressure propagates
// upstream the same way a slow consumer's would.
func NewWithConfig[T any](config Config[T]) (*streams.TransformStream[T, T], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	tb := newTokenBucket(config.Rate, config.Burst)
	cost := config.Cost

	return streams.NewTransformWithConfig(streams.Transformer[T, T]{
		Transform: func(chunk T, c *streams.ReadableController[T]) error {
			n := 1
			if cost != nil {
				n = cost(chunk)
			}
			if wait := tb.take(float64(n)); wait > 0 {
				time.Sleep(wait)
			}
			return c.Enqueue(chunk)
		},
	}, streams.TransformConfig[T, T]{
		Name:    config.Name,
		Metrics: config.Metrics,
	}), nil
}

// Readable pipes src through a new throttle stage and returns the paced
// stream. The pipe runs until src is exhausted or fails; src is locked
// for the duration.
func Readable[T any](ctx context.Context, src *streams.ReadableStream[T], config Config[T]) (*streams.ReadableStream[T], error) {
	stage, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	return streams.PipeThrough(ctx, src, stage, streams.PipeOptions{}), nil
}

func validateConfig[T any](config Config[T]) error {
	if config.Rate <= 0 {
		return &ConfigError{"rate must be positive"}
	}
	if config.Burst < 0 {
		return &ConfigError{"burst cannot be negative"}
	}
	return nil
}

func applyConfigDefaults[T any](config Config[T]) Config[T] {
	if config.Burst == 0 {
		config.Burst = 1
	}
	return config
}

// ConfigError represents a throttle configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "throttle config error: " + e.Message
}

// tokenBucket refills continuously at rate tokens per second up to burst.
// The balance may go negative; the debt delays later chunks.
type tokenBucket struct {
	mu     sync.Mutex
	rate   Limit
	burst  float64
	tokens float64
	last   time.Time
}

func newTokenBucket(rate Limit, burst int) *tokenBucket {
	return &tokenBucket{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// take charges n tokens and returns how long the caller must wait before
// acting on them.
func (tb *tokenBucket) take(n float64) time.Duration {
	if n <= 0 {
		return 0
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.rate == Inf {
		return 0
	}

	now := time.Now()
	tb.tokens += now.Sub(tb.last).Seconds() * float64(tb.rate)
	tb.last = now
	if tb.tokens > tb.burst {
		tb.tokens = tb.burst
	}

	tb.tokens -= n
	if tb.tokens >= 0 {
		return 0
	}
	return time.Duration(-tb.tokens / float64(tb.rate) * float64(time.Second))
}
