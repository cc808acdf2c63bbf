package redisq

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

// Config holds configuration for Redis-list stream bridges.
type Config struct {
	// Redis client for the backing list.
	Redis redis.UniversalClient

	// Key is the Redis list key acting as the queue.
	Key string

	// PopTimeout bounds a single blocking pop; on expiry the source simply
	// polls again, so it also bounds how quickly cancellation is observed.
	// Default: 1s
	PopTimeout time.Duration

	// KeyTTL refreshes the list's expiry on every push. Zero leaves the
	// key without a TTL.
	KeyTTL time.Duration

	// Name labels the stream in metrics.
	Name string

	// Metrics receives stream instrumentation. Nil disables it.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default bridge configuration.
func DefaultConfig() Config {
	return Config{
		PopTimeout: time.Second,
	}
}

func validateConfig(config Config) error {
	if config.Redis == nil {
		return &ConfigError{"redis client is required"}
	}
	if config.Key == "" {
		return &ConfigError{"key is required"}
	}
	return nil
}

func applyConfigDefaults(config Config) Config {
	if config.PopTimeout <= 0 {
		config.PopTimeout = DefaultConfig().PopTimeout
	}
	return config
}

func (c Config) streamConfig() streams.Config[[]byte] {
	return streams.Config[[]byte]{
		Name:    c.Name,
		Metrics: c.Metrics,
	}
}

// NewSource creates a ReadableStream fed by BRPOP on the configured list.
// Each list element becomes one chunk. The source blocks inside its pull
// algorithm, so consumers see chunks only as fast as they ask for them;
// canceling the stream stops the blocking pop.
func NewSource(config Config) (*streams.ReadableStream[[]byte], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	popCtx, stopPop := context.WithCancel(context.Background())
	source := streams.Source[[]byte]{
		Pull: func(c *streams.ReadableController[[]byte]) error {
			for {
				vals, err := config.Redis.BRPop(popCtx, config.PopTimeout, config.Key).Result()
				switch {
				case err == nil && len(vals) == 2:
					return c.Enqueue([]byte(vals[1]))
				case errors.Is(err, redis.Nil):
					// Pop timed out with an empty list; poll again.
					continue
				case popCtx.Err() != nil:
					// Canceled; the stream is already settling.
					return nil
				default:
					return &OpError{Operation: "brpop", Err: err}
				}
			}
		},
		Cancel: func(reason error) error {
			stopPop()
			return nil
		},
	}
	return streams.NewReadableWithConfig(source, config.streamConfig()), nil
}

// NewSink creates a WritableStream that LPUSHes each chunk onto the
// configured list, forming a FIFO queue toward BRPOP consumers. Closing the
// stream leaves the list in place; aborting does too, since queued data may
// belong to other producers.
func NewSink(config Config) (*streams.WritableStream[[]byte], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	sink := streams.Sink[[]byte]{
		Write: func(chunk []byte, c *streams.WritableController[[]byte]) error {
			ctx, cancel := context.WithTimeout(context.Background(), config.PopTimeout)
			defer cancel()
			if err := config.Redis.LPush(ctx, config.Key, chunk).Err(); err != nil {
				return &OpError{Operation: "lpush", Err: err}
			}
			if config.KeyTTL > 0 {
				if err := config.Redis.Expire(ctx, config.Key, config.KeyTTL).Err(); err != nil {
					return &OpError{Operation: "expire", Err: err}
				}
			}
			return nil
		},
	}
	return streams.NewWritableWithConfig(sink, config.streamConfig()), nil
}

// ConfigError represents a bridge configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "redisq config error: " + e.Message
}

// OpError represents a failed Redis operation.
type OpError struct {
	Operation string
	Err       error
}

func (e *OpError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
