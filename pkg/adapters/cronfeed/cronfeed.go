package cronfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

// Tick is one scheduled firing of a cron feed.
type Tick struct {
	// At is the scheduled firing time, not the delivery time; a slow
	// consumer observes ticks late but never mislabeled.
	At time.Time

	// Seq numbers ticks from 1.
	Seq int64
}

// Config holds configuration for a cron feed.
type Config struct {
	// TimeZone for expression evaluation.
	// Default: time.Local
	TimeZone *time.Location

	// MaxTicks closes the stream after this many firings. Zero means
	// unlimited.
	MaxTicks int64

	// Name labels the stream in metrics.
	Name string

	// Metrics receives stream instrumentation. Nil disables it.
	Metrics *metrics.Registry
}

// New creates a tick stream from a cron expression with seconds precision,
// e.g. "*/5 * * * * *" for every five seconds, or descriptors such as
// "@hourly".
func New(expression string) (*streams.ReadableStream[Tick], error) {
	return NewWithConfig(expression, Config{})
}

// NewWithConfig creates a tick stream from a cron expression. Ticks are
// produced on demand: nothing is scheduled until a consumer asks, and at
// most one tick is buffered ahead, so firings that nobody reads in time
// are simply the next to be delivered, never an unbounded backlog.
func NewWithConfig(expression string, config Config) (*streams.ReadableStream[Tick], error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return NewFromSchedule(schedule, config), nil
}

// NewFromSchedule creates a tick stream from an explicit cron.Schedule,
// for callers that build schedules programmatically.
func NewFromSchedule(schedule cron.Schedule, config Config) *streams.ReadableStream[Tick] {
	tz := config.TimeZone
	if tz == nil {
		tz = time.Local
	}

	waitCtx, stopWaiting := context.WithCancel(context.Background())

	// Pull calls never overlap, so the cursor needs no lock.
	last := time.Now().In(tz)
	var seq int64

	source := streams.Source[Tick]{
		Pull: func(c *streams.ReadableController[Tick]) error {
			at := schedule.Next(last)
			timer := time.NewTimer(time.Until(at))
			defer timer.Stop()

			select {
			case <-timer.C:
			case <-waitCtx.Done():
				// Canceled; the stream is already settling.
				return nil
			}

			last = at
			seq++
			if err := c.Enqueue(Tick{At: at, Seq: seq}); err != nil {
				return err
			}
			if config.MaxTicks > 0 && seq >= config.MaxTicks {
				return c.Close()
			}
			return nil
		},
		Cancel: func(reason error) error {
			stopWaiting()
			return nil
		},
	}
	return streams.NewReadableWithConfig(source, streams.Config[Tick]{
		Name:    config.Name,
		Metrics: config.Metrics,
	})
}
