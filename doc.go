/*
Package streamkit provides a backpressure-aware stream pipeline engine:
readable and writable stream abstractions with pluggable queuing policy
that can be piped, teed, and torn down consistently under error,
cancellation, or explicit closing.

Core engine (pkg/streams):
  - streams: ReadableStream and WritableStream with exclusive readers/writers,
    transform stages, pipe engine (PipeTo, PipeThrough) and tee
  - streams/strategy: count, byte-length, and custom queuing strategies

Adapters (pkg/adapters):
  - iostream: bridge streams to io.Reader / io.Writer
  - redisq: Redis-list-backed stream source and sink
  - cronfeed: cron-scheduled stream source
  - throttle: token-bucket pacing stage

Observability (pkg/metrics):
  - Prometheus instrumentation for stream and pipe activity

Example usage:

	import (
		"github.com/vnykmshr/streamkit/pkg/streams"
		"github.com/vnykmshr/streamkit/pkg/streams/strategy"
	)

	hwm, _ := strategy.NewCount[int](8)
	rs := streams.NewReadableWithConfig(source, streams.Config[int]{Strategy: hwm})
	ws := streams.NewWritable(sink)

	if err := rs.PipeTo(ctx, ws, streams.PipeOptions{}); err != nil {
		// the pipe surfaced exactly one terminal error
	}
*/
package streamkit
