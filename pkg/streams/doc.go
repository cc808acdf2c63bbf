/*
Package streams provides a backpressure-aware stream pipeline engine: a
readable producer side and a writable consumer side, each with pluggable
queuing policy, that can be piped, teed, and torn down consistently under
error, cancellation, or explicit closing.

A ReadableStream pulls chunks from a Source on demand, buffering up to its
strategy's high-water mark. A WritableStream feeds chunks to a Sink one at
a time, reporting backpressure once buffered cost reaches the mark.
Exactly one source algorithm (pull) and one sink algorithm (write or
close) is ever in flight per stream, regardless of how callers interleave.

Access to a stream is exclusive: GetReader and GetWriter attach a single
lock holder and fail with ErrStreamLocked while one is attached. Reads and
writes are served strictly in call order.

Building a readable stream:

	rs := streams.NewReadable(streams.Source[int]{
		Start: func(c *streams.ReadableController[int]) error {
			for i := 1; i <= 3; i++ {
				if err := c.Enqueue(i); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})

Piping it into a writable stream:

	ws := streams.NewWritable(streams.Sink[int]{
		Write: func(chunk int, _ *streams.WritableController[int]) error {
			return store(chunk)
		},
	})
	err := rs.PipeTo(ctx, ws, streams.PipeOptions{})

The pipe settles exactly once: it forwards a source error as a destination
abort, a destination error as a source cancel, and a source close as a
destination close, unless the corresponding PipeOptions prevent flag
suppresses the forwarding action.
*/
package streams
