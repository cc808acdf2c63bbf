package streams

import "errors"

// Usage errors are reported synchronously to the offending call and never
// change stream state. Algorithm failures are stored on the stream and
// become the rejection reason of every pending request.
var (
	// ErrStreamLocked is returned when acquiring a reader or writer on a
	// stream that already has one attached.
	ErrStreamLocked = errors.New("stream is locked")

	// ErrReaderReleased is returned by operations on a released reader and
	// rejects reads that were pending at release time.
	ErrReaderReleased = errors.New("reader has been released")

	// ErrWriterReleased is returned by operations on a released writer.
	ErrWriterReleased = errors.New("writer has been released")

	// ErrStreamClosed is returned when an operation requires a stream that
	// has already closed.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrStreamClosing is returned when writing to a stream with a close
	// already queued or in flight.
	ErrStreamClosing = errors.New("stream is closing")

	// ErrStreamErrored is the stored reason when a stream is errored
	// without an explicit cause.
	ErrStreamErrored = errors.New("stream is errored")

	// ErrInvalidChunkSize is returned when a strategy's size function
	// yields NaN or a negative cost. The owning stream transitions to
	// Errored, matching any other failing algorithm.
	ErrInvalidChunkSize = errors.New("chunk size must be a non-negative number")

	// ErrStreamCanceled is the stored reason when a stream is canceled or
	// aborted without an explicit cause.
	ErrStreamCanceled = errors.New("stream canceled")

	// ErrPipeAborted is the error a pipe settles with when its context is
	// canceled before the source is exhausted.
	ErrPipeAborted = errors.New("pipe aborted")

	// ErrDestinationClosed is the error a pipe settles with when the
	// destination becomes closed while the pipe is still moving chunks.
	ErrDestinationClosed = errors.New("destination closed early")
)
