package streams

import (
	"context"
	"errors"
	"sync"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// Transformer describes the processing stage between the two sides of a
// TransformStream. Each field is optional; a nil Transform discards chunks.
type Transformer[In any, Out any] struct {
	// Start is called once at construction, before any chunk is accepted.
	Start func(c *ReadableController[Out]) error

	// Transform consumes one chunk from the writable side. It may enqueue
	// zero or more chunks on the readable side, with at most one call in
	// flight at a time. Returning a non-nil error fails both sides with
	// that error.
	Transform func(chunk In, c *ReadableController[Out]) error

	// Flush runs after the writable side is closed and every queued chunk
	// has been transformed, before the readable side closes.
	Flush func(c *ReadableController[Out]) error
}

// TransformStream couples a writable side to a readable side through a
// Transformer. Chunks written to the writable side are processed one at a
// time and the results surface on the readable side; backpressure from an
// unread readable queue stalls the writable side's queue in turn.
type TransformStream[In any, Out any] struct {
	readable *ReadableStream[Out]
	writable *WritableStream[In]
}

// TransformConfig holds optional configuration for a TransformStream.
type TransformConfig[In any, Out any] struct {
	// WritableStrategy is the queuing strategy for the writable side.
	// Defaults to a count strategy with a high-water mark of 1.
	WritableStrategy strategy.Strategy[In]

	// ReadableStrategy is the queuing strategy for the readable side.
	// Defaults to a count strategy with a high-water mark of 1.
	ReadableStrategy strategy.Strategy[Out]

	// Name labels both sides in metrics. Defaults to "stream".
	Name string

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
}

// NewTransform creates a TransformStream with default configuration.
func NewTransform[In any, Out any](t Transformer[In, Out]) *TransformStream[In, Out] {
	return NewTransformWithConfig(t, TransformConfig[In, Out]{})
}

// NewTransformWithConfig creates a TransformStream with the given
// configuration.
func NewTransformWithConfig[In any, Out any](t Transformer[In, Out], config TransformConfig[In, Out]) *TransformStream[In, Out] {
	ts := &transformState[In, Out]{
		transformer: t,
		ready:       make(chan struct{}),
		demand:      make(chan struct{}, 1),
		canceled:    make(chan struct{}),
	}

	ts.readable = NewReadableWithConfig(Source[Out]{
		Start:  ts.start,
		Pull:   ts.pull,
		Cancel: ts.cancel,
	}, Config[Out]{
		Strategy: config.ReadableStrategy,
		Name:     config.Name,
		Metrics:  config.Metrics,
	})

	writable := NewWritableWithConfig(Sink[In]{
		Write: ts.write,
		Close: ts.close,
		Abort: ts.abort,
	}, Config[In]{
		Strategy: config.WritableStrategy,
		Name:     config.Name,
		Metrics:  config.Metrics,
	})

	return &TransformStream[In, Out]{readable: ts.readable, writable: writable}
}

// Readable returns the side that surfaces transformed chunks.
func (t *TransformStream[In, Out]) Readable() *ReadableStream[Out] {
	return t.readable
}

// Writable returns the side that accepts chunks for transformation.
func (t *TransformStream[In, Out]) Writable() *WritableStream[In] {
	return t.writable
}

// transformState wires the two sides together. The readable side's pull
// algorithm signals demand; the writable side's write algorithm stalls on
// that signal whenever the readable queue is at or over its high-water
// mark, which is what propagates backpressure through the stage.
type transformState[In any, Out any] struct {
	transformer Transformer[In, Out]
	readable    *ReadableStream[Out]
	ctrl        *ReadableController[Out]

	// ready gates sink algorithms until the readable side's Start has run
	// and ctrl is set; the two sides construct independently.
	ready  chan struct{}
	demand chan struct{}

	mu        sync.Mutex
	cancelErr error
	canceled  chan struct{}
}

func (ts *transformState[In, Out]) start(c *ReadableController[Out]) error {
	ts.ctrl = c
	close(ts.ready)
	if ts.transformer.Start != nil {
		return ts.transformer.Start(c)
	}
	return nil
}

func (ts *transformState[In, Out]) pull(*ReadableController[Out]) error {
	select {
	case ts.demand <- struct{}{}:
	default:
	}
	return nil
}

func (ts *transformState[In, Out]) cancel(reason error) error {
	if reason == nil {
		reason = ErrStreamCanceled
	}
	ts.mu.Lock()
	ts.cancelErr = reason
	ts.mu.Unlock()
	close(ts.canceled)
	return nil
}

func (ts *transformState[In, Out]) cancelReason() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.cancelErr
}

func (ts *transformState[In, Out]) write(chunk In, wc *WritableController[In]) error {
	<-ts.ready
	// One demand signal admits one chunk even when the desired size has
	// not recovered; a zero high-water mark otherwise never admits any.
	if desired, ok := ts.ctrl.DesiredSize(); ok && desired <= 0 {
		select {
		case <-ts.demand:
		case <-ts.canceled:
			return ts.cancelReason()
		case <-wc.stream.erroring():
			// The writable side is being aborted. Drop the chunk so the
			// in-flight write drains and erroring can finish.
			return nil
		case <-ts.readable.terminated():
			if err := ts.readable.Err(); err != nil {
				return err
			}
		}
	}
	select {
	case <-ts.canceled:
		return ts.cancelReason()
	default:
	}
	if ts.transformer.Transform == nil {
		return nil
	}
	if err := ts.transformer.Transform(chunk, ts.ctrl); err != nil {
		ts.ctrl.Error(err)
		return err
	}
	return nil
}

func (ts *transformState[In, Out]) close() error {
	<-ts.ready
	select {
	case <-ts.canceled:
		return ts.cancelReason()
	default:
	}
	if ts.transformer.Flush != nil {
		if err := ts.transformer.Flush(ts.ctrl); err != nil {
			ts.ctrl.Error(err)
			return err
		}
	}
	err := ts.ctrl.Close()
	if errors.Is(err, ErrStreamClosed) {
		// The readable side was already terminated by the transformer or
		// by a cancel that raced the close.
		return nil
	}
	return err
}

func (ts *transformState[In, Out]) abort(reason error) error {
	<-ts.ready
	ts.ctrl.Error(reason)
	return nil
}

// PipeThrough pipes src through the given transform stage and returns the
// stage's readable side. The pipe runs until src is exhausted or either
// side fails; failures propagate to the returned stream through the
// stage's writable side. The transform's writable side is locked for the
// duration of the pipe.
func PipeThrough[In any, Out any](ctx context.Context, src *ReadableStream[In], t *TransformStream[In, Out], opts PipeOptions) *ReadableStream[Out] {
	go func() {
		err := src.PipeTo(ctx, t.Writable(), opts)
		if errors.Is(err, ErrStreamLocked) {
			// The pipe never started, so nothing will settle the stage.
			_ = t.Writable().Abort(context.Background(), err)
		}
	}()
	return t.Readable()
}
