package streams

import (
	"context"
	"sync"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// ReadResult is the outcome of a single read: either a chunk, or Done once
// the stream is exhausted.
type ReadResult[T any] struct {
	Value T
	Done  bool
}

// Source describes the external producer behind a ReadableStream. Each
// field is optional; a nil algorithm is a no-op. Any algorithm returning a
// non-nil error transitions the owning stream to errored with that error as
// the stored reason.
type Source[T any] struct {
	// Start is called once at construction. Pull is not invoked until it
	// returns.
	Start func(c *ReadableController[T]) error

	// Pull is invoked to request more data whenever the queue is under the
	// strategy's threshold or a read is pending, with at most one call in
	// flight at a time.
	Pull func(c *ReadableController[T]) error

	// Cancel is invoked at most once, the first time the stream is
	// canceled. The stream settles to closed only after it returns.
	Cancel func(reason error) error
}

// ReadableStream produces chunks on demand, tracking backpressure through
// its strategy's high-water mark. At most one Reader may be attached at a
// time.
type ReadableStream[T any] struct {
	mu        sync.Mutex
	state     State
	storedErr error
	ctrl      *ReadableController[T]
	reader    *Reader[T]

	// terminal is closed on the first transition to StateClosed or
	// StateErrored.
	terminal chan struct{}
}

// ReadableController owns the queue and the source algorithms of a single
// ReadableStream. It is handed to the source's Start and Pull algorithms
// and outlives individual readers.
type ReadableController[T any] struct {
	stream   *ReadableStream[T]
	queue    queue[T]
	strategy strategy.Strategy[T]
	source   Source[T]
	name     string
	metrics  *metrics.Registry

	started         bool
	pulling         bool
	pullAgain       bool
	closeRequested  bool
	cancelRequested bool
	cancelDone      chan struct{}
	cancelErr       error
}

// readRequest is one pending Read call. Requests settle in call order.
type readRequest[T any] struct {
	done chan struct{}
	res  ReadResult[T]
	err  error
}

func (r *readRequest[T]) settle(res ReadResult[T], err error) {
	r.res = res
	r.err = err
	close(r.done)
}

// Reader is the exclusive read handle of a ReadableStream. Releasing it
// frees the stream for a new reader without changing stream state.
type Reader[T any] struct {
	stream     *ReadableStream[T]
	released   bool
	releasedCh chan struct{}
	requests   []*readRequest[T]
}

// NewReadable creates a ReadableStream with the default count strategy
// (high-water mark 1).
func NewReadable[T any](source Source[T]) *ReadableStream[T] {
	return NewReadableWithConfig(source, Config[T]{})
}

// NewReadableWithConfig creates a ReadableStream with the given
// configuration. The source's Start algorithm runs asynchronously; Pull is
// gated until it settles.
func NewReadableWithConfig[T any](source Source[T], config Config[T]) *ReadableStream[T] {
	config.applyDefaults()

	s := &ReadableStream[T]{
		state:    StateReadable,
		terminal: make(chan struct{}),
	}
	s.ctrl = &ReadableController[T]{
		stream:   s,
		strategy: config.Strategy,
		source:   source,
		name:     config.Name,
		metrics:  config.Metrics,
	}

	go func() {
		var err error
		if source.Start != nil {
			err = source.Start(s.ctrl)
		}
		s.mu.Lock()
		s.ctrl.started = true
		if err != nil {
			s.ctrl.errorLocked(err)
		} else {
			s.ctrl.callPullIfNeededLocked()
		}
		s.mu.Unlock()
	}()

	return s
}

// State returns the stream's current lifecycle state.
func (s *ReadableStream[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the stored reason once the stream is errored, nil otherwise.
func (s *ReadableStream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedErr
}

// Locked reports whether a reader is currently attached.
func (s *ReadableStream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader != nil
}

// GetReader attaches an exclusive reader. It fails with ErrStreamLocked if
// one is already attached.
func (s *ReadableStream[T]) GetReader() (*Reader[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return nil, ErrStreamLocked
	}
	s.reader = &Reader[T]{stream: s, releasedCh: make(chan struct{})}
	return s.reader, nil
}

// Cancel cancels the stream while unlocked. Canceling a locked stream is a
// usage error; use the reader's Cancel instead.
func (s *ReadableStream[T]) Cancel(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.reader != nil {
		s.mu.Unlock()
		return ErrStreamLocked
	}
	return s.cancelWithLock(ctx, reason)
}

// cancelWithLock runs cancellation. The caller must hold s.mu; it is
// released before waiting.
func (s *ReadableStream[T]) cancelWithLock(ctx context.Context, reason error) error {
	c := s.ctrl
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil
	case StateErrored:
		err := s.storedErr
		s.mu.Unlock()
		return err
	}

	if !c.cancelRequested {
		c.cancelRequested = true
		if reason == nil {
			reason = ErrStreamCanceled
		}
		c.queue.reset()
		c.reportQueueCostLocked()
		// Pending reads settle as EOF, not errors: cancellation is an
		// orderly end of stream for its consumers.
		if s.reader != nil {
			s.reader.settleAllLocked(ReadResult[T]{Done: true}, nil)
		}
		cancelAlg := c.source.Cancel
		c.cancelDone = make(chan struct{})
		done := c.cancelDone
		go func() {
			var err error
			if cancelAlg != nil {
				err = cancelAlg(reason)
			}
			s.mu.Lock()
			c.cancelErr = err
			if s.state == StateReadable {
				s.state = StateClosed
				c.teardownLocked()
				close(s.terminal)
			}
			s.mu.Unlock()
			close(done)
		}()
	}
	done := c.cancelDone
	s.mu.Unlock()

	select {
	case <-done:
		return c.cancelErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminated is the channel closed on the first terminal transition.
func (s *ReadableStream[T]) terminated() <-chan struct{} {
	return s.terminal
}

// DesiredSize returns the remaining capacity before backpressure: the
// high-water mark minus total queued cost while readable, 0 once closed.
// The second return is false once the stream is errored.
func (c *ReadableController[T]) DesiredSize() (float64, bool) {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.desiredSizeLocked()
}

func (c *ReadableController[T]) desiredSizeLocked() (float64, bool) {
	switch c.stream.state {
	case StateErrored:
		return 0, false
	case StateClosed:
		return 0, true
	default:
		return c.strategy.HighWaterMark() - c.queue.totalCost(), true
	}
}

// Enqueue admits a chunk, delivering it directly to the oldest pending read
// when one exists. It fails once the stream is closing, closed, or errored.
// A strategy that yields an invalid cost errors the stream and reports the
// failure.
func (c *ReadableController[T]) Enqueue(chunk T) error {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateErrored:
		return s.storedErr
	case s.state == StateClosed, c.closeRequested, c.cancelRequested:
		return ErrStreamClosed
	}

	if s.reader != nil && len(s.reader.requests) > 0 {
		req := s.reader.requests[0]
		s.reader.requests = s.reader.requests[1:]
		req.settle(ReadResult[T]{Value: chunk}, nil)
		c.countDeliveredLocked()
	} else {
		if err := c.queue.enqueue(chunk, c.strategy.Size(chunk)); err != nil {
			c.errorLocked(err)
			return err
		}
		c.countEnqueuedLocked()
		c.reportQueueCostLocked()
	}

	c.callPullIfNeededLocked()
	return nil
}

// Close marks the end of the source's data. Buffered chunks remain readable;
// the stream settles closed once the queue drains.
func (c *ReadableController[T]) Close() error {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateErrored:
		return s.storedErr
	case s.state == StateClosed, c.closeRequested, c.cancelRequested:
		return ErrStreamClosed
	}

	c.closeRequested = true
	if c.queue.len() == 0 {
		c.finishCloseLocked()
	}
	return nil
}

// Error moves the stream to errored with the given reason. It is a no-op on
// a stream that already reached a terminal state.
func (c *ReadableController[T]) Error(reason error) {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	c.errorLocked(reason)
}

func (c *ReadableController[T]) errorLocked(reason error) {
	s := c.stream
	// Cancellation wins over late algorithm failures: once cancel is
	// requested the stream settles closed, not errored.
	if s.state != StateReadable || c.cancelRequested {
		return
	}
	if reason == nil {
		reason = ErrStreamErrored
	}
	c.queue.reset()
	s.state = StateErrored
	s.storedErr = reason
	c.teardownLocked()
	if s.reader != nil {
		s.reader.settleAllLocked(ReadResult[T]{}, reason)
	}
	if c.metrics != nil {
		c.metrics.StreamErrors.WithLabelValues("readable", c.name).Inc()
	}
	c.reportQueueCostLocked()
	close(s.terminal)
}

func (c *ReadableController[T]) finishCloseLocked() {
	s := c.stream
	if s.state != StateReadable {
		return
	}
	s.state = StateClosed
	c.teardownLocked()
	if s.reader != nil {
		s.reader.settleAllLocked(ReadResult[T]{Done: true}, nil)
	}
	close(s.terminal)
}

// teardownLocked clears the source algorithms once, on the first terminal
// transition. Re-entrant teardown is a no-op because the fields are already
// zero.
func (c *ReadableController[T]) teardownLocked() {
	c.source = Source[T]{}
}

func (c *ReadableController[T]) callPullIfNeededLocked() {
	if !c.shouldCallPullLocked() {
		return
	}
	if c.pulling {
		c.pullAgain = true
		return
	}
	c.pulling = true
	pull := c.source.Pull
	s := c.stream
	go func() {
		err := pull(c)
		s.mu.Lock()
		c.pulling = false
		if err != nil {
			c.errorLocked(err)
		} else if c.pullAgain {
			c.pullAgain = false
			c.callPullIfNeededLocked()
		}
		s.mu.Unlock()
	}()
}

func (c *ReadableController[T]) shouldCallPullLocked() bool {
	s := c.stream
	if c.source.Pull == nil || !c.started {
		return false
	}
	if s.state != StateReadable || c.closeRequested || c.cancelRequested {
		return false
	}
	if s.reader != nil && len(s.reader.requests) > 0 {
		return true
	}
	desired, ok := c.desiredSizeLocked()
	return ok && desired > 0
}

func (c *ReadableController[T]) countEnqueuedLocked() {
	if c.metrics != nil {
		c.metrics.ChunksEnqueued.WithLabelValues("readable", c.name).Inc()
	}
}

func (c *ReadableController[T]) countDeliveredLocked() {
	if c.metrics != nil {
		c.metrics.ChunksDelivered.WithLabelValues("readable", c.name).Inc()
	}
}

func (c *ReadableController[T]) reportQueueCostLocked() {
	if c.metrics != nil {
		c.metrics.QueueCost.WithLabelValues("readable", c.name).Set(c.queue.totalCost())
	}
}

// Read returns the next chunk in strict call order, or Done once the stream
// is exhausted. When no chunk is buffered the call joins a FIFO queue of
// pending reads and blocks until a chunk arrives, the stream settles, or
// ctx is canceled.
func (r *Reader[T]) Read(ctx context.Context) (ReadResult[T], error) {
	var zero ReadResult[T]
	s := r.stream

	s.mu.Lock()
	c := s.ctrl
	switch {
	case r.released:
		s.mu.Unlock()
		return zero, ErrReaderReleased
	case s.state == StateErrored:
		err := s.storedErr
		s.mu.Unlock()
		return zero, err
	case s.state == StateClosed, c.cancelRequested:
		s.mu.Unlock()
		return ReadResult[T]{Done: true}, nil
	}

	if c.queue.len() > 0 {
		chunk := c.queue.dequeue()
		c.countDeliveredLocked()
		c.reportQueueCostLocked()
		if c.closeRequested && c.queue.len() == 0 {
			c.finishCloseLocked()
		} else {
			c.callPullIfNeededLocked()
		}
		s.mu.Unlock()
		return ReadResult[T]{Value: chunk}, nil
	}

	req := &readRequest[T]{done: make(chan struct{})}
	r.requests = append(r.requests, req)
	c.callPullIfNeededLocked()
	s.mu.Unlock()

	select {
	case <-req.done:
		return req.res, req.err
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-req.done:
			// Settled while we raced with cancellation; the chunk must
			// not be lost.
			s.mu.Unlock()
			return req.res, req.err
		default:
		}
		r.removeRequestLocked(req)
		s.mu.Unlock()
		return zero, ctx.Err()
	}
}

// Cancel cancels the stream through this reader. Pending reads settle as
// Done; the source's cancel algorithm runs at most once, and the stream
// settles closed only after it returns.
func (r *Reader[T]) Cancel(ctx context.Context, reason error) error {
	s := r.stream
	s.mu.Lock()
	if r.released {
		s.mu.Unlock()
		return ErrReaderReleased
	}
	return s.cancelWithLock(ctx, reason)
}

// ReleaseLock detaches the reader. Reads pending at release time are
// rejected with ErrReaderReleased so in-flight calls never hang. Stream
// state is unchanged.
func (r *Reader[T]) ReleaseLock() {
	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	close(r.releasedCh)
	r.settleAllLocked(ReadResult[T]{}, ErrReaderReleased)
	s.reader = nil
}

// Closed blocks until the stream reaches a terminal state, returning nil on
// closed and the stored reason on errored.
func (r *Reader[T]) Closed(ctx context.Context) error {
	s := r.stream
	s.mu.Lock()
	if r.released {
		s.mu.Unlock()
		return ErrReaderReleased
	}
	releasedCh := r.releasedCh
	s.mu.Unlock()

	select {
	case <-s.terminal:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.storedErr
	case <-releasedCh:
		return ErrReaderReleased
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader[T]) settleAllLocked(res ReadResult[T], err error) {
	for _, req := range r.requests {
		req.settle(res, err)
	}
	r.requests = nil
}

func (r *Reader[T]) removeRequestLocked(target *readRequest[T]) {
	for i, req := range r.requests {
		if req == target {
			r.requests = append(r.requests[:i], r.requests[i+1:]...)
			return
		}
	}
}
