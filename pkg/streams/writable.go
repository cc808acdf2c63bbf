package streams

import (
	"context"
	"math"
	"sync"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// Sink describes the external consumer behind a WritableStream. Each field
// is optional; a nil algorithm is a no-op. Write and Close are invoked with
// at most one call in flight at a time; an algorithm returning a non-nil
// error begins erroring the stream.
type Sink[T any] struct {
	// Start is called once at construction. No other algorithm is invoked
	// until it returns.
	Start func(c *WritableController[T]) error

	// Write consumes one chunk.
	Write func(chunk T, c *WritableController[T]) error

	// Close flushes the sink after all queued writes have drained.
	Close func() error

	// Abort is invoked at most once on the forceful teardown path.
	Abort func(reason error) error
}

// WritableStream accepts chunks, tracking in-flight writes so the sink
// never sees two concurrent operations. At most one Writer may be attached
// at a time.
type WritableStream[T any] struct {
	mu        sync.Mutex
	state     State
	storedErr error
	ctrl      *WritableController[T]
	writer    *Writer[T]

	backpressure bool
	readyCh      chan struct{}
	readyOpen    bool

	pendingAbort *abortRequest

	// erroringCh is closed when the stream enters StateErroring, before
	// in-flight operations drain. terminal is closed on the first
	// transition to StateClosed or StateErrored.
	erroringCh chan struct{}
	terminal   chan struct{}
}

// WritableController owns the write queue and the sink algorithms of a
// single WritableStream.
type WritableController[T any] struct {
	stream   *WritableStream[T]
	queue    queue[*writeRecord[T]]
	strategy strategy.Strategy[T]
	sink     Sink[T]
	name     string
	metrics  *metrics.Registry

	started        bool
	closeRequested bool
	inFlightWrite  *writeRecord[T]
	inFlightClose  *writeRecord[T]

	// abortAlg survives teardown so a pending abort can still consume it.
	abortAlg func(reason error) error
}

// writeRecord is one queued write (or the close marker), settled when its
// operation completes.
type writeRecord[T any] struct {
	chunk   T
	isClose bool
	done    chan struct{}
	err     error
	settled bool
}

func (r *writeRecord[T]) settle(err error) {
	if r.settled {
		return
	}
	r.settled = true
	r.err = err
	close(r.done)
}

type abortRequest struct {
	reason             error
	wasAlreadyErroring bool
	done               chan struct{}
	err                error
}

// Writer is the exclusive write handle of a WritableStream.
type Writer[T any] struct {
	stream     *WritableStream[T]
	released   bool
	releasedCh chan struct{}
}

// NewWritable creates a WritableStream with the default count strategy
// (high-water mark 1).
func NewWritable[T any](sink Sink[T]) *WritableStream[T] {
	return NewWritableWithConfig(sink, Config[T]{})
}

// NewWritableWithConfig creates a WritableStream with the given
// configuration. The sink's Start algorithm runs asynchronously; queued
// operations wait for it to settle.
func NewWritableWithConfig[T any](sink Sink[T], config Config[T]) *WritableStream[T] {
	config.applyDefaults()

	s := &WritableStream[T]{
		state:      StateWritable,
		readyCh:    make(chan struct{}),
		erroringCh: make(chan struct{}),
		terminal:   make(chan struct{}),
	}
	s.ctrl = &WritableController[T]{
		stream:   s,
		strategy: config.Strategy,
		sink:     sink,
		name:     config.Name,
		metrics:  config.Metrics,
	}

	// Initial backpressure follows the high-water mark: a zero mark means
	// writers must wait for each chunk to drain.
	if config.Strategy.HighWaterMark() > 0 {
		s.readyOpen = false
		close(s.readyCh)
	} else {
		s.backpressure = true
		s.readyOpen = true
	}

	go func() {
		var err error
		if sink.Start != nil {
			err = sink.Start(s.ctrl)
		}
		s.mu.Lock()
		s.ctrl.started = true
		if err != nil {
			s.ctrl.errorIfNeededLocked(err)
		} else {
			s.ctrl.advanceQueueLocked()
		}
		s.mu.Unlock()
	}()

	return s
}

// State returns the stream's current lifecycle state.
func (s *WritableStream[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the stored reason once the stream is erroring or errored.
func (s *WritableStream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedErr
}

// Locked reports whether a writer is currently attached.
func (s *WritableStream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// GetWriter attaches an exclusive writer. It fails with ErrStreamLocked if
// one is already attached.
func (s *WritableStream[T]) GetWriter() (*Writer[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return nil, ErrStreamLocked
	}
	s.writer = &Writer[T]{stream: s, releasedCh: make(chan struct{})}
	return s.writer, nil
}

// Abort aborts the stream while unlocked. Aborting a locked stream is a
// usage error; use the writer's Abort instead.
func (s *WritableStream[T]) Abort(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return ErrStreamLocked
	}
	return s.abortWithLock(ctx, reason)
}

// Close closes the stream while unlocked.
func (s *WritableStream[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return ErrStreamLocked
	}
	return s.closeWithLock(ctx)
}

func (s *WritableStream[T]) terminated() <-chan struct{} {
	return s.terminal
}

func (s *WritableStream[T]) erroring() <-chan struct{} {
	return s.erroringCh
}

// abortWithLock runs the forceful teardown path. The caller must hold s.mu;
// it is released before waiting. Concurrent aborts share one in-flight
// abort algorithm call and observe the same outcome.
func (s *WritableStream[T]) abortWithLock(ctx context.Context, reason error) error {
	if s.state == StateClosed || s.state == StateErrored {
		s.mu.Unlock()
		return nil
	}

	if s.pendingAbort == nil {
		if reason == nil {
			reason = ErrStreamCanceled
		}
		wasErroring := s.state == StateErroring
		s.pendingAbort = &abortRequest{
			reason:             reason,
			wasAlreadyErroring: wasErroring,
			done:               make(chan struct{}),
		}
		if !wasErroring {
			s.ctrl.startErroringLocked(reason)
		}
	}
	req := s.pendingAbort
	s.mu.Unlock()

	select {
	case <-req.done:
		return req.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeWithLock queues the close marker. The caller must hold s.mu; it is
// released before waiting.
func (s *WritableStream[T]) closeWithLock(ctx context.Context) error {
	c := s.ctrl
	switch {
	case s.state == StateErrored, s.state == StateErroring:
		err := s.storedErr
		s.mu.Unlock()
		return err
	case s.state == StateClosed:
		s.mu.Unlock()
		return ErrStreamClosed
	case c.closeQueuedOrInFlightLocked():
		s.mu.Unlock()
		return ErrStreamClosing
	}

	rec := &writeRecord[T]{isClose: true, done: make(chan struct{})}
	// The close marker carries no cost.
	_ = c.queue.enqueue(rec, 0)
	c.closeRequested = true
	// Writers waiting on backpressure unblock; further writes fail with
	// ErrStreamClosing anyway.
	s.setBackpressureLocked(false)
	c.advanceQueueLocked()
	s.mu.Unlock()

	select {
	case <-rec.done:
		return rec.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WritableStream[T]) setBackpressureLocked(bp bool) {
	if bp == s.backpressure {
		return
	}
	s.backpressure = bp
	if bp {
		s.readyCh = make(chan struct{})
		s.readyOpen = true
		if s.ctrl.metrics != nil {
			s.ctrl.metrics.BackpressureEvents.WithLabelValues("writable", s.ctrl.name).Inc()
		}
	} else if s.readyOpen {
		close(s.readyCh)
		s.readyOpen = false
	}
}

// wakeReadyLocked unblocks Ready waiters so they can observe a state change.
func (s *WritableStream[T]) wakeReadyLocked() {
	if s.readyOpen {
		close(s.readyCh)
		s.readyOpen = false
	}
	s.backpressure = false
}

// Error moves the stream toward errored with the given reason, letting any
// in-flight operation drain first.
func (c *WritableController[T]) Error(reason error) {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	c.errorIfNeededLocked(reason)
}

func (c *WritableController[T]) errorIfNeededLocked(reason error) {
	if c.stream.state == StateWritable {
		c.startErroringLocked(reason)
	}
}

func (c *WritableController[T]) startErroringLocked(reason error) {
	s := c.stream
	if s.state != StateWritable {
		return
	}
	if reason == nil {
		reason = ErrStreamErrored
	}
	s.state = StateErroring
	s.storedErr = reason
	close(s.erroringCh)
	s.wakeReadyLocked()
	if c.metrics != nil {
		c.metrics.StreamErrors.WithLabelValues("writable", c.name).Inc()
	}
	if c.started && c.inFlightWrite == nil && c.inFlightClose == nil {
		c.finishErroringLocked()
	}
}

// finishErroringLocked finalizes the errored state once no operation is in
// flight, rejecting every queued record and, if an abort is pending,
// invoking the abort algorithm.
func (c *WritableController[T]) finishErroringLocked() {
	s := c.stream
	s.state = StateErrored
	reason := s.storedErr
	for c.queue.len() > 0 {
		c.queue.dequeue().settle(reason)
	}
	c.reportQueueCostLocked()
	c.teardownLocked()

	req := s.pendingAbort
	s.pendingAbort = nil
	close(s.terminal)

	if req == nil {
		return
	}
	if req.wasAlreadyErroring {
		req.err = reason
		close(req.done)
		return
	}
	abortAlg := c.abortAlg
	c.abortAlg = nil
	go func() {
		var err error
		if abortAlg != nil {
			err = abortAlg(req.reason)
		}
		req.err = err
		close(req.done)
	}()
}

// teardownLocked drops the sink algorithms once, keeping the abort
// algorithm aside for a pending abort to consume. Re-entrant teardown is a
// no-op.
func (c *WritableController[T]) teardownLocked() {
	if c.sink.Abort != nil {
		c.abortAlg = c.sink.Abort
	}
	c.sink = Sink[T]{}
}

func (c *WritableController[T]) closeQueuedOrInFlightLocked() bool {
	return c.closeRequested || c.inFlightClose != nil
}

func (c *WritableController[T]) updateBackpressureLocked() {
	desired, ok := c.desiredSizeLocked()
	if !ok {
		return
	}
	c.stream.setBackpressureLocked(desired <= 0)
}

func (c *WritableController[T]) desiredSizeLocked() (float64, bool) {
	switch c.stream.state {
	case StateErrored, StateErroring:
		return 0, false
	case StateClosed:
		return 0, true
	default:
		return c.strategy.HighWaterMark() - c.queue.totalCost(), true
	}
}

// advanceQueueLocked starts the next queued operation if none is in flight,
// preserving the at-most-one-in-flight guarantee toward the sink.
func (c *WritableController[T]) advanceQueueLocked() {
	s := c.stream
	if !c.started || c.inFlightWrite != nil || c.inFlightClose != nil {
		return
	}
	if s.state == StateErroring {
		c.finishErroringLocked()
		return
	}
	if s.state != StateWritable || c.queue.len() == 0 {
		return
	}
	rec := c.queue.peek()
	if rec.isClose {
		c.processCloseLocked(rec)
	} else {
		c.processWriteLocked(rec)
	}
}

func (c *WritableController[T]) processWriteLocked(rec *writeRecord[T]) {
	s := c.stream
	c.inFlightWrite = rec
	writeAlg := c.sink.Write
	go func() {
		var err error
		if writeAlg != nil {
			err = writeAlg(rec.chunk, c)
		}
		s.mu.Lock()
		c.inFlightWrite = nil
		c.queue.dequeue()
		c.reportQueueCostLocked()
		if err != nil {
			rec.settle(err)
			if s.state == StateErroring {
				c.finishErroringLocked()
			} else {
				c.errorIfNeededLocked(err)
			}
		} else {
			rec.settle(nil)
			if c.metrics != nil {
				c.metrics.ChunksDelivered.WithLabelValues("writable", c.name).Inc()
			}
			if !c.closeQueuedOrInFlightLocked() && s.state == StateWritable {
				c.updateBackpressureLocked()
			}
			c.advanceQueueLocked()
		}
		s.mu.Unlock()
	}()
}

func (c *WritableController[T]) processCloseLocked(rec *writeRecord[T]) {
	s := c.stream
	c.inFlightClose = rec
	c.queue.dequeue()
	closeAlg := c.sink.Close
	go func() {
		var err error
		if closeAlg != nil {
			err = closeAlg()
		}
		s.mu.Lock()
		c.inFlightClose = nil
		if err != nil {
			rec.settle(err)
			if req := s.pendingAbort; req != nil {
				req.err = err
				close(req.done)
				s.pendingAbort = nil
			}
			if s.state == StateErroring {
				// The original erroring reason wins over the close failure.
				c.finishErroringLocked()
			} else {
				c.errorIfNeededLocked(err)
			}
		} else {
			// A close that completes while erroring still wins: the sink
			// finished cleanly, so the stream settles closed.
			rec.settle(nil)
			s.state = StateClosed
			s.storedErr = nil
			if req := s.pendingAbort; req != nil {
				close(req.done)
				s.pendingAbort = nil
			}
			c.teardownLocked()
			c.abortAlg = nil
			s.wakeReadyLocked()
			close(s.terminal)
		}
		s.mu.Unlock()
	}()
}

func (c *WritableController[T]) reportQueueCostLocked() {
	if c.metrics != nil {
		c.metrics.QueueCost.WithLabelValues("writable", c.name).Set(c.queue.totalCost())
	}
}

// Write submits one chunk and blocks until the sink has consumed it, the
// stream errors, or ctx is canceled. Abandoning the call does not withdraw
// the queued chunk.
func (w *Writer[T]) Write(ctx context.Context, chunk T) error {
	rec, err := w.enqueueWrite(chunk)
	if err != nil {
		return err
	}
	select {
	case <-rec.done:
		return rec.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueueWrite queues a chunk without waiting for completion. The pipe
// engine uses it to keep reading while the latest write drains.
func (w *Writer[T]) enqueueWrite(chunk T) (*writeRecord[T], error) {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ctrl

	switch {
	case w.released:
		return nil, ErrWriterReleased
	case s.state == StateErrored, s.state == StateErroring:
		return nil, s.storedErr
	case s.state == StateClosed:
		return nil, ErrStreamClosed
	case c.closeQueuedOrInFlightLocked():
		return nil, ErrStreamClosing
	}

	cost := c.strategy.Size(chunk)
	if math.IsNaN(cost) || cost < 0 {
		// A bad size function is an algorithm failure, not a usage error.
		c.errorIfNeededLocked(ErrInvalidChunkSize)
		return nil, ErrInvalidChunkSize
	}

	rec := &writeRecord[T]{chunk: chunk, done: make(chan struct{})}
	_ = c.queue.enqueue(rec, cost)
	if c.metrics != nil {
		c.metrics.ChunksEnqueued.WithLabelValues("writable", c.name).Inc()
	}
	c.reportQueueCostLocked()
	c.updateBackpressureLocked()
	c.advanceQueueLocked()
	return rec, nil
}

// Ready blocks while the stream reports backpressure. It returns nil once
// buffered cost is back under the high-water mark (or the stream closes),
// and the stored reason once the stream is erroring or errored. Respecting
// Ready is advisory; Write accepts chunks past the mark.
func (w *Writer[T]) Ready(ctx context.Context) error {
	s := w.stream
	for {
		s.mu.Lock()
		switch {
		case w.released:
			s.mu.Unlock()
			return ErrWriterReleased
		case s.state == StateErrored, s.state == StateErroring:
			err := s.storedErr
			s.mu.Unlock()
			return err
		case s.state == StateClosed, !s.backpressure:
			s.mu.Unlock()
			return nil
		}
		ready := s.readyCh
		releasedCh := w.releasedCh
		s.mu.Unlock()

		select {
		case <-ready:
		case <-releasedCh:
			return ErrWriterReleased
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close queues a close marker behind all accepted writes and blocks until
// the sink's close algorithm settles.
func (w *Writer[T]) Close(ctx context.Context) error {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return ErrWriterReleased
	}
	return s.closeWithLock(ctx)
}

// Abort forcefully tears the stream down. Queued writes are rejected
// without draining; an in-flight operation still settles first, and the
// abort algorithm runs at most once.
func (w *Writer[T]) Abort(ctx context.Context, reason error) error {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return ErrWriterReleased
	}
	return s.abortWithLock(ctx, reason)
}

// ReleaseLock detaches the writer. Queued writes are not withdrawn; stream
// state is unchanged.
func (w *Writer[T]) ReleaseLock() {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.released {
		return
	}
	w.released = true
	close(w.releasedCh)
	s.writer = nil
}

// Closed blocks until the stream reaches a terminal state, returning nil on
// closed and the stored reason on errored.
func (w *Writer[T]) Closed(ctx context.Context) error {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return ErrWriterReleased
	}
	releasedCh := w.releasedCh
	s.mu.Unlock()

	select {
	case <-s.terminal:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.storedErr
	case <-releasedCh:
		return ErrWriterReleased
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DesiredSize returns the remaining capacity before backpressure. The
// second return is false once the stream is erroring or errored.
func (w *Writer[T]) DesiredSize() (float64, bool) {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.released {
		return 0, false
	}
	return s.ctrl.desiredSizeLocked()
}
