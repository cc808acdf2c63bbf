package streams

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// PipeOptions tunes how a pipe reacts to either end settling. Each prevent
// flag suppresses only the forwarding action on the other side; the pipe's
// own result still reflects the originating error.
type PipeOptions struct {
	// PreventClose leaves the destination open when the source closes.
	PreventClose bool

	// PreventAbort leaves the destination alone when the source errors.
	PreventAbort bool

	// PreventCancel leaves the source alone when the destination errors
	// or closes early.
	PreventCancel bool
}

// PipeTo drives every chunk from the stream into dest, coordinating
// shutdown from either end. It acquires an exclusive reader and writer,
// failing fast if either stream is locked, and returns only once piping has
// fully shut down, including the last in-flight write.
//
// Canceling ctx aborts the destination and cancels the source (subject to
// the prevent flags) and settles the pipe with ErrPipeAborted.
func (s *ReadableStream[T]) PipeTo(ctx context.Context, dest *WritableStream[T], opts PipeOptions) error {
	reader, err := s.GetReader()
	if err != nil {
		return err
	}
	writer, err := dest.GetWriter()
	if err != nil {
		reader.ReleaseLock()
		return err
	}

	p := &pipe[T]{
		source:   s,
		dest:     dest,
		reader:   reader,
		writer:   writer,
		opts:     opts,
		result:   make(chan error, 1),
		finished: make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	return p.run(ctx)
}

// pipe is the one-shot state machine behind PipeTo. The shuttingDown flag
// makes the reactive branches mutually exclusive: only the first triggering
// condition determines the outcome.
type pipe[T any] struct {
	source *ReadableStream[T]
	dest   *WritableStream[T]
	reader *Reader[T]
	writer *Writer[T]
	opts   PipeOptions

	mu           sync.Mutex
	shuttingDown bool
	latestWrite  *writeRecord[T]

	result   chan error
	finished chan struct{}
	loopDone chan struct{}
}

func (p *pipe[T]) run(ctx context.Context) error {
	start := time.Now()
	m := p.source.ctrl.metrics
	if m != nil {
		m.PipesActive.Inc()
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	go p.watchSource(stopLoop)
	go p.watchDest(stopLoop)
	go p.watchSignal(ctx, stopLoop)
	go func() {
		p.loop(loopCtx)
		close(p.loopDone)
	}()

	err := <-p.result
	if m != nil {
		m.PipesActive.Dec()
		m.PipeDuration.Observe(time.Since(start).Seconds())
		m.PipeShutdowns.WithLabelValues(pipeOutcome(err)).Inc()
	}
	return err
}

func pipeOutcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrPipeAborted):
		return "aborted"
	default:
		return "errored"
	}
}

// loop is the main transfer loop: wait for writer readiness, read one
// chunk, queue its write, repeat. Write failures are swallowed here; the
// destination watcher owns their propagation.
func (p *pipe[T]) loop(ctx context.Context) {
	for {
		if p.isShuttingDown() {
			return
		}
		if err := p.writer.Ready(ctx); err != nil {
			return
		}
		res, err := p.reader.Read(ctx)
		if err != nil || res.Done {
			// Source settled; the source watcher decides the outcome.
			return
		}
		rec, err := p.writer.enqueueWrite(res.Value)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.latestWrite = rec
		p.mu.Unlock()
	}
}

func (p *pipe[T]) watchSource(stopLoop context.CancelFunc) {
	select {
	case <-p.source.terminated():
	case <-p.finished:
		return
	}
	if err := p.source.Err(); err != nil {
		var action func() error
		if !p.opts.PreventAbort {
			action = func() error {
				return p.writer.Abort(context.Background(), err)
			}
		}
		p.shutdown(stopLoop, action, err)
		return
	}
	var action func() error
	if !p.opts.PreventClose {
		action = func() error {
			return p.writer.Close(context.Background())
		}
	}
	p.shutdown(stopLoop, action, nil)
}

func (p *pipe[T]) watchDest(stopLoop context.CancelFunc) {
	select {
	case <-p.dest.terminated():
	case <-p.finished:
		return
	}
	if err := p.dest.Err(); err != nil {
		var action func() error
		if !p.opts.PreventCancel {
			action = func() error {
				return p.reader.Cancel(context.Background(), err)
			}
		}
		p.shutdown(stopLoop, action, err)
		return
	}
	// The destination closed cleanly. If this pipe's own shutdown closed
	// it, shutdown has already been decided and this is a no-op; anything
	// else is an early close.
	err := ErrDestinationClosed
	var action func() error
	if !p.opts.PreventCancel {
		action = func() error {
			return p.reader.Cancel(context.Background(), err)
		}
	}
	p.shutdown(stopLoop, action, err)
}

func (p *pipe[T]) watchSignal(ctx context.Context, stopLoop context.CancelFunc) {
	select {
	case <-ctx.Done():
	case <-p.finished:
		return
	}
	err := fmt.Errorf("%w: %v", ErrPipeAborted, ctx.Err())
	action := func() error {
		var errs []error
		if !p.opts.PreventAbort {
			if aerr := p.writer.Abort(context.Background(), err); aerr != nil {
				errs = append(errs, aerr)
			}
		}
		if !p.opts.PreventCancel {
			if cerr := p.reader.Cancel(context.Background(), err); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		return errors.Join(errs...)
	}
	p.shutdown(stopLoop, action, err)
}

func (p *pipe[T]) isShuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuttingDown
}

// shutdown is the one-time teardown sequence. It flushes the last in-flight
// write while the destination can still accept it, runs the forwarding
// action, releases both lock holders, and settles the pipe's result. An
// action failure overrides errIn.
func (p *pipe[T]) shutdown(stopLoop context.CancelFunc, action func() error, errIn error) {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return
	}
	p.shuttingDown = true
	p.mu.Unlock()

	// Let the loop finish its current step: a chunk it has already read
	// must reach the destination queue before the final flush.
	stopLoop()
	<-p.loopDone

	p.mu.Lock()
	latest := p.latestWrite
	p.mu.Unlock()

	if latest != nil && p.dest.acceptingWrites() {
		// Never tear the sink down mid-write; its own error, if any, is
		// propagated by the destination watcher that loses this race.
		<-latest.done
	}

	if action != nil {
		if aerr := action(); aerr != nil {
			errIn = aerr
		}
	}

	p.reader.ReleaseLock()
	p.writer.ReleaseLock()
	p.result <- errIn
	close(p.finished)
}

// acceptingWrites reports whether the destination is still writable with no
// close in flight, i.e. whether a queued write can still drain normally.
func (s *WritableStream[T]) acceptingWrites() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateWritable && s.ctrl.inFlightClose == nil && !s.ctrl.closeRequested
}
