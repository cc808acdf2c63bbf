package streams

import (
	"context"
	"errors"
	"sync"
)

// Tee splits the stream into two independent branches backed by one shared
// upstream reader. Each branch buffers and pulls independently; a single
// outstanding upstream read serves whichever branches asked (pull
// coalescing). An upstream error is forwarded to both branches.
//
// Chunks are delivered to both branches by value; for aliasing chunk types
// such as []byte use TeeWithClone. Cancellation policy: the upstream cancel
// algorithm fires only once both branches have canceled, with the joined
// reasons. The first branch to cancel settles immediately without touching
// the upstream; the second branch's cancel call carries the upstream
// cancel's outcome.
func (s *ReadableStream[T]) Tee() (*ReadableStream[T], *ReadableStream[T], error) {
	return s.TeeWithClone(nil)
}

// TeeWithClone is Tee with an explicit per-chunk copy function applied to
// the second branch's chunks, so the branches never alias shared state.
func (s *ReadableStream[T]) TeeWithClone(clone func(T) T) (*ReadableStream[T], *ReadableStream[T], error) {
	reader, err := s.GetReader()
	if err != nil {
		return nil, nil, err
	}

	t := &teeState[T]{reader: reader, clone: clone, ready: make(chan struct{})}

	branch1 := NewReadable(Source[T]{
		Pull:   t.pull,
		Cancel: t.cancelBranch(&t.canceled1, &t.reason1),
	})
	branch2 := NewReadable(Source[T]{
		Pull:   t.pull,
		Cancel: t.cancelBranch(&t.canceled2, &t.reason2),
	})

	t.mu.Lock()
	t.branch1 = branch1.ctrl
	t.branch2 = branch2.ctrl
	t.mu.Unlock()
	close(t.ready)

	// Forward an upstream error to both branches even when no read is in
	// flight at the time it happens.
	go func() {
		if err := reader.Closed(context.Background()); err != nil {
			branch1.ctrl.Error(err)
			branch2.ctrl.Error(err)
		}
	}()

	return branch1, branch2, nil
}

// teeState is the shared coordination behind a pair of tee branches.
type teeState[T any] struct {
	mu     sync.Mutex
	reader *Reader[T]
	clone  func(T) T

	// ready gates the first upstream read until both branch controllers
	// are wired in.
	ready chan struct{}

	branch1 *ReadableController[T]
	branch2 *ReadableController[T]

	reading   bool
	readAgain bool

	canceled1 bool
	canceled2 bool
	reason1   error
	reason2   error
}

// pull is the shared pull algorithm of both branches. While an upstream
// read is outstanding, further pulls coalesce into it.
func (t *teeState[T]) pull(*ReadableController[T]) error {
	t.mu.Lock()
	if t.reading {
		t.readAgain = true
		t.mu.Unlock()
		return nil
	}
	t.reading = true
	t.mu.Unlock()
	go t.forwardOne()
	return nil
}

// forwardOne performs one upstream read and fans the outcome into both
// branch queues.
func (t *teeState[T]) forwardOne() {
	<-t.ready
	res, err := t.reader.Read(context.Background())

	t.mu.Lock()
	t.reading = false
	b1, b2 := t.branch1, t.branch2
	c1, c2 := t.canceled1, t.canceled2

	if err != nil {
		t.readAgain = false
		t.mu.Unlock()
		b1.Error(err)
		b2.Error(err)
		return
	}
	if res.Done {
		t.readAgain = false
		t.mu.Unlock()
		if !c1 {
			_ = b1.Close()
		}
		if !c2 {
			_ = b2.Close()
		}
		return
	}

	chunk1, chunk2 := res.Value, res.Value
	if t.clone != nil {
		chunk2 = t.clone(res.Value)
	}
	readAgain := t.readAgain
	t.readAgain = false
	t.mu.Unlock()

	if !c1 {
		_ = b1.Enqueue(chunk1)
	}
	if !c2 {
		_ = b2.Enqueue(chunk2)
	}
	if readAgain {
		_ = t.pull(nil)
	}
}

// cancelBranch builds one branch's cancel algorithm over the shared state.
func (t *teeState[T]) cancelBranch(canceled *bool, reason *error) func(error) error {
	return func(r error) error {
		t.mu.Lock()
		*canceled = true
		*reason = r
		both := t.canceled1 && t.canceled2
		joined := errors.Join(t.reason1, t.reason2)
		t.mu.Unlock()
		if !both {
			return nil
		}
		return t.reader.Cancel(context.Background(), joined)
	}
}
