package testutil

import (
	"errors"
	"sync"
	"time"
)

// MockWriter is an io.Writer for sink tests. It records every write as a
// separate chunk and can inject latency or failures to exercise
// backpressure and error propagation paths.
type MockWriter struct {
	mu       sync.Mutex
	chunks   [][]byte
	accepted []byte

	delay      time.Duration
	failAt     int
	stickyErr  error
	alwaysFail bool
}

// NewMockWriter creates an empty MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records p as one chunk, applying any configured delay or failure.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.chunks = append(mw.chunks, append([]byte(nil), p...))

	if mw.delay > 0 {
		time.Sleep(mw.delay)
	}
	if mw.alwaysFail {
		return 0, mw.stickyErr
	}
	if mw.failAt > 0 && len(mw.chunks) == mw.failAt {
		return 0, errors.New("simulated error")
	}

	mw.accepted = append(mw.accepted, p...)
	return len(p), nil
}

// String returns everything successfully written, concatenated.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return string(mw.accepted)
}

// Len returns the number of bytes successfully written.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.accepted)
}

// WriteCount returns how many times Write was called.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.chunks)
}

// Chunks returns a copy of each recorded write in call order, including
// writes that were failed by injection.
func (mw *MockWriter) Chunks() [][]byte {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	out := make([][]byte, len(mw.chunks))
	for i, c := range mw.chunks {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// SetWriteDelay makes every subsequent write sleep for the duration,
// simulating a slow downstream.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.delay = delay
}

// SetErrorOnNth makes the nth write (1-based) fail once.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failAt = n
}

// SetAlwaysError makes every subsequent write fail with err.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.alwaysFail = true
	mw.stickyErr = err
}

// Reset drops recorded writes and clears injected behavior.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.chunks = nil
	mw.accepted = nil
	mw.delay = 0
	mw.failAt = 0
	mw.stickyErr = nil
	mw.alwaysFail = false
}
