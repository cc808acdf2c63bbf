package testutil

import (
	"errors"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected context to have a deadline")
	}
	if time.Until(deadline) > TestTimeout {
		t.Fatalf("deadline too far in the future: %v", deadline)
	}
}

func TestMockWriterBasics(t *testing.T) {
	mw := NewMockWriter()

	n, err := mw.Write([]byte("hello"))
	AssertNoError(t, err)
	AssertEqual(t, n, 5)
	AssertEqual(t, mw.String(), "hello")
	AssertEqual(t, mw.Len(), 5)
	AssertEqual(t, mw.WriteCount(), 1)

	_, err = mw.Write([]byte(" world"))
	AssertNoError(t, err)
	chunks := mw.Chunks()
	AssertEqual(t, len(chunks), 2)
	AssertEqual(t, string(chunks[0]), "hello")
	AssertEqual(t, string(chunks[1]), " world")
}

func TestMockWriterErrorOnNth(t *testing.T) {
	mw := NewMockWriter()
	mw.SetErrorOnNth(2)

	_, err := mw.Write([]byte("a"))
	AssertNoError(t, err)

	_, err = mw.Write([]byte("b"))
	AssertError(t, err)

	// Subsequent writes succeed again.
	_, err = mw.Write([]byte("c"))
	AssertNoError(t, err)
}

func TestMockWriterAlwaysError(t *testing.T) {
	mw := NewMockWriter()
	sentinel := errors.New("disk full")
	mw.SetAlwaysError(sentinel)

	_, err := mw.Write([]byte("x"))
	AssertEqual(t, err, sentinel)
}

func TestMockWriterReset(t *testing.T) {
	mw := NewMockWriter()
	_, _ = mw.Write([]byte("data"))
	mw.SetAlwaysError(errors.New("boom"))

	mw.Reset()

	AssertEqual(t, mw.Len(), 0)
	AssertEqual(t, mw.WriteCount(), 0)

	_, err := mw.Write([]byte("ok"))
	AssertNoError(t, err)
}

func TestEventually(t *testing.T) {
	start := time.Now()
	Eventually(t, func() bool {
		return time.Since(start) > 5*time.Millisecond
	}, "timer elapsed")
}
