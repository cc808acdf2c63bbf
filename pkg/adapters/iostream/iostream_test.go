package iostream

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/streamkit/internal/testutil"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

func TestReaderDeliversAllBytes(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	const payload = "the quick brown fox jumps over the lazy dog"
	src := NewReaderWithConfig(strings.NewReader(payload), Config{ChunkSize: 8})

	got, err := ReadAll(ctx, src)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(got), payload)
	testutil.AssertEqual(t, src.State(), streams.StateClosed)
}

func TestReaderEmptyInputClosesImmediately(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	src := NewReader(bytes.NewReader(nil))
	got, err := ReadAll(ctx, src)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(got), 0)
}

// failingReader errors after yielding a prefix.
type failingReader struct {
	data []byte
	err  error
}

func (fr *failingReader) Read(p []byte) (int, error) {
	if len(fr.data) == 0 {
		return 0, fr.err
	}
	n := copy(p, fr.data)
	fr.data = fr.data[n:]
	return n, nil
}

func TestReaderErrorFailsStream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	reason := errors.New("device unplugged")
	src := NewReaderWithConfig(&failingReader{data: []byte("abc"), err: reason}, Config{ChunkSize: 2})

	got, err := ReadAll(ctx, src)
	testutil.AssertEqual(t, err, reason)
	testutil.AssertEqual(t, string(got), "abc")
	testutil.AssertEqual(t, src.State(), streams.StateErrored)
}

// closableReader records whether Close was called, delegating to a real
// ReadCloser so a blocked Read unblocks on close.
type closableReader struct {
	inner  io.ReadCloser
	mu     sync.Mutex
	closed bool
}

func (cr *closableReader) Read(p []byte) (int, error) {
	return cr.inner.Read(p)
}

func (cr *closableReader) Close() error {
	cr.mu.Lock()
	cr.closed = true
	cr.mu.Unlock()
	return cr.inner.Close()
}

func (cr *closableReader) wasClosed() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.closed
}

func TestReaderCancelClosesUnderlying(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// A pipe with no writer keeps the source's read blocked until cancel
	// closes the underlying reader.
	pr, pw := io.Pipe()
	defer pw.Close()
	cr := &closableReader{inner: pr}
	src := NewReader(cr)

	r, err := src.GetReader()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, r.Cancel(ctx, errors.New("done early")))
	testutil.AssertEqual(t, cr.wasClosed(), true)
}

func TestWriterFlushesChunks(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	mock := testutil.NewMockWriter()
	dest := NewWriter(mock)

	w, err := dest.GetWriter()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, w.Write(ctx, []byte("hello ")))
	testutil.AssertNoError(t, w.Write(ctx, []byte("world")))
	testutil.AssertNoError(t, w.Close(ctx))

	testutil.AssertEqual(t, mock.String(), "hello world")
	testutil.AssertEqual(t, mock.WriteCount(), 2)
}

func TestWriterErrorFailsStream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	reason := errors.New("connection reset")
	mock := testutil.NewMockWriter()
	mock.SetAlwaysError(reason)
	dest := NewWriter(mock)

	w, err := dest.GetWriter()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, w.Write(ctx, []byte("doomed")), reason)
	testutil.AssertEqual(t, dest.State(), streams.StateErrored)
}

func TestPipeReaderToWriter(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	payload := strings.Repeat("streamkit ", 1000)
	src := NewReaderWithConfig(strings.NewReader(payload), Config{ChunkSize: 64})
	mock := testutil.NewMockWriter()
	dest := NewWriter(mock)

	testutil.AssertNoError(t, src.PipeTo(ctx, dest, streams.PipeOptions{}))
	testutil.AssertEqual(t, mock.String(), payload)
}

func TestPipeSlowWriterBackpressure(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	payload := strings.Repeat("x", 4096)
	src := NewReaderWithConfig(strings.NewReader(payload), Config{ChunkSize: 256})
	mock := testutil.NewMockWriter()
	mock.SetWriteDelay(time.Millisecond)
	dest := NewWriterWithConfig(mock, Config{ChunkSize: 256})

	testutil.AssertNoError(t, src.PipeTo(ctx, dest, streams.PipeOptions{}))
	testutil.AssertEqual(t, mock.Len(), len(payload))
}
