package iostream

import (
	"context"
	"errors"
	"io"

	"github.com/vnykmshr/streamkit/pkg/metrics"
	"github.com/vnykmshr/streamkit/pkg/streams"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// Config holds configuration options for the io bridges.
type Config struct {
	// ChunkSize is the maximum size of a single chunk read from the
	// underlying io.Reader.
	// Default: 32KB
	ChunkSize int

	// Name labels the stream in metrics.
	Name string

	// Metrics receives stream instrumentation. Nil disables it.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 32 * 1024,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
}

func (c Config) streamConfig() streams.Config[[]byte] {
	// One chunk of read-ahead keeps the underlying reader busy without
	// buffering unboundedly.
	st, err := strategy.NewByteLength(float64(c.ChunkSize))
	if err != nil {
		st = strategy.Default[[]byte]()
	}
	return streams.Config[[]byte]{
		Strategy: st,
		Name:     c.Name,
		Metrics:  c.Metrics,
	}
}

// NewReader bridges an io.Reader into a byte-chunk ReadableStream with the
// default configuration.
func NewReader(r io.Reader) *streams.ReadableStream[[]byte] {
	return NewReaderWithConfig(r, DefaultConfig())
}

// NewReaderWithConfig bridges an io.Reader into a byte-chunk
// ReadableStream. Chunks are pulled on demand, so a slow consumer reads at
// most one chunk ahead. Reaching io.EOF closes the stream; any other read
// error errors it. Canceling the stream closes the reader when it
// implements io.Closer.
func NewReaderWithConfig(r io.Reader, config Config) *streams.ReadableStream[[]byte] {
	config.applyDefaults()

	// Pull calls never overlap, so a single scratch buffer is safe.
	buf := make([]byte, config.ChunkSize)
	return streams.NewReadableWithConfig(streams.Source[[]byte]{
		Pull: func(c *streams.ReadableController[[]byte]) error {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if enqErr := c.Enqueue(chunk); enqErr != nil {
					return enqErr
				}
			}
			if errors.Is(err, io.EOF) {
				return c.Close()
			}
			return err
		},
		Cancel: func(reason error) error {
			if closer, ok := r.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	}, config.streamConfig())
}

// NewWriter bridges an io.Writer into a byte-chunk WritableStream with the
// default configuration.
func NewWriter(w io.Writer) *streams.WritableStream[[]byte] {
	return NewWriterWithConfig(w, DefaultConfig())
}

// NewWriterWithConfig bridges an io.Writer into a byte-chunk
// WritableStream. Each chunk is written in full before the next begins.
// Closing or aborting the stream closes the writer when it implements
// io.Closer.
func NewWriterWithConfig(w io.Writer, config Config) *streams.WritableStream[[]byte] {
	config.applyDefaults()

	closeUnderlying := func() error {
		if closer, ok := w.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	return streams.NewWritableWithConfig(streams.Sink[[]byte]{
		Write: func(chunk []byte, c *streams.WritableController[[]byte]) error {
			for len(chunk) > 0 {
				n, err := w.Write(chunk)
				chunk = chunk[n:]
				if err != nil {
					return err
				}
			}
			return nil
		},
		Close: closeUnderlying,
		Abort: func(reason error) error {
			return closeUnderlying()
		},
	}, config.streamConfig())
}

// ReadAll drains a byte-chunk stream into a single slice. The reader lock
// is released before returning, even on error.
func ReadAll(ctx context.Context, s *streams.ReadableStream[[]byte]) ([]byte, error) {
	r, err := s.GetReader()
	if err != nil {
		return nil, err
	}
	defer r.ReleaseLock()

	var out []byte
	for {
		res, err := r.Read(ctx)
		if err != nil {
			return out, err
		}
		if res.Done {
			return out, nil
		}
		out = append(out, res.Value...)
	}
}
