package strategy

import (
	"errors"
	"math"
)

// ErrInvalidHighWaterMark is returned when a strategy is constructed with a
// negative or NaN high-water mark.
var ErrInvalidHighWaterMark = errors.New("high water mark must be a non-negative number")

// Strategy determines how buffered chunks are accounted against a stream's
// high-water mark. Size converts a chunk to a numeric cost; the high-water
// mark is the total cost above which the stream reports backpressure.
type Strategy[T any] interface {
	// Size returns the cost of a single chunk.
	Size(chunk T) float64

	// HighWaterMark returns the threshold on total queued cost.
	HighWaterMark() float64
}

// countStrategy counts every chunk as cost 1.
type countStrategy[T any] struct {
	highWaterMark float64
}

// NewCount creates a strategy that counts each chunk as 1, regardless of its
// contents. A high-water mark of 0 disables read-ahead entirely;
// math.Inf(1) is legal and effectively disables backpressure.
func NewCount[T any](highWaterMark float64) (Strategy[T], error) {
	if err := validateHighWaterMark(highWaterMark); err != nil {
		return nil, err
	}
	return &countStrategy[T]{highWaterMark: highWaterMark}, nil
}

func (s *countStrategy[T]) Size(T) float64 {
	return 1
}

func (s *countStrategy[T]) HighWaterMark() float64 {
	return s.highWaterMark
}

// byteLengthStrategy sizes chunks by their byte length.
type byteLengthStrategy struct {
	highWaterMark float64
}

// NewByteLength creates a strategy for binary-chunk streams that sizes each
// chunk by its length in bytes.
func NewByteLength(highWaterMark float64) (Strategy[[]byte], error) {
	if err := validateHighWaterMark(highWaterMark); err != nil {
		return nil, err
	}
	return &byteLengthStrategy{highWaterMark: highWaterMark}, nil
}

func (s *byteLengthStrategy) Size(chunk []byte) float64 {
	return float64(len(chunk))
}

func (s *byteLengthStrategy) HighWaterMark() float64 {
	return s.highWaterMark
}

// customStrategy delegates sizing to a user-provided function.
type customStrategy[T any] struct {
	highWaterMark float64
	size          func(T) float64
}

// NewCustom creates a strategy with a caller-supplied size function. A size
// function that yields NaN or a negative cost is treated as a failing
// algorithm by the owning stream.
func NewCustom[T any](highWaterMark float64, size func(T) float64) (Strategy[T], error) {
	if err := validateHighWaterMark(highWaterMark); err != nil {
		return nil, err
	}
	if size == nil {
		return nil, errors.New("size function must not be nil")
	}
	return &customStrategy[T]{highWaterMark: highWaterMark, size: size}, nil
}

func (s *customStrategy[T]) Size(chunk T) float64 {
	return s.size(chunk)
}

func (s *customStrategy[T]) HighWaterMark() float64 {
	return s.highWaterMark
}

// Default returns the strategy used when none is configured: count-based
// with a high-water mark of 1.
func Default[T any]() Strategy[T] {
	return &countStrategy[T]{highWaterMark: 1}
}

func validateHighWaterMark(hwm float64) error {
	if math.IsNaN(hwm) || hwm < 0 {
		return ErrInvalidHighWaterMark
	}
	return nil
}
