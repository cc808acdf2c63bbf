package streams

import (
	"context"
	"testing"

	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

// BenchmarkEnqueueRead measures single-chunk turnaround through a readable
// stream's queue.
func BenchmarkEnqueueRead(b *testing.B) {
	ctx := context.Background()
	s := NewReadable(Source[int]{})
	r, err := s.GetReader()
	if err != nil {
		b.Fatal(err)
	}
	c := s.ctrl

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Enqueue(i); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Read(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWriteDrain measures write throughput against a trivial sink.
func BenchmarkWriteDrain(b *testing.B) {
	ctx := context.Background()
	s := NewWritable(Sink[int]{
		Write: func(chunk int, c *WritableController[int]) error { return nil },
	})
	w, err := s.GetWriter()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.Write(ctx, i); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipeThroughput measures end-to-end pipe transfer of b.N chunks.
func BenchmarkPipeThroughput(b *testing.B) {
	b.ReportAllocs()
	ctx := context.Background()

	hwm, err := strategy.NewCount[int](64)
	if err != nil {
		b.Fatal(err)
	}

	next := 0
	src := NewReadableWithConfig(Source[int]{
		Pull: func(c *ReadableController[int]) error {
			next++
			if next > b.N {
				return c.Close()
			}
			return c.Enqueue(next)
		},
	}, Config[int]{Strategy: hwm})
	dest := NewWritableWithConfig(Sink[int]{
		Write: func(chunk int, c *WritableController[int]) error { return nil },
	}, Config[int]{Strategy: hwm})

	b.ResetTimer()
	if err := src.PipeTo(ctx, dest, PipeOptions{}); err != nil {
		b.Fatal(err)
	}
}
