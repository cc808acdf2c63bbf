package benchmark

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/vnykmshr/streamkit/pkg/streams"
	"github.com/vnykmshr/streamkit/pkg/streams/strategy"
)

func pullSource() streams.Source[int] {
	return streams.Source[int]{
		Pull: func(c *streams.ReadableController[int]) error {
			return c.Enqueue(1)
		},
	}
}

// BenchmarkReadAtHighWaterMark measures read throughput against a
// pull-driven source at different queue depths.
func BenchmarkReadAtHighWaterMark(b *testing.B) {
	marks := []int{1, 16, 256}

	for _, hwm := range marks {
		b.Run(hwmLabel(hwm), func(b *testing.B) {
			strat, err := strategy.NewCount[int](float64(hwm))
			if err != nil {
				b.Fatal(err)
			}
			s := streams.NewReadableWithConfig(pullSource(), streams.Config[int]{
				Strategy: strat,
			})
			r, err := s.GetReader()
			if err != nil {
				b.Fatal(err)
			}

			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.Read(ctx); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			_ = r.Cancel(ctx, nil)
		})
	}
}

// BenchmarkChannelBaseline measures the raw buffered-channel handoff the
// read path is competing with, at matching buffer depths.
func BenchmarkChannelBaseline(b *testing.B) {
	depths := []int{1, 16, 256}

	for _, depth := range depths {
		b.Run(hwmLabel(depth), func(b *testing.B) {
			ch := make(chan int, depth)
			stop := make(chan struct{})
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case ch <- 1:
					case <-stop:
						return
					}
				}
			}()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				<-ch
			}
			b.StopTimer()

			close(stop)
			wg.Wait()
		})
	}
}

// BenchmarkTransformStage measures the overhead of routing chunks through
// an identity transform stage versus reading the source directly.
func BenchmarkTransformStage(b *testing.B) {
	ctx := context.Background()

	stage := streams.NewTransform(streams.Transformer[int, int]{
		Transform: func(chunk int, c *streams.ReadableController[int]) error {
			return c.Enqueue(chunk)
		},
	})
	out := streams.PipeThrough(ctx, streams.NewReadable(pullSource()), stage, streams.PipeOptions{})
	r, err := out.GetReader()
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Read(ctx); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	_ = r.Cancel(ctx, nil)
}

// BenchmarkTeeFanOut measures two branches draining a shared source in
// lockstep, which exercises pull coalescing on every chunk.
func BenchmarkTeeFanOut(b *testing.B) {
	ctx := context.Background()

	b1, b2, err := streams.NewReadable(pullSource()).Tee()
	if err != nil {
		b.Fatal(err)
	}
	r1, err := b1.GetReader()
	if err != nil {
		b.Fatal(err)
	}
	r2, err := b2.GetReader()
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r1.Read(ctx); err != nil {
			b.Fatal(err)
		}
		if _, err := r2.Read(ctx); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	_ = r1.Cancel(ctx, nil)
	_ = r2.Cancel(ctx, nil)
}

// hwmLabel returns a readable label for queue depths.
func hwmLabel(depth int) string {
	return "hwm-" + strconv.Itoa(depth)
}
