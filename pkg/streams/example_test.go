package streams_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/streamkit/pkg/streams"
)

func ExampleReadableStream() {
	ctx := context.Background()

	src := streams.NewReadable(streams.Source[string]{
		Start: func(c *streams.ReadableController[string]) error {
			for _, word := range []string{"hello", "streaming", "world"} {
				if err := c.Enqueue(word); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})

	reader, err := src.GetReader()
	if err != nil {
		panic(err)
	}
	for {
		res, err := reader.Read(ctx)
		if err != nil {
			panic(err)
		}
		if res.Done {
			break
		}
		fmt.Println(res.Value)
	}

	// Output:
	// hello
	// streaming
	// world
}

func ExampleReadableStream_PipeTo() {
	ctx := context.Background()

	src := streams.NewReadable(streams.Source[int]{
		Start: func(c *streams.ReadableController[int]) error {
			for i := 1; i <= 3; i++ {
				if err := c.Enqueue(i); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})
	dest := streams.NewWritable(streams.Sink[int]{
		Write: func(chunk int, c *streams.WritableController[int]) error {
			fmt.Println("wrote", chunk)
			return nil
		},
		Close: func() error {
			fmt.Println("sink closed")
			return nil
		},
	})

	if err := src.PipeTo(ctx, dest, streams.PipeOptions{}); err != nil {
		panic(err)
	}

	// Output:
	// wrote 1
	// wrote 2
	// wrote 3
	// sink closed
}

func ExampleReadableStream_Tee() {
	ctx := context.Background()

	src := streams.NewReadable(streams.Source[int]{
		Start: func(c *streams.ReadableController[int]) error {
			_ = c.Enqueue(7)
			return c.Close()
		},
	})

	left, right, err := src.Tee()
	if err != nil {
		panic(err)
	}
	for _, branch := range []*streams.ReadableStream[int]{left, right} {
		reader, err := branch.GetReader()
		if err != nil {
			panic(err)
		}
		res, err := reader.Read(ctx)
		if err != nil {
			panic(err)
		}
		fmt.Println(res.Value)
	}

	// Output:
	// 7
	// 7
}

func ExampleWriter_Ready() {
	ctx := context.Background()

	dest := streams.NewWritable(streams.Sink[string]{
		Write: func(chunk string, c *streams.WritableController[string]) error {
			fmt.Println("consumed", chunk)
			return nil
		},
	})
	writer, err := dest.GetWriter()
	if err != nil {
		panic(err)
	}

	for _, chunk := range []string{"a", "b"} {
		// Respect backpressure before submitting more work.
		if err := writer.Ready(ctx); err != nil {
			panic(err)
		}
		if err := writer.Write(ctx, chunk); err != nil {
			panic(err)
		}
	}
	if err := writer.Close(ctx); err != nil {
		panic(err)
	}

	// Output:
	// consumed a
	// consumed b
}

func ExamplePipeThrough() {
	ctx := context.Background()

	src := streams.NewReadable(streams.Source[int]{
		Start: func(c *streams.ReadableController[int]) error {
			for i := 1; i <= 3; i++ {
				if err := c.Enqueue(i); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})

	square := streams.NewTransform(streams.Transformer[int, int]{
		Transform: func(chunk int, c *streams.ReadableController[int]) error {
			return c.Enqueue(chunk * chunk)
		},
	})

	out := streams.PipeThrough(ctx, src, square, streams.PipeOptions{})
	reader, err := out.GetReader()
	if err != nil {
		panic(err)
	}
	for {
		res, err := reader.Read(ctx)
		if err != nil {
			panic(err)
		}
		if res.Done {
			break
		}
		fmt.Println(res.Value)
	}

	// Output:
	// 1
	// 4
	// 9
}
