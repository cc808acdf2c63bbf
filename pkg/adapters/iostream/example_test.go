package iostream_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/vnykmshr/streamkit/pkg/adapters/iostream"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

func ExampleNewReader() {
	ctx := context.Background()

	src := iostream.NewReaderWithConfig(strings.NewReader("hello, streams"), iostream.Config{ChunkSize: 5})
	data, err := iostream.ReadAll(ctx, src)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))

	// Output:
	// hello, streams
}

func ExampleNewWriter() {
	ctx := context.Background()

	var buf bytes.Buffer
	src := iostream.NewReader(strings.NewReader("copied through a pipe"))
	dest := iostream.NewWriter(&buf)

	if err := src.PipeTo(ctx, dest, streams.PipeOptions{}); err != nil {
		panic(err)
	}
	fmt.Println(buf.String())

	// Output:
	// copied through a pipe
}
