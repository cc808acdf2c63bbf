// Package iostream bridges the standard library's io.Reader and io.Writer
// into backpressure-aware byte-chunk streams.
//
// NewReader wraps an io.Reader as a pull-based ReadableStream: data is read
// only as fast as consumers drain it. NewWriter wraps an io.Writer as a
// WritableStream whose sink performs full writes, one chunk at a time.
//
// Basic usage:
//
//	src := iostream.NewReader(file)
//	dest := iostream.NewWriter(conn)
//	if err := src.PipeTo(ctx, dest, streams.PipeOptions{}); err != nil {
//		log.Fatal(err)
//	}
package iostream
