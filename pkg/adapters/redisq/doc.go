// Package redisq bridges Redis lists into streamkit streams, turning a
// list into a durable byte-chunk queue between processes.
//
// NewSink pushes each written chunk onto the list with LPUSH; NewSource
// consumes the list with blocking BRPOP, so list order is preserved
// end to end. One process can pipe into a sink while another pipes from a
// source, giving a backpressure-aware cross-process pipeline over plain
// Redis.
//
// Basic usage:
//
//	src, err := redisq.NewSource(redisq.Config{Redis: rdb, Key: "jobs"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	dest := iostream.NewWriter(os.Stdout)
//	if err := src.PipeTo(ctx, dest, streams.PipeOptions{}); err != nil {
//		log.Fatal(err)
//	}
package redisq
