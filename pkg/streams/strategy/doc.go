/*
Package strategy provides queuing strategies for streamkit streams.

A strategy converts buffered chunks to a numeric cost and carries the
high-water mark above which a stream reports backpressure. Two built-ins
cover the common cases:

	counting, _ := strategy.NewCount[string](16)    // each chunk costs 1
	bytes, _ := strategy.NewByteLength(64 * 1024)   // chunks cost their length

Custom sizing is available for richer chunk types:

	weighted, _ := strategy.NewCustom(100, func(j job) float64 {
		return float64(j.Weight)
	})

A high-water mark of 0 means no read-ahead: the stream only pulls from its
source while a read is pending.
*/
package strategy
