// Package throttle paces streams with a token bucket.
//
// A throttle is a pass-through transform stage: chunks written to its
// writable side surface unchanged on its readable side, delayed so the
// sustained rate never exceeds the configured Limit. Because the delay
// happens inside the stage, a paced chunk exerts ordinary backpressure
// on whatever is producing upstream.
//
// Pacing a pipe:
//
//	stage, err := throttle.New[[]byte](throttle.Every(10 * time.Millisecond))
//	if err != nil {
//		log.Fatal(err)
//	}
//	paced := streams.PipeThrough(ctx, src, stage, streams.PipeOptions{})
//
// Costs default to one token per chunk; set Config.Cost to charge by
// size instead, e.g. bytes per second.
package throttle
