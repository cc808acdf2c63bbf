// Package cronfeed turns cron schedules into readable tick streams.
//
// A feed is pull-based: the schedule is only armed while a consumer wants
// data, and backpressure from a slow consumer pauses scheduling instead of
// accumulating missed firings. Each chunk is a Tick carrying its scheduled
// time and sequence number.
//
// Basic usage:
//
//	feed, err := cronfeed.New("0 * * * * *") // every minute, on the minute
//	if err != nil {
//		log.Fatal(err)
//	}
//	reader, err := feed.GetReader()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for {
//		tick, err := reader.Read(ctx)
//		if err != nil || tick.Done {
//			break
//		}
//		runJob(tick.Value.At)
//	}
package cronfeed
