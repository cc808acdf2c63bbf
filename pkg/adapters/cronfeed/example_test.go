package cronfeed_test

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/streamkit/pkg/adapters/cronfeed"
)

// tight is a programmatic schedule used to keep the example fast.
type tight struct{}

func (tight) Next(t time.Time) time.Time { return t.Add(time.Millisecond) }

var _ cron.Schedule = tight{}

func ExampleNewFromSchedule() {
	ctx := context.Background()

	feed := cronfeed.NewFromSchedule(tight{}, cronfeed.Config{MaxTicks: 2})
	reader, err := feed.GetReader()
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
		fmt.Println("tick", res.Value.Seq)
	}

	// Output:
	// tick 1
	// tick 2
}
