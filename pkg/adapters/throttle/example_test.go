package throttle_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vnykmshr/streamkit/pkg/adapters/throttle"
	"github.com/vnykmshr/streamkit/pkg/streams"
)

// Example paces a burst of events to one per millisecond.
func Example() {
	ctx := context.Background()

	src := streams.NewReadable(streams.Source[string]{
		Start: func(c *streams.ReadableController[string]) error {
			for _, ev := range []string{"created", "updated", "deleted"} {
				if err := c.Enqueue(ev); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})

	paced, err := throttle.Readable(ctx, src, throttle.Config[string]{
		Rate: throttle.Every(time.Millisecond),
	})
	if err != nil {
		log.Fatal(err)
	}

	reader, err := paced.GetReader()
	if err != nil {
		log.Fatal(err)
	}
	for {
		res, err := reader.Read(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if res.Done {
			break
		}
		fmt.Println(res.Value)
	}

	// Output:
	// created
	// updated
	// deleted
}
