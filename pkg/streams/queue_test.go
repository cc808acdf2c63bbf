package streams

import (
	"math"
	"testing"

	"github.com/vnykmshr/streamkit/internal/testutil"
)

func TestQueueFIFO(t *testing.T) {
	var q queue[string]

	testutil.AssertNoError(t, q.enqueue("a", 1))
	testutil.AssertNoError(t, q.enqueue("b", 2))
	testutil.AssertNoError(t, q.enqueue("c", 3))

	testutil.AssertEqual(t, q.len(), 3)
	testutil.AssertEqual(t, q.totalCost(), 6)

	testutil.AssertEqual(t, q.dequeue(), "a")
	testutil.AssertEqual(t, q.dequeue(), "b")
	testutil.AssertEqual(t, q.dequeue(), "c")
	testutil.AssertEqual(t, q.len(), 0)
	testutil.AssertEqual(t, q.totalCost(), 0)
}

func TestQueueTotalCostTracksSizes(t *testing.T) {
	var q queue[int]

	costs := []float64{1, 0, 2.5, 7}
	var want float64
	for i, cost := range costs {
		testutil.AssertNoError(t, q.enqueue(i, cost))
		want += cost
	}
	testutil.AssertEqual(t, q.totalCost(), want)

	q.dequeue()
	testutil.AssertEqual(t, q.totalCost(), want-costs[0])
}

func TestQueueInvalidCost(t *testing.T) {
	var q queue[int]

	testutil.AssertEqual(t, q.enqueue(1, math.NaN()), ErrInvalidChunkSize)
	testutil.AssertEqual(t, q.enqueue(1, -1), ErrInvalidChunkSize)

	// A rejected chunk is never admitted.
	testutil.AssertEqual(t, q.len(), 0)
	testutil.AssertEqual(t, q.totalCost(), 0)
}

func TestQueuePeek(t *testing.T) {
	var q queue[int]
	testutil.AssertNoError(t, q.enqueue(10, 1))
	testutil.AssertNoError(t, q.enqueue(20, 1))

	testutil.AssertEqual(t, q.peek(), 10)
	testutil.AssertEqual(t, q.len(), 2)
}

func TestQueueReset(t *testing.T) {
	var q queue[int]
	testutil.AssertNoError(t, q.enqueue(1, 5))
	testutil.AssertNoError(t, q.enqueue(2, 5))

	q.reset()

	testutil.AssertEqual(t, q.len(), 0)
	testutil.AssertEqual(t, q.totalCost(), 0)

	// The queue stays usable after a reset.
	testutil.AssertNoError(t, q.enqueue(3, 1))
	testutil.AssertEqual(t, q.dequeue(), 3)
}
