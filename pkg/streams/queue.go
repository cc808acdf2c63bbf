package streams

import "math"

// queueEntry pairs a buffered item with the cost it was admitted at.
type queueEntry[T any] struct {
	item T
	cost float64
}

// queue is the ordered chunk buffer composed into both controllers. Order is
// strict FIFO; read-call-order delivery depends on it.
type queue[T any] struct {
	entries []queueEntry[T]
	total   float64
}

// enqueue admits an item at the given cost. A NaN or negative cost is the Go
// rendering of a throwing size function and is reported without admitting
// the item; the caller is responsible for erroring the owning stream.
func (q *queue[T]) enqueue(item T, cost float64) error {
	if math.IsNaN(cost) || cost < 0 {
		return ErrInvalidChunkSize
	}
	q.entries = append(q.entries, queueEntry[T]{item: item, cost: cost})
	q.total += cost
	return nil
}

// dequeue removes and returns the oldest item. Callers must check len first.
func (q *queue[T]) dequeue() T {
	entry := q.entries[0]
	var zero T
	q.entries[0] = queueEntry[T]{item: zero}
	q.entries = q.entries[1:]
	q.total -= entry.cost
	if q.total < 0 {
		// Guard against float drift near zero.
		q.total = 0
	}
	return entry.item
}

// peek returns the oldest item without removing it.
func (q *queue[T]) peek() T {
	return q.entries[0].item
}

func (q *queue[T]) len() int {
	return len(q.entries)
}

func (q *queue[T]) totalCost() float64 {
	return q.total
}

// reset drops all entries and zeroes the running total.
func (q *queue[T]) reset() {
	q.entries = nil
	q.total = 0
}
