package relay

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the producer side has been released.
var ErrClosed = errors.New("relay: queue closed")

// Item is one fully rendered event: the worker never consults session state.
type Item struct {
	Destination string
	Payload     []byte
}

// Queue is an unbounded, ordered, multi-producer single-consumer queue.
// The zero value is not usable; create one with NewQueue.
type Queue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []Item
	head   int
	closed bool
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Push appends it to the tail of the queue. It never blocks.
func (q *Queue) Push(it Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, it)
	q.ready.Signal()
	return nil
}

// Pop removes and returns the head of the queue, blocking while the queue is
// empty and open. ok is false only when the queue is closed and drained.
func (q *Queue) Pop() (it Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) && !q.closed {
		q.ready.Wait()
	}
	if q.head == len(q.items) {
		return Item{}, false
	}
	it = q.items[q.head]
	q.items[q.head] = Item{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return it, true
}

// Close releases the producer side. Items already queued are still returned
// by Pop. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.ready.Broadcast()
}

// Len returns the number of items waiting to be consumed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
