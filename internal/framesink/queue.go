package framesink

import (
	"sync"

	"github.com/hay-kot/rtscope/internal/core/media"
)

// queue is an unbounded FIFO with a single consumer. Pop marks the returned
// frame as in flight until Done, so Pending never reads zero while a frame is
// between the queue and the encoder.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []media.Frame
	head   int
	busy   bool
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends f. It reports false once the queue is closed.
func (q *queue) Push(f media.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, f)
	q.cond.Signal()
	return true
}

// Pop blocks until a frame is available or the queue is closed.
func (q *queue) Pop() (media.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return media.Frame{}, false
	}

	f := q.items[q.head]
	q.items[q.head] = media.Frame{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.busy = true
	return f, true
}

// Done clears the in-flight mark set by Pop.
func (q *queue) Done() {
	q.mu.Lock()
	q.busy = false
	q.mu.Unlock()
}

// Len is the number of frames waiting.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Pending is the number of waiting frames plus the one in flight, if any.
func (q *queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items) - q.head
	if q.busy {
		n++
	}
	return n
}

// Close wakes the consumer, rejects further pushes and discards what is left.
// It returns the number of frames discarded.
func (q *queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	q.closed = true
	q.items = nil
	q.head = 0
	q.cond.Broadcast()
	return n
}
