package walker

import "sync"

// Unit is one pending listing call: a prefix and, for continuation pages,
// the cursor returned by the previous page of that prefix.
type Unit struct {
	Prefix string
	Cursor string
}

// IsContinuation reports whether u resumes an earlier listing.
func (u Unit) IsContinuation() bool {
	return u.Cursor != ""
}

// compactAt is the number of consumed slots after which the backing slice
// is shifted down.
const compactAt = 256

// Queue is an unbounded FIFO of pending units, safe for concurrent use.
//
// Walkers push from many goroutines; the scheduler pops from one. Once
// closed, pushes are dropped.
type Queue struct {
	mu     sync.Mutex
	items  []Unit
	head   int
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends units to the tail. It returns false, dropping the units, when
// the queue has been closed.
func (q *Queue) Push(units ...Unit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, units...)
	return true
}

// TryPop removes and returns the unit at the head without blocking.
func (q *Queue) TryPop() (Unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return Unit{}, false
	}
	u := q.items[q.head]
	q.items[q.head] = Unit{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactAt && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return u, true
}

// Len returns the number of pending units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops the queue from accepting new units. Pending units can still be
// popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
