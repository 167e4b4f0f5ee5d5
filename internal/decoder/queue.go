package decoder

// unit is one encoded access unit owned by the queue until the feeder takes it.
type unit struct {
	data []byte
}

// submissionQueue is a fixed-capacity FIFO ring. It is not safe for concurrent
// use; Session.mu guards it.
type submissionQueue struct {
	items     []unit
	head      int
	size      int
	highWater int
}

func newSubmissionQueue(capacity int) *submissionQueue {
	return &submissionQueue{items: make([]unit, capacity)}
}

func (q *submissionQueue) push(u unit) bool {
	if q.size == len(q.items) {
		return false
	}
	q.items[(q.head+q.size)%len(q.items)] = u
	q.size++
	if q.size > q.highWater {
		q.highWater = q.size
	}
	return true
}

func (q *submissionQueue) pop() (unit, bool) {
	if q.size == 0 {
		return unit{}, false
	}
	u := q.items[q.head]
	q.items[q.head] = unit{}
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return u, true
}

func (q *submissionQueue) len() int      { return q.size }
func (q *submissionQueue) capacity() int { return len(q.items) }
func (q *submissionQueue) full() bool    { return q.size == len(q.items) }
