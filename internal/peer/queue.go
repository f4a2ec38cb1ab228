package peer

import "sync"

// Queue is an unbounded FIFO of channel events. Producers never block; a
// single goroutine hands events to the Events channel in order and closes it
// after the final EventClose.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Event
	done  bool
	out   chan Event
}

func NewQueue() *Queue {
	q := &Queue{out: make(chan Event)}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Push appends ev. It reports false once the queue is finished.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return false
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
	return true
}

// Finish appends the terminal EventClose carrying err. Later calls are no-ops.
func (q *Queue) Finish(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return
	}
	q.items = append(q.items, Event{Kind: EventClose, Err: err})
	q.done = true
	q.cond.Signal()
}

func (q *Queue) Events() <-chan Event {
	return q.out
}

func (q *Queue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 {
			q.cond.Wait()
		}
		ev := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.out <- ev
		if ev.Kind == EventClose {
			return
		}
	}
}
