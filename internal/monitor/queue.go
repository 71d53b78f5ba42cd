package monitor

// eventQueue is a bounded FIFO between the capture and process workers.
type eventQueue struct {
	ch chan ConnectionEvent
}

func newEventQueue(size int) *eventQueue {
	if size <= 0 {
		size = 1
	}
	return &eventQueue{ch: make(chan ConnectionEvent, size)}
}

// offer enqueues ev without blocking and reports whether it was accepted.
func (q *eventQueue) offer(ev ConnectionEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

func (q *eventQueue) events() <-chan ConnectionEvent {
	return q.ch
}

func (q *eventQueue) len() int {
	return len(q.ch)
}
