package session

import "sync"

type event func(Listener)

// mailbox is an unbounded FIFO of listener events drained by one goroutine.
// Posting never blocks, so it is safe under the session lock.
type mailbox struct {
	mu    sync.Mutex
	queue []event

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newMailbox(l Listener) *mailbox {
	m := &mailbox{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run(l)
	return m
}

func (m *mailbox) post(e event) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) run(l Listener) {
	defer close(m.stopped)

	for {
		select {
		case <-m.wake:
			m.drain(l)
		case <-m.done:
			m.drain(l)
			return
		}
	}
}

func (m *mailbox) drain(l Listener) {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		e := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		e(l)
	}
}

// close delivers everything queued so far and stops the dispatcher.
func (m *mailbox) close() {
	m.once.Do(func() {
		close(m.done)
	})
	<-m.stopped
}
