package core

import (
	"sync"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// inbox is an unbounded FIFO of received messages. The reader goroutine
// pushes; Run pops. A terminal error ends the stream after the messages
// queued before it.
type inbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*wire.Message
	err     error
	wakeups int
}

func newInbox() *inbox {
	q := &inbox{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *inbox) push(msg *wire.Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.cond.Signal()
}

// fail records the terminal error. Only the first one is kept.
func (q *inbox) fail(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

// wake makes one blocked pop return without a message.
func (q *inbox) wake() {
	q.mu.Lock()
	q.wakeups++
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a message, a wakeup or the terminal error is available.
// It returns (nil, nil) for a wakeup.
func (q *inbox) pop() (*wire.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.err == nil && q.wakeups == 0 {
		q.cond.Wait()
	}

	if q.wakeups > 0 {
		q.wakeups--
		return nil, nil
	}
	if len(q.items) > 0 {
		msg := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		return msg, nil
	}
	return nil, q.err
}

// clearWakeups drops wakeups that no pop consumed.
func (q *inbox) clearWakeups() {
	q.mu.Lock()
	q.wakeups = 0
	q.mu.Unlock()
}

func (q *inbox) pendingWakeups() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wakeups
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
