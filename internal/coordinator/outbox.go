package coordinator

import (
	"log"
	"sync"
)

// outbox queues event batches in apply order; a single goroutine
// publishes them. Apply never waits on the publisher.
type outbox struct {
	sessionID string
	publisher Publisher

	mu      sync.Mutex
	pending [][]Event
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newOutbox(sessionID string, publisher Publisher) *outbox {
	return &outbox{
		sessionID: sessionID,
		publisher: publisher,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (o *outbox) push(events []Event) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		log.Printf("Dropping %d events for closed session %s", len(events), o.sessionID)
		return
	}
	o.pending = append(o.pending, events)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// run publishes batches until close is called and the queue is empty
func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		batches := o.pending
		o.pending = nil
		closed := o.closed
		o.mu.Unlock()

		for _, events := range batches {
			if o.publisher != nil {
				o.publisher.Publish(o.sessionID, events)
			}
		}

		// push refuses new batches once closed is set
		if closed {
			return
		}
		<-o.wake
	}
}

// close stops accepting batches; run exits after draining what is queued
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}
