package analytics

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const (
	defaultBufferSize = 1024
	sinkTimeout       = 5 * time.Second
)

// Forwarder moves analytics events off the session hot path. Forward never
// blocks: when the buffer is full the event is dropped and counted.
// Sink failures are logged and do not affect the session.
type Forwarder struct {
	events chan types.AnalyticsEvent
	sinks  []interfaces.AnalyticsSink

	dropped atomic.Int64
	stored  atomic.Int64

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	once    sync.Once
}

// NewForwarder creates a forwarder writing to sinks
func NewForwarder(bufferSize int, sinks ...interfaces.AnalyticsSink) *Forwarder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Forwarder{
		events: make(chan types.AnalyticsEvent, bufferSize),
		sinks:  sinks,
		done:   make(chan struct{}),
	}
}

// Start launches the drain worker
func (f *Forwarder) Start() {
	go f.run()
}

// Forward queues event for the sinks
func (f *Forwarder) Forward(event types.AnalyticsEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stopped {
		f.dropped.Add(1)
		return
	}
	select {
	case f.events <- event:
	default:
		if f.dropped.Add(1)%100 == 1 {
			log.Printf("Analytics buffer full, dropping events: dropped=%d", f.dropped.Load())
		}
	}
}

// Stop refuses new events and waits until queued ones reach the sinks or
// ctx expires
func (f *Forwarder) Stop(ctx context.Context) error {
	f.once.Do(func() {
		f.mu.Lock()
		f.stopped = true
		close(f.events)
		f.mu.Unlock()
	})
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns delivery counters
func (f *Forwarder) Stats() map[string]int64 {
	return map[string]int64{
		"stored":  f.stored.Load(),
		"dropped": f.dropped.Load(),
		"pending": int64(len(f.events)),
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for event := range f.events {
		f.deliver(event)
	}
}

func (f *Forwarder) deliver(event types.AnalyticsEvent) {
	for _, sink := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := sink.StoreAnalyticsEvent(ctx, &event)
		cancel()
		if err != nil {
			log.Printf("Analytics sink failed: session=%s event=%s error=%v", event.SessionID, event.ID, err)
			continue
		}
		f.stored.Add(1)
	}
}
