package coordinator

import (
	"time"

	"github.com/oklog/ulid/v2"
	"liveclass/pkg/types"
)

// Forwarder hands analytics events to downstream sinks. Forward must not
// block; implementations drop events they cannot accept.
type Forwarder interface {
	Forward(event types.AnalyticsEvent)
}

// Aggregator is the append-only analytics log of one session
type Aggregator struct {
	sessionID string
	events    []types.AnalyticsEvent
	forwarder Forwarder
}

// NewAggregator creates a log for sessionID; forwarder may be nil
func NewAggregator(sessionID string, forwarder Forwarder) *Aggregator {
	return &Aggregator{sessionID: sessionID, forwarder: forwarder}
}

// Record appends an event and forwards it. It never fails.
func (a *Aggregator) Record(category types.AnalyticsCategory, userID, action string, now time.Time) types.AnalyticsEvent {
	ev := types.AnalyticsEvent{
		ID:        ulid.Make().String(),
		SessionID: a.sessionID,
		Category:  category,
		UserID:    userID,
		Action:    action,
		Timestamp: now,
	}
	a.events = append(a.events, ev)
	if a.forwarder != nil {
		a.forwarder.Forward(ev)
	}
	return ev
}

// Events returns a copy of the log in record order
func (a *Aggregator) Events() []types.AnalyticsEvent {
	return append([]types.AnalyticsEvent(nil), a.events...)
}
