package coordinator

import "liveclass/pkg/types"

// Audience selects which session members receive an event
type Audience int

const (
	AudienceAll Audience = iota
	AudienceInstructors
	AudienceUser
)

// Event is one outbound notification produced by Apply
type Event struct {
	Name     string
	Audience Audience
	UserID   string // set when Audience is AudienceUser
	Payload  interface{}
}

// JoinedPayload is delivered to the joiner only
type JoinedPayload struct {
	Participant types.Participant  `json:"participant"`
	State       types.SessionState `json:"state"`
}

// Publisher delivers a session's events in the order they were produced
type Publisher interface {
	Publish(sessionID string, events []Event)
}

func toAll(name string, payload interface{}) Event {
	return Event{Name: name, Audience: AudienceAll, Payload: payload}
}

func toInstructors(name string, payload interface{}) Event {
	return Event{Name: name, Audience: AudienceInstructors, Payload: payload}
}

func toUser(userID, name string, payload interface{}) Event {
	return Event{Name: name, Audience: AudienceUser, UserID: userID, Payload: payload}
}
