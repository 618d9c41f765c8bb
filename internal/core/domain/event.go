package domain

import "encoding/json"

type EventName string

// client -> server
const (
	EventStart        EventName = "start"
	EventOffer        EventName = "offer"
	EventAnswer       EventName = "answer"
	EventICECandidate EventName = "ice-candidate"
	EventNext         EventName = "next"
)

// server -> client
const (
	EventWaiting     EventName = "waiting"
	EventMatched     EventName = "matched"
	EventPartnerLeft EventName = "partner-left"
	EventReset       EventName = "reset"
)

// IsSignal reports whether the event carries handshake data that is relayed
// to the partner untouched.
func (n EventName) IsSignal() bool {
	switch n {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}

func (n EventName) String() string {
	return string(n)
}

// Event is what travels between the server and a single client.
// Payload is kept as raw JSON and never interpreted.
type Event struct {
	Name    EventName       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(name EventName) Event {
	return Event{Name: name}
}

func NewSignalEvent(name EventName, payload json.RawMessage) Event {
	return Event{Name: name, Payload: payload}
}

type MatchedPayload struct {
	Initiator bool `json:"initiator"`
}

func NewMatchedEvent(initiator bool) Event {
	// cannot fail for a struct of one bool
	b, _ := json.Marshal(MatchedPayload{Initiator: initiator})
	return Event{Name: EventMatched, Payload: b}
}
