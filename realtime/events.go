package realtime

import "time"

// EventType identifies a message pushed to room members
type EventType string

const (
	EventSnapshot            EventType = "snapshot"
	EventParticipantsUpdated EventType = "participants_updated"
	EventParticipantJoined   EventType = "participant_joined"
	EventParticipantRemoved  EventType = "participant_removed"
	EventFlightStarted       EventType = "flight_started"
	EventFlightCompleted     EventType = "flight_completed"
	EventScoresUpdated       EventType = "scores_updated"
	EventTastingStatus       EventType = "tasting_status"
	EventPong                EventType = "pong"
	EventError               EventType = "error"
)

// Event is the envelope of every server to client message
type Event struct {
	Type      EventType   `json:"type"`
	TastingID string      `json:"tasting_id"`
	Payload   interface{} `json:"payload,omitempty"`
	SentAt    time.Time   `json:"sent_at"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(tastingID string, eventType EventType, payload interface{}) Event {
	return Event{Type: eventType, TastingID: tastingID, Payload: payload, SentAt: time.Now().UTC()}
}

// ParticipantView is what clients know about a participant
type ParticipantView struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// FlightView describes the flight currently running, if any
type FlightView struct {
	ID               string `json:"id"`
	OrderIndex       int    `json:"order_index"`
	TimeLimit        int    `json:"time_limit"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Snapshot is the full state sent to a client right after it connects
type Snapshot struct {
	Status       string            `json:"status"`
	Participants []ParticipantView `json:"participants"`
	ActiveFlight *FlightView       `json:"active_flight"`
}

// ParticipantsPayload carries the full participant list
type ParticipantsPayload struct {
	Participants []ParticipantView `json:"participants"`
}

// ParticipantJoinedPayload carries the participant that joined
type ParticipantJoinedPayload struct {
	Participant ParticipantView `json:"participant"`
}

// ParticipantRemovedPayload identifies the participant that left
type ParticipantRemovedPayload struct {
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
}

// FlightStartedPayload tells clients to start counting down. TimeLimit is the
// effective number of seconds remaining, zero for an untimed flight.
type FlightStartedPayload struct {
	FlightID  string `json:"flight_id"`
	TimeLimit int    `json:"time_limit"`
}

// FlightCompletedPayload identifies the flight that was graded
type FlightCompletedPayload struct {
	FlightID string `json:"flight_id"`
}

// TastingStatusPayload carries the new tasting status
type TastingStatusPayload struct {
	Status string `json:"status"`
}

// ErrorPayload reports a failed client request on the socket
type ErrorPayload struct {
	Message string `json:"message"`
}
