// Package queue defines domain events published to the message broker for
// consumers outside the live session, such as statistics or notifications.
package queue

import "time"

// Event types double as AMQP routing keys
const (
	FlightGraded     = "flight.graded"
	TastingCompleted = "tasting.completed"
	GuessOverridden  = "guess.overridden"
)

// DomainEvent is the envelope of every published message
type DomainEvent struct {
	Type       string      `json:"type"`
	TastingID  string      `json:"tasting_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// FlightGradedEvent is published once per flight, after its grading commits
type FlightGradedEvent struct {
	FlightID    string         `json:"flight_id"`
	Trigger     string         `json:"trigger"`
	CompletedAt time.Time      `json:"completed_at"`
	Deltas      map[string]int `json:"deltas"`
}

// TastingCompletedEvent carries the final standings
type TastingCompletedEvent struct {
	CompletedAt time.Time      `json:"completed_at"`
	Scores      map[string]int `json:"scores"`
}

// GuessOverriddenEvent records a host correction
type GuessOverriddenEvent struct {
	GuessID       string   `json:"guess_id"`
	ParticipantID string   `json:"participant_id"`
	ReviewerID    string   `json:"reviewer_id"`
	Delta         int      `json:"delta"`
	ScoreChange   int      `json:"score_change"`
	Toggles       []string `json:"toggles"`
	Reason        string   `json:"reason,omitempty"`
}
