package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// FlightState is derived from the flight's timestamps rather than stored
type FlightState string

const (
	FlightPending FlightState = "pending"
	FlightRunning FlightState = "running"
	FlightClosed  FlightState = "closed"
)

// Flight represents a timed round of wines, graded as a unit when it closes
type Flight struct {
	ID               string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	TastingID        string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_flight_order;column:tasting_id" json:"tasting_id"`
	Name             string     `gorm:"type:varchar(100)" json:"name"`
	OrderIndex       int        `gorm:"not null;uniqueIndex:idx_flight_order;column:order_index" json:"order_index"`
	TimeLimitSeconds int        `gorm:"not null;column:time_limit_seconds" json:"time_limit_seconds"`
	StartedAt        *time.Time `gorm:"column:started_at" json:"started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at"`
	Wines            []*Wine    `gorm:"foreignKey:FlightID" json:"wines,omitempty"`
}

func (f *Flight) BeforeCreate(tx *gorm.DB) error {
	newID(&f.ID)
	return nil
}

// State returns pending, running or closed
func (f *Flight) State() FlightState {
	switch {
	case f.CompletedAt != nil:
		return FlightClosed
	case f.StartedAt != nil:
		return FlightRunning
	}
	return FlightPending
}

// Deadline returns when a running flight closes on its own, if it has a time limit
func (f *Flight) Deadline() (time.Time, bool) {
	if f.StartedAt == nil || f.TimeLimitSeconds <= 0 {
		return time.Time{}, false
	}
	return f.StartedAt.Add(time.Duration(f.TimeLimitSeconds) * time.Second), true
}

// RemainingSeconds returns the whole seconds left before the deadline, rounded up.
// Zero means no time limit or already expired.
func (f *Flight) RemainingSeconds(now time.Time) int {
	deadline, ok := f.Deadline()
	if !ok || f.State() != FlightRunning {
		return 0
	}
	left := deadline.Sub(now).Seconds()
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left))
}
