package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/viberl/BlindTasting-sub000/metrics"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"github.com/viberl/BlindTasting-sub000/scoring"
	"gorm.io/gorm"
)

// What closed a flight
const (
	TriggerHost    = "host"
	TriggerTimer   = "timer"
	TriggerTasting = "tasting"
)

// FlightResult is the outcome of closing a flight. Deltas maps participant
// ids to the points the flight added to their total. AlreadyCompleted is
// set when the flight had been graded before and nothing changed. NotDue is
// set when a timer fired for a deadline that has since moved.
type FlightResult struct {
	Flight           *models.Flight             `json:"flight"`
	Deltas           map[string]int             `json:"deltas"`
	Participants     []realtime.ParticipantView `json:"participants"`
	AlreadyCompleted bool                       `json:"already_completed"`
	NotDue           bool                       `json:"-"`
}

// CompleteFlight closes a running flight and grades it. Completing a flight
// that is already closed returns the stored result.
func (s *SessionService) CompleteFlight(ctx context.Context, caller Caller, tastingID, flightID string) (*FlightResult, error) {
	tasting, err := findTasting(s.db.WithContext(ctx), tastingID)
	if err != nil {
		return nil, err
	}
	if err := requireHost(tasting, caller, "complete flights"); err != nil {
		return nil, err
	}
	return s.completeFlight(ctx, tastingID, flightID, TriggerHost)
}

// completeFlight collapses concurrent completions of the same flight and
// trigger into one grading pass.
func (s *SessionService) completeFlight(ctx context.Context, tastingID, flightID, trigger string) (*FlightResult, error) {
	v, err, _ := s.completions.Do(flightID+"/"+trigger, func() (interface{}, error) {
		unlock := s.locks.Lock(tastingID)
		defer unlock()
		return s.completeFlightLocked(context.WithoutCancel(ctx), tastingID, flightID, trigger)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FlightResult), nil
}

// completeFlightLocked grades the flight, retrying transient store failures.
// The caller holds the tasting lock.
func (s *SessionService) completeFlightLocked(ctx context.Context, tastingID, flightID, trigger string) (*FlightResult, error) {
	var result *FlightResult
	op := func() error {
		res, err := s.gradeFlight(ctx, tastingID, flightID, trigger)
		if err != nil {
			if isDomainError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.GradingRetries.Inc()
		s.logger.WarnContext(ctx, "grading failed, retrying", "tasting_id", tastingID, "flight_id", flightID, "wait", wait.String(), "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	if result.AlreadyCompleted {
		return result, nil
	}
	if result.NotDue {
		s.rearmStaleTimer(ctx, tastingID, result.Flight)
		return result, nil
	}

	s.timers.Cancel(flightID)
	metrics.FlightsGraded.WithLabelValues(trigger).Inc()
	s.logger.InfoContext(ctx, "flight graded", "tasting_id", tastingID, "flight_id", flightID, "trigger", trigger, "participants", len(result.Deltas))

	s.broadcast(ctx, tastingID, realtime.EventFlightCompleted, realtime.FlightCompletedPayload{FlightID: flightID})
	s.broadcast(ctx, tastingID, realtime.EventScoresUpdated, realtime.ParticipantsPayload{Participants: result.Participants})
	s.publish(tastingID, queue.FlightGraded, queue.FlightGradedEvent{
		FlightID:    flightID,
		Trigger:     trigger,
		CompletedAt: *result.Flight.CompletedAt,
		Deltas:      result.Deltas,
	})
	return result, nil
}

// rearmStaleTimer handles a timer that fired before the stored deadline.
// When no newer task is pending here, the flight is re-armed for the time
// it has left.
func (s *SessionService) rearmStaleTimer(ctx context.Context, tastingID string, flight *models.Flight) {
	deadline, timed := flight.Deadline()
	if _, pending := s.timers.Due(flight.ID); timed && !pending {
		s.armTimer(tastingID, flight.ID, deadline.Sub(s.clock()))
	}
	s.logger.InfoContext(ctx, "stale flight timer ignored", "tasting_id", tastingID, "flight_id", flight.ID, "time_limit", flight.TimeLimitSeconds)
}

// gradeFlight runs one grading transaction. Every (participant, wine) pair
// with a guess is scored from the current wine and rule, the guess keeps its
// score and the participant total moves by the sum. completed_at is stamped
// in the same transaction, so a flight is graded at most once. A timer
// trigger only grades a flight whose stored deadline has passed.
func (s *SessionService) gradeFlight(ctx context.Context, tastingID, flightID, trigger string) (*FlightResult, error) {
	var result *FlightResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTasting(tx, tastingID); err != nil {
			return err
		}
		flight, err := findFlight(tx, tastingID, flightID)
		if err != nil {
			return err
		}

		var wines []models.Wine
		if err := tx.Where("flight_id = ?", flightID).Order("letter_code").Find(&wines).Error; err != nil {
			return fmt.Errorf("failed to load wines: %w", err)
		}
		wineIDs := make([]string, 0, len(wines))
		for _, w := range wines {
			wineIDs = append(wineIDs, w.ID)
		}

		var guesses []models.Guess
		if len(wineIDs) > 0 {
			if err := tx.Where("wine_id IN ?", wineIDs).Order("id").Find(&guesses).Error; err != nil {
				return fmt.Errorf("failed to load guesses: %w", err)
			}
		}

		switch flight.State() {
		case models.FlightClosed:
			result = storedResult(flight, guesses)
			result.Participants, err = presentParticipants(tx, tastingID)
			return err
		case models.FlightPending:
			return fmt.Errorf("%w: flight has not started", ErrInvalidState)
		}
		if trigger == TriggerTimer {
			if deadline, ok := flight.Deadline(); !ok || s.clock().Before(deadline) {
				result = &FlightResult{Flight: flight, NotDue: true}
				return nil
			}
		}

		rule, err := findRule(tx, tastingID)
		if err != nil {
			return err
		}
		byWine := make(map[string]*models.Wine, len(wines))
		for i := range wines {
			byWine[wines[i].ID] = &wines[i]
		}

		deltas := make(map[string]int)
		for i := range guesses {
			guess := &guesses[i]
			wine := byWine[guess.WineID]
			b := scoring.Score(guess.Attributes(), wine.Attributes(), rule.Rule())
			if err := tx.Model(&models.Guess{}).Where("id = ?", guess.ID).Update("score", b.Total).Error; err != nil {
				return fmt.Errorf("failed to store guess score: %w", err)
			}
			deltas[guess.ParticipantID] += b.Total
		}

		for participantID, delta := range deltas {
			if delta == 0 {
				continue
			}
			err := tx.Model(&models.Participant{}).
				Where("id = ?", participantID).
				UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
			if err != nil {
				return fmt.Errorf("failed to update participant score: %w", err)
			}
		}

		now := s.clock()
		res := tx.Model(&models.Flight{}).
			Where("id = ? AND completed_at IS NULL", flightID).
			Update("completed_at", now)
		if res.Error != nil {
			return fmt.Errorf("failed to close flight: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: flight was closed concurrently", ErrInvalidState)
		}
		flight.CompletedAt = &now

		participants, err := presentParticipants(tx, tastingID)
		if err != nil {
			return err
		}
		result = &FlightResult{Flight: flight, Deltas: deltas, Participants: participants}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// storedResult rebuilds the grading outcome of a closed flight from the
// scores its guesses kept.
func storedResult(flight *models.Flight, guesses []models.Guess) *FlightResult {
	deltas := make(map[string]int)
	for _, g := range guesses {
		deltas[g.ParticipantID] += g.Score
	}
	return &FlightResult{Flight: flight, Deltas: deltas, AlreadyCompleted: true}
}
