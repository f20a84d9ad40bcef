package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"gorm.io/gorm"
)

// FlightInput describes a new flight. A zero time limit means the host
// closes it by hand.
type FlightInput struct {
	Name             string
	TimeLimitSeconds int
}

// WineInput is the true identity of a wine served blind
type WineInput struct {
	Country   string
	Region    string
	Producer  string
	Name      string
	Vintage   string
	Varietals []string
}

// AddFlight appends a flight to the tasting. Its order index is the number
// of flights that existed before it.
func (s *SessionService) AddFlight(ctx context.Context, caller Caller, tastingID string, in FlightInput) (*models.Flight, error) {
	if in.TimeLimitSeconds < 0 {
		return nil, fmt.Errorf("%w: time limit must not be negative", ErrValidation)
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var flight *models.Flight
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if err := requireHost(tasting, caller, "add flights"); err != nil {
			return err
		}
		if tasting.Status == models.TastingCompleted {
			return fmt.Errorf("%w: tasting is completed", ErrInvalidState)
		}

		var count int64
		if err := tx.Model(&models.Flight{}).Where("tasting_id = ?", tastingID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count flights: %w", err)
		}
		flight = &models.Flight{
			TastingID:        tastingID,
			Name:             strings.TrimSpace(in.Name),
			OrderIndex:       int(count),
			TimeLimitSeconds: in.TimeLimitSeconds,
		}
		if flight.Name == "" {
			flight.Name = fmt.Sprintf("Flight %d", count+1)
		}
		if err := tx.Create(flight).Error; err != nil {
			return fmt.Errorf("failed to create flight: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flight, nil
}

// AddWine adds a wine to a flight that has not started. Wines get the
// letter codes A, B, C... in the order they are added.
func (s *SessionService) AddWine(ctx context.Context, caller Caller, tastingID, flightID string, in WineInput) (*models.Wine, error) {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var wine *models.Wine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if err := requireHost(tasting, caller, "add wines"); err != nil {
			return err
		}
		flight, err := findFlight(tx, tastingID, flightID)
		if err != nil {
			return err
		}
		if flight.State() != models.FlightPending {
			return fmt.Errorf("%w: wines cannot be added once a flight has started", ErrInvalidState)
		}

		var count int64
		if err := tx.Model(&models.Wine{}).Where("flight_id = ?", flightID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count wines: %w", err)
		}
		if count >= models.MaxWinesPerFlight {
			return fmt.Errorf("%w: a flight holds at most %d wines", ErrValidation, models.MaxWinesPerFlight)
		}

		wine = &models.Wine{
			FlightID:   flightID,
			LetterCode: models.LetterFor(int(count)),
			Country:    strings.TrimSpace(in.Country),
			Region:     strings.TrimSpace(in.Region),
			Producer:   strings.TrimSpace(in.Producer),
			Name:       strings.TrimSpace(in.Name),
			Vintage:    strings.TrimSpace(in.Vintage),
			Varietals:  models.StringList(in.Varietals),
		}
		if wine.Varietals == nil {
			wine.Varietals = models.StringList{}
		}
		if err := tx.Create(wine).Error; err != nil {
			return fmt.Errorf("failed to create wine: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wine, nil
}

// StartFlight opens a flight for guesses and arms its auto-close. Only one
// flight of a tasting runs at a time.
func (s *SessionService) StartFlight(ctx context.Context, caller Caller, tastingID, flightID string) (*models.Flight, error) {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var flight *models.Flight
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if err := requireHost(tasting, caller, "start flights"); err != nil {
			return err
		}
		if tasting.Status != models.TastingStarted {
			return fmt.Errorf("%w: tasting is %s, not started", ErrInvalidState, tasting.Status)
		}
		if flight, err = findFlight(tx, tastingID, flightID); err != nil {
			return err
		}
		if flight.State() != models.FlightPending {
			return fmt.Errorf("%w: flight is already %s", ErrInvalidState, flight.State())
		}

		var running int64
		err = tx.Model(&models.Flight{}).
			Where("tasting_id = ? AND started_at IS NOT NULL AND completed_at IS NULL", tastingID).
			Count(&running).Error
		if err != nil {
			return fmt.Errorf("failed to check running flights: %w", err)
		}
		if running > 0 {
			return fmt.Errorf("%w: another flight is still running", ErrInvalidState)
		}

		now := s.clock()
		res := tx.Model(&models.Flight{}).
			Where("id = ? AND started_at IS NULL", flightID).
			Update("started_at", now)
		if res.Error != nil {
			return fmt.Errorf("failed to start flight: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: flight is already started", ErrInvalidState)
		}
		flight.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if flight.TimeLimitSeconds > 0 {
		s.armTimer(tastingID, flightID, time.Duration(flight.TimeLimitSeconds)*time.Second)
	}
	s.logger.InfoContext(ctx, "flight started", "tasting_id", tastingID, "flight_id", flightID, "time_limit", flight.TimeLimitSeconds)
	s.broadcast(ctx, tastingID, realtime.EventFlightStarted, realtime.FlightStartedPayload{
		FlightID:  flightID,
		TimeLimit: flight.TimeLimitSeconds,
	})
	return flight, nil
}

// SetFlightTimer makes a running flight close seconds from now. Zero removes
// the time limit. The previous auto-close is cancelled before the new one is armed.
func (s *SessionService) SetFlightTimer(ctx context.Context, caller Caller, tastingID, flightID string, seconds int) (*models.Flight, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("%w: seconds must not be negative", ErrValidation)
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var flight *models.Flight
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if err := requireHost(tasting, caller, "change flight timers"); err != nil {
			return err
		}
		if flight, err = findFlight(tx, tastingID, flightID); err != nil {
			return err
		}
		if flight.State() != models.FlightRunning {
			return fmt.Errorf("%w: flight is %s, not running", ErrInvalidState, flight.State())
		}

		limit := 0
		if seconds > 0 {
			elapsed := int(s.clock().Sub(*flight.StartedAt) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}
			limit = elapsed + seconds
		}
		err = tx.Model(&models.Flight{}).Where("id = ?", flightID).Update("time_limit_seconds", limit).Error
		if err != nil {
			return fmt.Errorf("failed to update flight timer: %w", err)
		}
		flight.TimeLimitSeconds = limit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if seconds > 0 {
		s.armTimer(tastingID, flightID, time.Duration(seconds)*time.Second)
	} else {
		s.timers.Cancel(flightID)
	}
	s.logger.InfoContext(ctx, "flight timer changed", "tasting_id", tastingID, "flight_id", flightID, "seconds", seconds)
	s.broadcast(ctx, tastingID, realtime.EventFlightStarted, realtime.FlightStartedPayload{
		FlightID:  flightID,
		TimeLimit: seconds,
	})
	return flight, nil
}

// armTimer schedules the automatic close of a flight
func (s *SessionService) armTimer(tastingID, flightID string, delay time.Duration) {
	s.timers.Schedule(flightID, delay, func() {
		ctx := context.Background()
		if _, err := s.completeFlight(ctx, tastingID, flightID, TriggerTimer); err != nil {
			s.logger.ErrorContext(ctx, "automatic flight close failed", "tasting_id", tastingID, "flight_id", flightID, "error", err)
		}
	})
}

// RestoreTimers re-arms the auto-close of every running timed flight after a
// restart. Flights whose deadline passed while the process was down are
// closed right away.
func (s *SessionService) RestoreTimers(ctx context.Context) (int, error) {
	var flights []models.Flight
	err := s.db.WithContext(ctx).
		Where("started_at IS NOT NULL AND completed_at IS NULL AND time_limit_seconds > 0").
		Order("started_at").
		Find(&flights).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list running flights: %w", err)
	}

	now := s.clock()
	for _, flight := range flights {
		deadline, _ := flight.Deadline()
		delay := deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.armTimer(flight.TastingID, flight.ID, delay)
		s.logger.InfoContext(ctx, "flight timer restored", "tasting_id", flight.TastingID, "flight_id", flight.ID, "remaining", delay.String())
	}
	return len(flights), nil
}
