package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viberl/BlindTasting-sub000/models"
	"gorm.io/gorm"
)

// GuessInput carries the fields of a submission. Nil fields keep the value
// of an earlier submission for the same wine.
type GuessInput struct {
	Country   *string
	Region    *string
	Producer  *string
	Name      *string
	Vintage   *string
	Varietals []string
}

func (in GuessInput) empty() bool {
	return in.Country == nil && in.Region == nil && in.Producer == nil &&
		in.Name == nil && in.Vintage == nil && in.Varietals == nil
}

// mergeInto copies the set fields of in over g
func (in GuessInput) mergeInto(g *models.Guess) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&g.Country, in.Country)
	set(&g.Region, in.Region)
	set(&g.Producer, in.Producer)
	set(&g.Name, in.Name)
	set(&g.Vintage, in.Vintage)
	if in.Varietals != nil {
		g.Varietals = models.StringList(in.Varietals)
	}
	if g.Varietals == nil {
		g.Varietals = models.StringList{}
	}
}

// SubmitGuess records the caller's guess for a wine of the running flight.
// A later submission for the same wine updates the stored guess, merging
// the fields it sets over the previous ones.
func (s *SessionService) SubmitGuess(ctx context.Context, caller Caller, tastingID, wineID string, in GuessInput) (*models.Guess, error) {
	if in.empty() {
		return nil, fmt.Errorf("%w: a guess needs at least one field", ErrValidation)
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var guess models.Guess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if tasting.Status != models.TastingStarted {
			return fmt.Errorf("%w: tasting is %s, not started", ErrInvalidState, tasting.Status)
		}

		var wine models.Wine
		if err := tx.Where("id = ?", wineID).First(&wine).Error; err != nil {
			return notFound(err, "wine %s", wineID)
		}
		flight, err := findFlight(tx, tastingID, wine.FlightID)
		if err != nil {
			return fmt.Errorf("%w: wine %s", ErrNotFound, wineID)
		}
		if flight.State() != models.FlightRunning {
			return fmt.Errorf("%w: flight is %s, guesses are closed", ErrInvalidState, flight.State())
		}
		now := s.clock()
		if deadline, ok := flight.Deadline(); ok && !now.Before(deadline) {
			return fmt.Errorf("%w: flight time is up", ErrInvalidState)
		}

		var participant models.Participant
		err = tx.Where("tasting_id = ? AND user_id = ?", tastingID, caller.UserID).First(&participant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !participant.Present()) {
			return fmt.Errorf("%w: join the tasting before guessing", ErrPermissionDenied)
		}
		if err != nil {
			return fmt.Errorf("failed to load participant: %w", err)
		}

		err = tx.Where("participant_id = ? AND wine_id = ?", participant.ID, wineID).First(&guess).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			guess = models.Guess{ParticipantID: participant.ID, WineID: wineID}
		case err != nil:
			return fmt.Errorf("failed to load guess: %w", err)
		}

		in.mergeInto(&guess)
		guess.SubmittedAt = now
		if err := tx.Omit("Participant", "Wine").Save(&guess).Error; err != nil {
			return fmt.Errorf("failed to save guess: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &guess, nil
}

// ListGuesses returns the caller's guesses in the tasting, ordered by
// flight and letter.
func (s *SessionService) ListGuesses(ctx context.Context, caller Caller, tastingID string) ([]models.Guess, error) {
	db := s.db.WithContext(ctx)
	if _, err := findTasting(db, tastingID); err != nil {
		return nil, err
	}

	var guesses []models.Guess
	err := db.
		Joins("JOIN participants ON participants.id = guesses.participant_id").
		Joins("JOIN wines ON wines.id = guesses.wine_id").
		Joins("JOIN flights ON flights.id = wines.flight_id").
		Where("participants.tasting_id = ? AND participants.user_id = ?", tastingID, caller.UserID).
		Order("flights.order_index, wines.letter_code").
		Find(&guesses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list guesses: %w", err)
	}
	return guesses, nil
}
