package services

import (
	"context"
	"fmt"

	"github.com/viberl/BlindTasting-sub000/models"
)

// ResultRow is one graded guess next to the wine it was about. Score is
// the guess's effective score.
type ResultRow struct {
	Flight     *models.Flight
	Wine       *models.Wine
	UserID     string
	Guess      *models.Guess
	Correction int
	Score      int
}

// TastingResults is everything the host can take home after grading
type TastingResults struct {
	Tasting     *models.Tasting
	Leaderboard []LeaderboardEntry
	Rows        []ResultRow
}

// TastingResults collects the full leaderboard and every guess of the
// closed flights, with the wine identities revealed. Only the host may
// export them. Guesses of flights still open are left out.
func (s *SessionService) TastingResults(ctx context.Context, caller Caller, tastingID string) (*TastingResults, error) {
	db := s.db.WithContext(ctx)
	tasting, err := findTasting(db, tastingID)
	if err != nil {
		return nil, err
	}
	if err := requireHost(tasting, caller, "export results"); err != nil {
		return nil, err
	}

	var participants []models.Participant
	if err := db.Where("tasting_id = ?", tastingID).Order("score DESC, joined_at, id").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	var flights []*models.Flight
	if err := db.Where("tasting_id = ? AND completed_at IS NOT NULL", tastingID).Order("order_index").Find(&flights).Error; err != nil {
		return nil, fmt.Errorf("failed to load closed flights: %w", err)
	}
	byID := make(map[string]*models.Flight, len(flights))
	for _, f := range flights {
		byID[f.ID] = f
	}

	var guesses []*models.Guess
	err = db.Joins("JOIN wines ON wines.id = guesses.wine_id").
		Joins("JOIN flights ON flights.id = wines.flight_id").
		Where("flights.tasting_id = ? AND flights.completed_at IS NOT NULL", tastingID).
		Preload("Participant").
		Preload("Wine").
		Order("flights.order_index, wines.letter_code, guesses.submitted_at, guesses.id").
		Find(&guesses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load graded guesses: %w", err)
	}

	rows := make([]ResultRow, 0, len(guesses))
	for _, g := range guesses {
		correction := 0
		if g.OverrideDelta != nil {
			correction = *g.OverrideDelta
		}
		row := ResultRow{
			Flight:     byID[g.Wine.FlightID],
			Wine:       g.Wine,
			Guess:      g,
			Correction: correction,
			Score:      g.EffectiveScore(),
		}
		if g.Participant != nil {
			row.UserID = g.Participant.UserID
		}
		rows = append(rows, row)
	}

	return &TastingResults{
		Tasting:     tasting,
		Leaderboard: rankParticipants(participants, 0),
		Rows:        rows,
	}, nil
}
