package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viberl/BlindTasting-sub000/metrics"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"github.com/viberl/BlindTasting-sub000/scoring"
	"gorm.io/gorm"
)

// OverrideInput is the complete set of attributes the host wants flipped on
// a guess. Sending an empty set removes the correction.
type OverrideInput struct {
	Toggles []string
	Reason  string
}

// OverrideResult reports a stored correction. Delta is relative to the
// freshly computed AutoScore; Score is what the guess now adds to the
// participant's total and ScoreChange is how far that total moved.
type OverrideResult struct {
	GuessID          string   `json:"guess_id"`
	ParticipantID    string   `json:"participant_id"`
	AutoScore        int      `json:"auto_score"`
	Score            int      `json:"score"`
	Delta            int      `json:"delta"`
	ScoreChange      int      `json:"score_change"`
	Toggles          []string `json:"toggles"`
	ParticipantScore int      `json:"participant_score"`
}

// GuessBreakdown is the current engine view of a graded guess together with
// the stored correction. Score is the guess's effective score, the same
// figure the results export and the participant total use.
type GuessBreakdown struct {
	Guess     *models.Guess     `json:"guess"`
	Breakdown scoring.Breakdown `json:"breakdown"`
	Toggles   []string          `json:"toggles"`
	Delta     int               `json:"delta"`
	Score     int               `json:"score"`
}

type guessContext struct {
	tasting *models.Tasting
	guess   *models.Guess
	rule    *models.ScoringRule
}

// loadGuess resolves a guess of the tasting with its participant and wine,
// checks that the caller may correct it and that its flight is closed.
func loadGuess(tx *gorm.DB, tasting *models.Tasting, caller Caller, guessID string) (*guessContext, error) {
	if !tasting.IsHost(caller.UserID) && !caller.Reviewer {
		return nil, fmt.Errorf("%w: only the host or a reviewer may correct scores", ErrPermissionDenied)
	}

	var guess models.Guess
	if err := tx.Preload("Participant").Preload("Wine").Where("id = ?", guessID).First(&guess).Error; err != nil {
		return nil, notFound(err, "guess %s", guessID)
	}
	if guess.Participant == nil || guess.Participant.TastingID != tasting.ID || guess.Wine == nil {
		return nil, fmt.Errorf("%w: guess %s", ErrNotFound, guessID)
	}

	var flight models.Flight
	if err := tx.Where("id = ?", guess.Wine.FlightID).First(&flight).Error; err != nil {
		return nil, notFound(err, "flight %s", guess.Wine.FlightID)
	}
	if flight.State() != models.FlightClosed {
		return nil, fmt.Errorf("%w: only guesses of closed flights can be corrected", ErrInvalidState)
	}

	rule, err := findRule(tx, tasting.ID)
	if err != nil {
		return nil, err
	}
	return &guessContext{tasting: tasting, guess: &guess, rule: rule}, nil
}

func (g *guessContext) breakdown() scoring.Breakdown {
	return scoring.Score(g.guess.Attributes(), g.guess.Wine.Attributes(), g.rule.Rule())
}

// OverrideGuess replaces the correction of a graded guess. The engine score
// is recomputed from the current wine and rule, the toggles are applied to
// it and only the resulting delta is stored. The participant's total moves
// by the difference to the previously stored delta, so repeating a request
// changes nothing.
func (s *SessionService) OverrideGuess(ctx context.Context, caller Caller, tastingID, guessID string, in OverrideInput) (*OverrideResult, error) {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var result *OverrideResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		gc, err := loadGuess(tx, tasting, caller, guessID)
		if err != nil {
			return err
		}

		rule := gc.rule.Rule()
		adj, err := scoring.ApplyToggles(gc.breakdown(), rule, in.Toggles)
		if errors.Is(err, scoring.ErrUnknownToggle) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err != nil {
			return err
		}

		previous := 0
		if gc.guess.OverrideDelta != nil {
			previous = *gc.guess.OverrideDelta
		}
		change := adj.Delta - previous

		updates := map[string]interface{}{
			"override_delta":  nil,
			"override_reason": nil,
			"override_flags":  models.StringList{},
		}
		if len(adj.Toggles) > 0 {
			updates["override_delta"] = adj.Delta
			updates["override_flags"] = models.StringList(adj.Toggles)
			if reason := strings.TrimSpace(in.Reason); reason != "" {
				updates["override_reason"] = reason
			}
		}
		if err := tx.Model(&models.Guess{}).Where("id = ?", guessID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to store override: %w", err)
		}

		participant := gc.guess.Participant
		if change != 0 {
			err := tx.Model(&models.Participant{}).
				Where("id = ?", participant.ID).
				UpdateColumn("score", gorm.Expr("score + ?", change)).Error
			if err != nil {
				return fmt.Errorf("failed to update participant score: %w", err)
			}
		}

		result = &OverrideResult{
			GuessID:          guessID,
			ParticipantID:    participant.ID,
			AutoScore:        adj.AutoScore,
			Score:            gc.guess.Score + adj.Delta,
			Delta:            adj.Delta,
			ScoreChange:      change,
			Toggles:          adj.Toggles,
			ParticipantScore: participant.Score + change,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OverridesApplied.Inc()
	s.logger.InfoContext(ctx, "guess overridden",
		"tasting_id", tastingID,
		"guess_id", guessID,
		"reviewer_id", caller.UserID,
		"delta", result.Delta,
		"score_change", result.ScoreChange,
	)

	if result.ScoreChange != 0 {
		participants, err := presentParticipants(s.db.WithContext(ctx), tastingID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load participants for broadcast", "tasting_id", tastingID, "error", err)
		} else {
			s.broadcast(ctx, tastingID, realtime.EventParticipantsUpdated, realtime.ParticipantsPayload{Participants: participants})
		}
	}
	s.publish(tastingID, queue.GuessOverridden, queue.GuessOverriddenEvent{
		GuessID:       guessID,
		ParticipantID: result.ParticipantID,
		ReviewerID:    caller.UserID,
		Delta:         result.Delta,
		ScoreChange:   result.ScoreChange,
		Toggles:       result.Toggles,
		Reason:        strings.TrimSpace(in.Reason),
	})
	return result, nil
}

// GetGuessBreakdown returns the fresh engine breakdown of a graded guess and
// its stored correction, for the host's correction view.
func (s *SessionService) GetGuessBreakdown(ctx context.Context, caller Caller, tastingID, guessID string) (*GuessBreakdown, error) {
	db := s.db.WithContext(ctx)
	tasting, err := findTasting(db, tastingID)
	if err != nil {
		return nil, err
	}
	gc, err := loadGuess(db, tasting, caller, guessID)
	if err != nil {
		return nil, err
	}

	b := gc.breakdown()
	out := &GuessBreakdown{
		Guess:     gc.guess,
		Breakdown: b,
		Toggles:   []string(gc.guess.OverrideFlags),
		Score:     gc.guess.EffectiveScore(),
	}
	if out.Toggles == nil {
		out.Toggles = []string{}
	}
	if gc.guess.OverrideDelta != nil {
		out.Delta = *gc.guess.OverrideDelta
	}
	return out, nil
}
