package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"github.com/viberl/BlindTasting-sub000/scoring"
)

// gradedGuess runs the four point scenario and returns the graded guess
func gradedGuess(t *testing.T, f *fixture, rule RuleInput) (*models.Tasting, *models.Guess, Caller) {
	t.Helper()
	ctx := context.Background()
	tasting, flight, wines := f.startedTasting(&rule, scenarioWine)

	alice := f.user()
	_, err := f.svc.JoinTasting(ctx, alice, tasting.ID, "")
	require.NoError(t, err)
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	guess, err := f.svc.SubmitGuess(ctx, alice, tasting.ID, wines[0].ID, GuessInput{
		Country:   str("france"),
		Vintage:   str("2018"),
		Varietals: []string{"Pinot Noir"},
	})
	require.NoError(t, err)
	_, err = f.svc.CompleteFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	require.Equal(t, 4, f.participantScore(tasting.ID, alice.UserID))
	return tasting, guess, alice
}

func loadGuessRow(t *testing.T, f *fixture, id string) models.Guess {
	t.Helper()
	var g models.Guess
	require.NoError(t, f.db.Where("id = ?", id).First(&g).Error)
	return g
}

func TestOverrideGuess_RemoveCountry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	f.rooms.reset()
	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{
		Toggles: []string{"country"},
		Reason:  "Burgundy is not a country",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.AutoScore)
	assert.Equal(t, 3, result.Score)
	assert.Equal(t, -1, result.Delta)
	assert.Equal(t, -1, result.ScoreChange)
	assert.Equal(t, 3, result.ParticipantScore)
	assert.Equal(t, []string{"country"}, result.Toggles)
	assert.Equal(t, 3, f.participantScore(tasting.ID, alice.UserID))

	stored := loadGuessRow(t, f, guess.ID)
	require.NotNil(t, stored.OverrideDelta)
	assert.Equal(t, -1, *stored.OverrideDelta)
	assert.Equal(t, models.StringList{"country"}, stored.OverrideFlags)
	require.NotNil(t, stored.OverrideReason)
	assert.Equal(t, "Burgundy is not a country", *stored.OverrideReason)
	assert.Equal(t, 4, stored.Score, "the engine score is kept apart from the correction")

	assert.Equal(t, []realtime.EventType{realtime.EventParticipantsUpdated}, f.rooms.types())
	require.Eventually(t, func() bool { return f.publisher.count(queue.GuessOverridden) == 1 }, time.Second, 5*time.Millisecond)
}

func TestOverrideGuess_RoundTripIsNetZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	_, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"vintage", "varietal:Pinot Noir"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.participantScore(tasting.ID, alice.UserID))

	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Delta)
	assert.Equal(t, 3, result.ScoreChange)
	assert.Empty(t, result.Toggles)
	assert.Equal(t, 4, f.participantScore(tasting.ID, alice.UserID))

	stored := loadGuessRow(t, f, guess.ID)
	assert.Nil(t, stored.OverrideDelta)
	assert.Nil(t, stored.OverrideReason)
	assert.Empty(t, stored.OverrideFlags)
}

func TestOverrideGuess_RepeatedRequestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	for i := 0; i < 3; i++ {
		_, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{" Country ", "country"}})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.participantScore(tasting.ID, alice.UserID))

	f.rooms.reset()
	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}})
	require.NoError(t, err)
	assert.Zero(t, result.ScoreChange)
	assert.Empty(t, f.rooms.types(), "nothing to broadcast when the total did not move")
}

func TestOverrideGuess_AddsMissedAttribute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := scenarioRule
	rule.Region = 2
	tasting, guess, alice := gradedGuess(t, f, rule)

	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"region"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Delta)
	assert.Equal(t, 6, f.participantScore(tasting.ID, alice.UserID))
}

func TestOverrideGuess_ZeroPointToggleIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"producer"}})
	require.NoError(t, err)
	assert.Zero(t, result.Delta)
	assert.Empty(t, result.Toggles)
	assert.Equal(t, 4, f.participantScore(tasting.ID, alice.UserID))
	assert.Nil(t, loadGuessRow(t, f, guess.ID).OverrideDelta)
}

func TestOverrideGuess_FollowsRuleEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	_, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}})
	require.NoError(t, err)
	require.Equal(t, 3, f.participantScore(tasting.ID, alice.UserID))

	// country is now worth three points; the stored intent is re-applied to the new rule
	rule := scenarioRule
	rule.Country = 3
	_, err = f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, rule)
	require.NoError(t, err)

	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}})
	require.NoError(t, err)
	assert.Equal(t, 6, result.AutoScore)
	assert.Equal(t, -3, result.Delta)
	assert.Equal(t, -2, result.ScoreChange)
	assert.Equal(t, 1, f.participantScore(tasting.ID, alice.UserID))

	breakdown, err := f.svc.GetGuessBreakdown(ctx, f.host, tasting.ID, guess.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, breakdown.Breakdown.Total)
	assert.Equal(t, -3, breakdown.Delta)
	assert.Equal(t, 1, breakdown.Score, "graded score plus correction, as counted in the total")
	assert.Equal(t, []string{"country"}, breakdown.Toggles)
}

func TestOverrideGuess_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	_, err := f.svc.OverrideGuess(ctx, alice, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"colour"}})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, scoring.ErrUnknownToggle)

	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"varietals"}})
	assert.ErrorIs(t, err, ErrValidation, "any-match mode toggles single varietals")

	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, "missing", OverrideInput{})
	assert.ErrorIs(t, err, ErrNotFound)

	other, _, _ := f.draftTasting(scenarioWine)
	_, err = f.svc.OverrideGuess(ctx, f.host, other.ID, guess.ID, OverrideInput{})
	assert.ErrorIs(t, err, ErrNotFound, "guess of another tasting")

	assert.Equal(t, 4, f.participantScore(tasting.ID, alice.UserID))
}

func TestOverrideGuess_ReviewerMayCorrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	reviewer := Caller{UserID: f.faker.UUID(), Reviewer: true}
	result, err := f.svc.OverrideGuess(ctx, reviewer, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"vintage"}})
	require.NoError(t, err)
	assert.Equal(t, -1, result.Delta)
	assert.Equal(t, 3, f.participantScore(tasting.ID, alice.UserID))
}

func TestOverrideGuess_RequiresClosedFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := scenarioRule
	tasting, flight, wines := f.startedTasting(&rule, scenarioWine)

	alice := f.user()
	_, err := f.svc.JoinTasting(ctx, alice, tasting.ID, "")
	require.NoError(t, err)
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	guess, err := f.svc.SubmitGuess(ctx, alice, tasting.ID, wines[0].ID, GuessInput{Country: str("France")})
	require.NoError(t, err)

	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.GetGuessBreakdown(ctx, f.host, tasting.ID, guess.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOverrideGuess_ExactVarietalMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := scenarioRule
	rule.AnyVarietalPoint = false
	tasting, guess, alice := gradedGuess(t, f, rule)
	require.Equal(t, 4, f.participantScore(tasting.ID, alice.UserID))

	_, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"varietal:pinot noir"}})
	assert.ErrorIs(t, err, ErrValidation)

	result, err := f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"varietals"}})
	require.NoError(t, err)
	assert.Equal(t, -2, result.Delta)
	assert.Equal(t, 2, f.participantScore(tasting.ID, alice.UserID))
}
