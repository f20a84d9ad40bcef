package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTastingResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := scenarioRule
	tasting, flight, wines := f.startedTasting(&rule, scenarioWine)
	second, err := f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{Name: "Whites"})
	require.NoError(t, err)
	hidden, err := f.svc.AddWine(ctx, f.host, tasting.ID, second.ID, WineInput{Country: "Germany", Varietals: []string{"Riesling"}})
	require.NoError(t, err)

	alice, bob := f.user(), f.user()
	for _, c := range []Caller{alice, bob} {
		_, err := f.svc.JoinTasting(ctx, c, tasting.ID, "")
		require.NoError(t, err)
	}
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	guess, err := f.svc.SubmitGuess(ctx, alice, tasting.ID, wines[0].ID, GuessInput{
		Country: str("France"), Vintage: str("2018"), Varietals: []string{"Pinot Noir"},
	})
	require.NoError(t, err)
	_, err = f.svc.CompleteFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country"}, Reason: "typo"})
	require.NoError(t, err)

	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, second.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitGuess(ctx, bob, tasting.ID, hidden.ID, GuessInput{Country: str("Germany")})
	require.NoError(t, err)

	_, err = f.svc.TastingResults(ctx, alice, tasting.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.TastingResults(ctx, f.host, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.svc.TastingResults(ctx, f.host, tasting.ID)
	require.NoError(t, err)

	require.Len(t, res.Leaderboard, 2)
	assert.Equal(t, alice.UserID, res.Leaderboard[0].UserID)
	assert.Equal(t, 3, res.Leaderboard[0].Score)
	assert.Equal(t, 0, res.Leaderboard[1].Score)

	// the running flight's guesses stay out of the export
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, alice.UserID, row.UserID)
	assert.Equal(t, "A", row.Wine.LetterCode)
	assert.Equal(t, "Reds", row.Flight.Name)
	assert.Equal(t, 4, row.Guess.Score)
	assert.Equal(t, -1, row.Correction)
	assert.Equal(t, 3, row.Score)
}

func TestTastingResults_ScoreMatchesBreakdownAfterRuleEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, guess, alice := gradedGuess(t, f, scenarioRule)

	rule := scenarioRule
	rule.Country = 3
	_, err := f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, rule)
	require.NoError(t, err)
	// the correction is taken against the re-scored guess (6 points) while
	// the graded score stays at 4
	_, err = f.svc.OverrideGuess(ctx, f.host, tasting.ID, guess.ID, OverrideInput{Toggles: []string{"country", "vintage"}})
	require.NoError(t, err)

	breakdown, err := f.svc.GetGuessBreakdown(ctx, f.host, tasting.ID, guess.ID)
	require.NoError(t, err)
	require.Equal(t, -4, breakdown.Delta)

	res, err := f.svc.TastingResults(ctx, f.host, tasting.ID)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	total := f.participantScore(tasting.ID, alice.UserID)
	assert.Equal(t, 0, total)
	assert.Equal(t, total, breakdown.Score)
	assert.Equal(t, total, res.Rows[0].Score)
	assert.Equal(t, total, res.Leaderboard[0].Score)
}
