package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/services"
	"github.com/xuri/excelize/v2"
)

func TestWriteResults(t *testing.T) {
	delta := -1
	reason := "label showed Switzerland"
	flight := &models.Flight{ID: "f-1", Name: "Reds"}
	wine := &models.Wine{
		ID: "w-1", FlightID: "f-1", LetterCode: "A",
		Country: "France", Region: "Burgundy", Vintage: "2018", Varietals: models.StringList{"Pinot Noir"},
	}
	guess := &models.Guess{
		ID: "g-1", WineID: "w-1",
		Country: "France", Vintage: "2018", Varietals: models.StringList{"Pinot Noir", "Gamay"},
		Score: 4, OverrideDelta: &delta, OverrideReason: &reason, OverrideFlags: models.StringList{"country"},
	}
	res := &services.TastingResults{
		Tasting: &models.Tasting{ID: "t-1", Name: "Cellar night"},
		Leaderboard: []services.LeaderboardEntry{
			{Rank: 1, ParticipantID: "p-1", UserID: "alice", Score: 3},
			{Rank: 2, ParticipantID: "p-2", UserID: "bob", Score: 0},
		},
		Rows: []services.ResultRow{
			{Flight: flight, Wine: wine, UserID: "alice", Guess: guess, Correction: -1, Score: 3},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, res))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{LeaderboardSheet, GuessesSheet}, f.GetSheetList())

	board, err := f.GetRows(LeaderboardSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Rank", "Participant", "Score"},
		{"1", "alice", "3"},
		{"2", "bob", "0"},
	}, board)

	guesses, err := f.GetRows(GuessesSheet)
	require.NoError(t, err)
	require.Len(t, guesses, 2)
	assert.Equal(t, []string{
		"Reds", "A", "alice",
		"France", "", "", "", "2018", "Pinot Noir, Gamay",
		"France / Burgundy / 2018 / Pinot Noir", "4", "-1", "country", "3", reason,
	}, guesses[1])
}
