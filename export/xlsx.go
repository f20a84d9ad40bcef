// Package export renders tasting results as spreadsheets
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/viberl/BlindTasting-sub000/services"
	"github.com/xuri/excelize/v2"
)

// ContentType is the media type of the workbook written by WriteResults
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	LeaderboardSheet = "Leaderboard"
	GuessesSheet     = "Guesses"
)

var guessHeader = []interface{}{
	"Flight", "Wine", "Participant",
	"Country", "Region", "Producer", "Name", "Vintage", "Varietals",
	"Answer", "Auto score", "Correction", "Corrected", "Score", "Reason",
}

// WriteResults writes res as an xlsx workbook with a leaderboard sheet and
// one row per graded guess.
func WriteResults(w io.Writer, res *services.TastingResults) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LeaderboardSheet); err != nil {
		return fmt.Errorf("failed to name leaderboard sheet: %w", err)
	}
	if err := writeRow(f, LeaderboardSheet, 1, []interface{}{"Rank", "Participant", "Score"}); err != nil {
		return err
	}
	for i, entry := range res.Leaderboard {
		if err := writeRow(f, LeaderboardSheet, i+2, []interface{}{entry.Rank, entry.UserID, entry.Score}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(GuessesSheet); err != nil {
		return fmt.Errorf("failed to add guesses sheet: %w", err)
	}
	if err := writeRow(f, GuessesSheet, 1, guessHeader); err != nil {
		return err
	}
	for i, row := range res.Rows {
		g := row.Guess
		flight := ""
		if row.Flight != nil {
			flight = row.Flight.Name
		}
		reason := ""
		if g.OverrideReason != nil {
			reason = *g.OverrideReason
		}
		values := []interface{}{
			flight, row.Wine.LetterCode, row.UserID,
			g.Country, g.Region, g.Producer, g.Name, g.Vintage, strings.Join(g.Varietals, ", "),
			answer(row), g.Score, row.Correction, strings.Join(g.OverrideFlags, ", "), row.Score, reason,
		}
		if err := writeRow(f, GuessesSheet, i+2, values); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(GuessesSheet, "J", "J", 40)

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// answer is the revealed identity of the wine on one line
func answer(row services.ResultRow) string {
	wine := row.Wine
	var parts []string
	for _, p := range []string{wine.Producer, wine.Name, wine.Country, wine.Region, wine.Vintage, strings.Join(wine.Varietals, ", ")} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}
