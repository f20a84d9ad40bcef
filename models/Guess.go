package models

import (
	"time"

	"github.com/viberl/BlindTasting-sub000/scoring"
	"gorm.io/gorm"
)

// Guess represents a participant's blind submission for one wine.
//
// Score is the engine result stored when the flight was graded. OverrideDelta
// is a host correction relative to a freshly recomputed engine score, not an
// absolute score; OverrideFlags records which attributes the host flipped.
type Guess struct {
	ID             string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	ParticipantID  string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_guess_wine;column:participant_id" json:"participant_id"`
	WineID         string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_guess_wine;index;column:wine_id" json:"wine_id"`
	Country        string       `gorm:"type:varchar(100)" json:"country"`
	Region         string       `gorm:"type:varchar(100)" json:"region"`
	Producer       string       `gorm:"type:varchar(255)" json:"producer"`
	Name           string       `gorm:"type:varchar(255)" json:"name"`
	Vintage        string       `gorm:"type:varchar(16)" json:"vintage"`
	Varietals      StringList   `gorm:"type:text" json:"varietals"`
	Score          int          `gorm:"not null" json:"score"`
	OverrideDelta  *int         `gorm:"column:override_delta" json:"override_delta"`
	OverrideReason *string      `gorm:"type:varchar(255);column:override_reason" json:"override_reason"`
	OverrideFlags  StringList   `gorm:"type:text;column:override_flags" json:"override_flags"`
	SubmittedAt    time.Time    `gorm:"column:submitted_at" json:"submitted_at"`
	Participant    *Participant `gorm:"foreignKey:ParticipantID" json:"-"`
	Wine           *Wine        `gorm:"foreignKey:WineID" json:"-"`
}

func (g *Guess) BeforeCreate(tx *gorm.DB) error {
	newID(&g.ID)
	return nil
}

// EffectiveScore is what the guess adds to the participant's total: the
// graded score plus any stored correction.
func (g *Guess) EffectiveScore() int {
	if g.OverrideDelta == nil {
		return g.Score
	}
	return g.Score + *g.OverrideDelta
}

// Attributes returns the guessed identity for the scoring engine
func (g *Guess) Attributes() scoring.Attributes {
	return scoring.Attributes{
		Country:   g.Country,
		Region:    g.Region,
		Producer:  g.Producer,
		Name:      g.Name,
		Vintage:   g.Vintage,
		Varietals: []string(g.Varietals),
	}
}
