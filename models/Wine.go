package models

import (
	"github.com/viberl/BlindTasting-sub000/scoring"
	"gorm.io/gorm"
)

// MaxWinesPerFlight is bounded by the single-letter blind codes A..Z
const MaxWinesPerFlight = 26

// Wine represents one bottle served blind inside a flight
type Wine struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	FlightID   string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_wine_letter;column:flight_id" json:"flight_id"`
	LetterCode string     `gorm:"type:varchar(1);not null;uniqueIndex:idx_wine_letter;column:letter_code" json:"letter_code"`
	Country    string     `gorm:"type:varchar(100)" json:"country"`
	Region     string     `gorm:"type:varchar(100)" json:"region"`
	Producer   string     `gorm:"type:varchar(255)" json:"producer"`
	Name       string     `gorm:"type:varchar(255)" json:"name"`
	Vintage    string     `gorm:"type:varchar(16)" json:"vintage"`
	Varietals  StringList `gorm:"type:text" json:"varietals"`
}

func (w *Wine) BeforeCreate(tx *gorm.DB) error {
	newID(&w.ID)
	return nil
}

// LetterFor returns the blind code of the n-th wine of a flight (0 -> "A")
func LetterFor(n int) string {
	return string(rune('A' + n))
}

// Attributes returns the wine's identity for the scoring engine
func (w *Wine) Attributes() scoring.Attributes {
	return scoring.Attributes{
		Country:   w.Country,
		Region:    w.Region,
		Producer:  w.Producer,
		Name:      w.Name,
		Vintage:   w.Vintage,
		Varietals: []string(w.Varietals),
	}
}
