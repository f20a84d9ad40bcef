package models

import (
	"github.com/viberl/BlindTasting-sub000/scoring"
	"gorm.io/gorm"
)

// ScoringRule holds the point values used to grade every guess of a tasting
type ScoringRule struct {
	ID               string `gorm:"type:varchar(36);primaryKey" json:"id"`
	TastingID        string `gorm:"type:varchar(36);not null;uniqueIndex;column:tasting_id" json:"tasting_id"`
	Country          int    `gorm:"not null" json:"country"`
	Region           int    `gorm:"not null" json:"region"`
	Producer         int    `gorm:"not null" json:"producer"`
	Name             int    `gorm:"not null" json:"name"`
	Vintage          int    `gorm:"not null" json:"vintage"`
	Varietals        int    `gorm:"not null" json:"varietals"`
	AnyVarietalPoint bool   `gorm:"not null;column:any_varietal_point" json:"any_varietal_point"`
	DisplayCount     int    `gorm:"not null;column:display_count" json:"display_count"`
}

func (r *ScoringRule) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

// Rule converts the stored rule into the engine's input
func (r *ScoringRule) Rule() scoring.Rule {
	return scoring.Rule{
		Country:          r.Country,
		Region:           r.Region,
		Producer:         r.Producer,
		Name:             r.Name,
		Vintage:          r.Vintage,
		Varietals:        r.Varietals,
		AnyVarietalPoint: r.AnyVarietalPoint,
	}
}
