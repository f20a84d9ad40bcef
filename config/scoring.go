package config

import "github.com/viberl/BlindTasting-sub000/models"

// DefaultScoringRule is applied to a tasting that is activated without a rule
var DefaultScoringRule = models.ScoringRule{
	Country:          1,
	Region:           1,
	Producer:         1,
	Name:             1,
	Vintage:          1,
	Varietals:        1,
	AnyVarietalPoint: true,
	DisplayCount:     10,
}

// NewDefaultScoringRule returns a copy of DefaultScoringRule bound to a tasting
func NewDefaultScoringRule(tastingID string) *models.ScoringRule {
	rule := DefaultScoringRule
	rule.ID = ""
	rule.TastingID = tastingID
	return &rule
}
