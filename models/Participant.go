package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant represents a user taking part in a tasting. Score is a running
// total that only moves by grading and override deltas.
type Participant struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	TastingID string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_participant_user;column:tasting_id" json:"tasting_id"`
	UserID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_participant_user;column:user_id" json:"user_id"`
	Score     int        `gorm:"not null" json:"score"`
	JoinedAt  time.Time  `gorm:"column:joined_at" json:"joined_at"`
	LeftAt    *time.Time `gorm:"column:left_at" json:"left_at"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

// Present reports whether the participant is still in the room
func (p *Participant) Present() bool {
	return p.LeftAt == nil
}
