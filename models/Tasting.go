package models

import (
	"time"

	"gorm.io/gorm"
)

// TastingStatus is the lifecycle state of a tasting. It only moves forward:
// draft -> active -> started -> completed
type TastingStatus string

const (
	TastingDraft     TastingStatus = "draft"
	TastingActive    TastingStatus = "active"
	TastingStarted   TastingStatus = "started"
	TastingCompleted TastingStatus = "completed"
)

var tastingNext = map[TastingStatus]TastingStatus{
	TastingDraft:   TastingActive,
	TastingActive:  TastingStarted,
	TastingStarted: TastingCompleted,
}

// Next returns the only status a tasting may move to from s
func (s TastingStatus) Next() (TastingStatus, bool) {
	next, ok := tastingNext[s]
	return next, ok
}

// Valid reports whether s is a known status
func (s TastingStatus) Valid() bool {
	switch s {
	case TastingDraft, TastingActive, TastingStarted, TastingCompleted:
		return true
	}
	return false
}

// Tasting represents a blind tasting event run by a host
type Tasting struct {
	ID           string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	HostID       string        `gorm:"type:varchar(64);not null;index;column:host_id" json:"host_id"`
	Name         string        `gorm:"type:varchar(100);not null" json:"name"`
	Status       TastingStatus `gorm:"type:varchar(16);not null" json:"status"`
	IsPublic     bool          `gorm:"not null;column:is_public" json:"is_public"`
	PasswordHash *string       `gorm:"type:varchar(255);column:password_hash" json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `gorm:"column:completed_at" json:"completed_at"`
	ScoringRule  *ScoringRule  `gorm:"foreignKey:TastingID" json:"scoring_rule,omitempty"`
	Flights      []*Flight     `gorm:"foreignKey:TastingID" json:"flights,omitempty"`
}

func (t *Tasting) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	if t.Status == "" {
		t.Status = TastingDraft
	}
	return nil
}

// IsHost reports whether userID owns the tasting
func (t *Tasting) IsHost(userID string) bool {
	return userID != "" && t.HostID == userID
}

// HasPassword reports whether joining requires a password
func (t *Tasting) HasPassword() bool {
	return t.PasswordHash != nil && *t.PasswordHash != ""
}
