package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/viberl/BlindTasting-sub000/config"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateTastingInput describes a new tasting. A private tasting needs a password.
type CreateTastingInput struct {
	Name     string
	IsPublic bool
	Password string
}

// RuleInput holds the editable fields of a scoring rule
type RuleInput struct {
	Country          int
	Region           int
	Producer         int
	Name             int
	Vintage          int
	Varietals        int
	AnyVarietalPoint bool
	DisplayCount     int
}

// CreateTasting creates a draft tasting hosted by the caller
func (s *SessionService) CreateTasting(ctx context.Context, caller Caller, in CreateTastingInput) (*models.Tasting, error) {
	name := strings.TrimSpace(in.Name)
	if caller.UserID == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrPermissionDenied)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.IsPublic && in.Password == "" {
		return nil, fmt.Errorf("%w: a private tasting needs a password", ErrValidation)
	}

	tasting := &models.Tasting{
		HostID:    caller.UserID,
		Name:      name,
		Status:    models.TastingDraft,
		IsPublic:  in.IsPublic,
		CreatedAt: s.clock(),
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		tasting.PasswordHash = &h
	}

	if err := s.db.WithContext(ctx).Create(tasting).Error; err != nil {
		return nil, fmt.Errorf("failed to create tasting: %w", err)
	}
	s.logger.InfoContext(ctx, "tasting created", "tasting_id", tasting.ID, "host_id", tasting.HostID)
	return tasting, nil
}

// GetTasting returns the tasting with its flights and wines. Wines of a
// flight that is not closed yet are blinded for everyone but the host.
func (s *SessionService) GetTasting(ctx context.Context, caller Caller, tastingID string) (*models.Tasting, error) {
	var tasting models.Tasting
	err := s.db.WithContext(ctx).
		Preload("ScoringRule").
		Preload("Flights", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		Preload("Flights.Wines", func(db *gorm.DB) *gorm.DB { return db.Order("letter_code") }).
		Where("id = ?", tastingID).
		First(&tasting).Error
	if err != nil {
		return nil, notFound(err, "tasting %s", tastingID)
	}

	if !tasting.IsHost(caller.UserID) {
		for _, flight := range tasting.Flights {
			if flight.State() == models.FlightClosed {
				continue
			}
			for i, wine := range flight.Wines {
				flight.Wines[i] = &models.Wine{ID: wine.ID, FlightID: wine.FlightID, LetterCode: wine.LetterCode}
			}
		}
	}
	return &tasting, nil
}

// GetScoringRule returns the tasting's rule, or the default it would get on activation
func (s *SessionService) GetScoringRule(ctx context.Context, tastingID string) (*models.ScoringRule, error) {
	db := s.db.WithContext(ctx)
	if _, err := findTasting(db, tastingID); err != nil {
		return nil, err
	}
	return findRule(db, tastingID)
}

// UpdateScoringRule replaces the point values of a tasting. Already graded
// flights keep their scores; only overrides and later flights see the new values.
func (s *SessionService) UpdateScoringRule(ctx context.Context, caller Caller, tastingID string, in RuleInput) (*models.ScoringRule, error) {
	for name, v := range map[string]int{
		"country": in.Country, "region": in.Region, "producer": in.Producer,
		"name": in.Name, "vintage": in.Vintage, "varietals": in.Varietals,
		"display_count": in.DisplayCount,
	} {
		if v < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrValidation, name)
		}
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var rule *models.ScoringRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if err := requireHost(tasting, caller, "edit the scoring rule"); err != nil {
			return err
		}
		if rule, err = findRule(tx, tastingID); err != nil {
			return err
		}
		rule.Country = in.Country
		rule.Region = in.Region
		rule.Producer = in.Producer
		rule.Name = in.Name
		rule.Vintage = in.Vintage
		rule.Varietals = in.Varietals
		rule.AnyVarietalPoint = in.AnyVarietalPoint
		rule.DisplayCount = in.DisplayCount
		if err := tx.Save(rule).Error; err != nil {
			return fmt.Errorf("failed to save scoring rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// AdvanceTasting moves the tasting to status, which must be the next one in
// draft -> active -> started -> completed. Completing a tasting first closes
// and grades every flight still running.
func (s *SessionService) AdvanceTasting(ctx context.Context, caller Caller, tastingID string, status models.TastingStatus) (*models.Tasting, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	db := s.db.WithContext(ctx)
	tasting, err := findTasting(db, tastingID)
	if err != nil {
		return nil, err
	}
	if err := requireHost(tasting, caller, "change the tasting status"); err != nil {
		return nil, err
	}
	next, ok := tasting.Status.Next()
	if !ok || next != status {
		return nil, fmt.Errorf("%w: cannot move tasting from %s to %s", ErrInvalidState, tasting.Status, status)
	}

	if status == models.TastingCompleted {
		var running []models.Flight
		err := db.Where("tasting_id = ? AND started_at IS NOT NULL AND completed_at IS NULL", tastingID).
			Order("order_index").
			Find(&running).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list running flights: %w", err)
		}
		for _, flight := range running {
			if _, err := s.completeFlightLocked(ctx, tastingID, flight.ID, TriggerTasting); err != nil {
				return nil, err
			}
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if locked.Status != tasting.Status {
			return fmt.Errorf("%w: tasting status changed to %s", ErrInvalidState, locked.Status)
		}

		updates := map[string]interface{}{"status": status}
		switch status {
		case models.TastingActive:
			if err := ensureReady(tx, tastingID); err != nil {
				return err
			}
		case models.TastingCompleted:
			now := s.clock()
			updates["completed_at"] = now
			tasting.CompletedAt = &now
		}
		if err := tx.Model(&models.Tasting{}).Where("id = ?", tastingID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update tasting status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tasting.Status = status

	s.logger.InfoContext(ctx, "tasting status changed", "tasting_id", tastingID, "status", status)
	s.broadcast(ctx, tastingID, realtime.EventTastingStatus, realtime.TastingStatusPayload{Status: string(status)})

	if status == models.TastingCompleted {
		var participants []models.Participant
		if err := db.Where("tasting_id = ?", tastingID).Find(&participants).Error; err != nil {
			s.logger.WarnContext(ctx, "failed to load final scores", "tasting_id", tastingID, "error", err)
		}
		scores := make(map[string]int, len(participants))
		for _, p := range participants {
			scores[p.ID] = p.Score
		}
		s.publish(tastingID, queue.TastingCompleted, queue.TastingCompletedEvent{CompletedAt: *tasting.CompletedAt, Scores: scores})
	}
	return tasting, nil
}

// ensureReady checks that the tasting has a flight with a wine and gives it
// the default scoring rule when it has none.
func ensureReady(tx *gorm.DB, tastingID string) error {
	var wines int64
	err := tx.Model(&models.Wine{}).
		Joins("JOIN flights ON flights.id = wines.flight_id").
		Where("flights.tasting_id = ?", tastingID).
		Count(&wines).Error
	if err != nil {
		return fmt.Errorf("failed to count wines: %w", err)
	}
	if wines == 0 {
		return fmt.Errorf("%w: a tasting needs at least one flight with a wine", ErrInvalidState)
	}

	var rules int64
	if err := tx.Model(&models.ScoringRule{}).Where("tasting_id = ?", tastingID).Count(&rules).Error; err != nil {
		return fmt.Errorf("failed to check scoring rule: %w", err)
	}
	if rules == 0 {
		if err := tx.Create(config.NewDefaultScoringRule(tastingID)).Error; err != nil {
			return fmt.Errorf("failed to create default scoring rule: %w", err)
		}
	}
	return nil
}
