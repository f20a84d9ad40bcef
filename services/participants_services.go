package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LeaderboardEntry is one ranked line of the leaderboard. Equal scores share a rank.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	Score         int    `json:"score"`
}

// JoinTasting makes the caller a participant of an active or started
// tasting. Joining again is a no-op, and a participant that left comes back
// with its score intact.
func (s *SessionService) JoinTasting(ctx context.Context, caller Caller, tastingID, password string) (*models.Participant, error) {
	if caller.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrPermissionDenied)
	}

	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var (
		participant models.Participant
		changed     bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasting, err := lockTasting(tx, tastingID)
		if err != nil {
			return err
		}
		if tasting.Status != models.TastingActive && tasting.Status != models.TastingStarted {
			return fmt.Errorf("%w: tasting is %s, not open for joining", ErrInvalidState, tasting.Status)
		}

		err = tx.Where("tasting_id = ? AND user_id = ?", tastingID, caller.UserID).First(&participant).Error
		switch {
		case err == nil:
			if participant.Present() {
				return nil
			}
			if err := tx.Model(&participant).Update("left_at", nil).Error; err != nil {
				return fmt.Errorf("failed to rejoin tasting: %w", err)
			}
			participant.LeftAt = nil
			changed = true
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to load participant: %w", err)
		}

		if tasting.HasPassword() {
			if err := bcrypt.CompareHashAndPassword([]byte(*tasting.PasswordHash), []byte(password)); err != nil {
				return fmt.Errorf("%w: wrong tasting password", ErrPermissionDenied)
			}
		}

		participant = models.Participant{
			TastingID: tastingID,
			UserID:    caller.UserID,
			JoinedAt:  s.clock(),
		}
		if err := tx.Create(&participant).Error; err != nil {
			return fmt.Errorf("failed to join tasting: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.InfoContext(ctx, "participant joined", "tasting_id", tastingID, "user_id", caller.UserID)
		s.broadcast(ctx, tastingID, realtime.EventParticipantJoined, realtime.ParticipantJoinedPayload{
			Participant: participantView(&participant),
		})
	}
	return &participant, nil
}

// LeaveTasting removes the caller from the room's participant list. The
// participant keeps its score and guesses and may join again.
func (s *SessionService) LeaveTasting(ctx context.Context, caller Caller, tastingID string) error {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	var (
		participant models.Participant
		changed     bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTasting(tx, tastingID); err != nil {
			return err
		}
		err := tx.Where("tasting_id = ? AND user_id = ?", tastingID, caller.UserID).First(&participant).Error
		if err != nil {
			return notFound(err, "participant %s", caller.UserID)
		}
		if !participant.Present() {
			return nil
		}
		now := s.clock()
		if err := tx.Model(&participant).Update("left_at", now).Error; err != nil {
			return fmt.Errorf("failed to leave tasting: %w", err)
		}
		participant.LeftAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.logger.InfoContext(ctx, "participant left", "tasting_id", tastingID, "user_id", caller.UserID)
		s.broadcast(ctx, tastingID, realtime.EventParticipantRemoved, realtime.ParticipantRemovedPayload{
			ParticipantID: participant.ID,
			UserID:        participant.UserID,
		})
	}
	return nil
}

// ListParticipants returns the participants currently in the tasting
func (s *SessionService) ListParticipants(ctx context.Context, tastingID string) ([]realtime.ParticipantView, error) {
	db := s.db.WithContext(ctx)
	if _, err := findTasting(db, tastingID); err != nil {
		return nil, err
	}
	return presentParticipants(db, tastingID)
}

// Leaderboard ranks every participant, including those who left, by score
// and truncates the list to the rule's display count.
func (s *SessionService) Leaderboard(ctx context.Context, tastingID string) ([]LeaderboardEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := findTasting(db, tastingID); err != nil {
		return nil, err
	}
	rule, err := findRule(db, tastingID)
	if err != nil {
		return nil, err
	}

	var participants []models.Participant
	if err := db.Where("tasting_id = ?", tastingID).Order("score DESC, joined_at, id").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return rankParticipants(participants, rule.DisplayCount), nil
}

// rankParticipants assigns standard competition ranks (1, 2, 2, 4) and keeps
// the first limit entries when limit is positive.
func rankParticipants(participants []models.Participant, limit int) []LeaderboardEntry {
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].Score > participants[j].Score
	})

	entries := make([]LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		rank := i + 1
		if i > 0 && p.Score == participants[i-1].Score {
			rank = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{Rank: rank, ParticipantID: p.ID, UserID: p.UserID, Score: p.Score})
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Snapshot returns the full state a client needs after connecting
func (s *SessionService) Snapshot(ctx context.Context, tastingID string) (*realtime.Snapshot, error) {
	db := s.db.WithContext(ctx)
	tasting, err := findTasting(db, tastingID)
	if err != nil {
		return nil, err
	}
	participants, err := presentParticipants(db, tastingID)
	if err != nil {
		return nil, err
	}

	snapshot := &realtime.Snapshot{Status: string(tasting.Status), Participants: participants}

	var running models.Flight
	err = db.Where("tasting_id = ? AND started_at IS NOT NULL AND completed_at IS NULL", tastingID).
		Order("order_index").
		First(&running).Error
	switch {
	case err == nil:
		snapshot.ActiveFlight = &realtime.FlightView{
			ID:               running.ID,
			OrderIndex:       running.OrderIndex,
			TimeLimit:        running.TimeLimitSeconds,
			RemainingSeconds: running.RemainingSeconds(s.clock()),
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load running flight: %w", err)
	}
	return snapshot, nil
}

// Subscribe adds client to the tasting room and sends it a snapshot. Both
// happen under the tasting lock, so the client sees every change committed
// after its snapshot and none before.
func (s *SessionService) Subscribe(ctx context.Context, tastingID string, client *realtime.Client) error {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	snapshot, err := s.Snapshot(ctx, tastingID)
	if err != nil {
		return err
	}
	s.rooms.Register(tastingID, client)
	if err := realtime.SendTo(client, realtime.NewEvent(tastingID, realtime.EventSnapshot, snapshot)); err != nil {
		s.rooms.Unregister(tastingID, client)
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	return nil
}

// SendSnapshot answers a client's request for fresh state
func (s *SessionService) SendSnapshot(ctx context.Context, tastingID string, client *realtime.Client) error {
	unlock := s.locks.Lock(tastingID)
	defer unlock()

	snapshot, err := s.Snapshot(ctx, tastingID)
	if err != nil {
		return err
	}
	return realtime.SendTo(client, realtime.NewEvent(tastingID, realtime.EventSnapshot, snapshot))
}

// Unsubscribe removes client from the room and closes it
func (s *SessionService) Unsubscribe(tastingID string, client *realtime.Client) {
	s.rooms.Unregister(tastingID, client)
}
