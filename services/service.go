package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/viberl/BlindTasting-sub000/config"
	"github.com/viberl/BlindTasting-sub000/metrics"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"github.com/viberl/BlindTasting-sub000/scheduler"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	publishTimeout = 5 * time.Second
	outboxSize     = 1024
)

// Caller is the authenticated identity behind a request. Reviewer is set
// when the token grants the reviewer role, which may correct scores of any
// tasting.
type Caller struct {
	UserID   string
	Reviewer bool
}

// SessionService owns the lifecycle of tastings and flights, grading and
// host corrections. Every mutation of a tasting runs under that tasting's
// writer lock, and events are broadcast before the lock is released so
// rooms observe them in commit order.
type SessionService struct {
	db          *gorm.DB
	rooms       realtime.RoomRegistry
	publisher   queue.Publisher
	timers      *scheduler.Scheduler
	locks       *keyedMutex
	completions singleflight.Group
	newBackOff  func() backoff.BackOff
	now         func() time.Time
	logger      *slog.Logger

	outbox   chan queue.DomainEvent
	stop     chan struct{}
	drained  chan struct{}
	stopOnce sync.Once
}

// Option configures a SessionService
type Option func(*SessionService)

// WithRooms sets the registry events are broadcast to
func WithRooms(rooms realtime.RoomRegistry) Option {
	return func(s *SessionService) { s.rooms = rooms }
}

// WithPublisher sets the domain event publisher
func WithPublisher(p queue.Publisher) Option {
	return func(s *SessionService) { s.publisher = p }
}

// WithScheduler sets the scheduler used for flight auto-close
func WithScheduler(timers *scheduler.Scheduler) Option {
	return func(s *SessionService) { s.timers = timers }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionService) { s.logger = logger }
}

// WithBackOff sets the retry policy for grading transactions
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *SessionService) { s.newBackOff = newBackOff }
}

// NewSessionService wires the service to its store
func NewSessionService(db *gorm.DB, opts ...Option) *SessionService {
	s := &SessionService{
		db:        db,
		publisher: queue.NopPublisher{},
		timers:    scheduler.New(),
		locks:     newKeyedMutex(),
		now:       time.Now,
		logger:    slog.Default(),
		outbox:    make(chan queue.DomainEvent, outboxSize),
		stop:      make(chan struct{}),
		drained:   make(chan struct{}),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	if s.rooms == nil {
		s.rooms = realtime.NewLocalRegistry(s.logger)
	}
	go s.runOutbox()
	return s
}

// Rooms returns the registry clients subscribe to
func (s *SessionService) Rooms() realtime.RoomRegistry {
	return s.rooms
}

// Close cancels every pending flight timer and waits until the queued
// domain events have been handed to the publisher.
func (s *SessionService) Close() {
	s.timers.Stop()
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.drained
}

func (s *SessionService) clock() time.Time {
	return s.now().UTC()
}

// broadcast hands event to the room. A failed broadcast never fails the
// operation that produced it.
func (s *SessionService) broadcast(ctx context.Context, tastingID string, eventType realtime.EventType, payload interface{}) {
	event := realtime.NewEvent(tastingID, eventType, payload)
	if err := s.rooms.Broadcast(context.WithoutCancel(ctx), tastingID, event); err != nil {
		s.logger.WarnContext(ctx, "broadcast failed", "tasting_id", tastingID, "type", eventType, "error", err)
	}
}

// publish queues a domain event. One worker hands queued events to the
// publisher, so they reach the broker in the order they were produced.
func (s *SessionService) publish(tastingID, eventType string, payload interface{}) {
	event := queue.DomainEvent{
		Type:       eventType,
		TastingID:  tastingID,
		OccurredAt: s.clock(),
		Payload:    payload,
	}
	select {
	case <-s.stop:
		s.logger.Warn("service closed, domain event dropped", "tasting_id", tastingID, "type", eventType)
		return
	default:
	}
	select {
	case s.outbox <- event:
	default:
		metrics.EventsPublished.WithLabelValues(eventType, "dropped").Inc()
		s.logger.Warn("outbox full, domain event dropped", "tasting_id", tastingID, "type", eventType)
	}
}

// runOutbox delivers queued events until Close, then flushes what is left.
func (s *SessionService) runOutbox() {
	defer close(s.drained)
	for {
		select {
		case event := <-s.outbox:
			s.deliver(event)
		case <-s.stop:
			for {
				select {
				case event := <-s.outbox:
					s.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (s *SessionService) deliver(event queue.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish domain event", "tasting_id", event.TastingID, "type", event.Type, "error", err)
	}
}

// lockTasting loads the tasting row for update inside tx
func lockTasting(tx *gorm.DB, tastingID string) (*models.Tasting, error) {
	var tasting models.Tasting
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", tastingID).
		First(&tasting).Error
	if err != nil {
		return nil, notFound(err, "tasting %s", tastingID)
	}
	return &tasting, nil
}

func findTasting(db *gorm.DB, tastingID string) (*models.Tasting, error) {
	var tasting models.Tasting
	if err := db.Where("id = ?", tastingID).First(&tasting).Error; err != nil {
		return nil, notFound(err, "tasting %s", tastingID)
	}
	return &tasting, nil
}

func findFlight(db *gorm.DB, tastingID, flightID string) (*models.Flight, error) {
	var flight models.Flight
	if err := db.Where("id = ? AND tasting_id = ?", flightID, tastingID).First(&flight).Error; err != nil {
		return nil, notFound(err, "flight %s", flightID)
	}
	return &flight, nil
}

// findRule returns the stored rule of the tasting, or the default one
func findRule(db *gorm.DB, tastingID string) (*models.ScoringRule, error) {
	var rule models.ScoringRule
	err := db.Where("tasting_id = ?", tastingID).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return config.NewDefaultScoringRule(tastingID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring rule: %w", err)
	}
	return &rule, nil
}

// presentParticipants lists participants that have not left, in join order
func presentParticipants(db *gorm.DB, tastingID string) ([]realtime.ParticipantView, error) {
	var participants []models.Participant
	err := db.Where("tasting_id = ? AND left_at IS NULL", tastingID).
		Order("joined_at, id").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	views := make([]realtime.ParticipantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, participantView(&p))
	}
	return views, nil
}

func participantView(p *models.Participant) realtime.ParticipantView {
	return realtime.ParticipantView{ID: p.ID, UserID: p.UserID, Score: p.Score}
}

// notFound maps a missing record to ErrNotFound and wraps anything else
func notFound(err error, format string, args ...interface{}) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func requireHost(tasting *models.Tasting, caller Caller, action string) error {
	if !tasting.IsHost(caller.UserID) {
		return fmt.Errorf("%w: only the host may %s", ErrPermissionDenied, action)
	}
	return nil
}
