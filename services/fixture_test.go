package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/viberl/BlindTasting-sub000/database/dbtest"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
	"gorm.io/gorm"
)

// recordingRooms is a RoomRegistry that keeps every broadcast event
type recordingRooms struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingRooms) Register(string, *realtime.Client) {}

func (r *recordingRooms) Unregister(_ string, client *realtime.Client) { client.Close() }

func (r *recordingRooms) Broadcast(_ context.Context, _ string, event realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingRooms) RoomSize(string) int { return 0 }

func (r *recordingRooms) types() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recordingRooms) last() realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingRooms) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// recordingPublisher keeps every published domain event
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event queue.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	t         *testing.T
	db        *gorm.DB
	svc       *SessionService
	rooms     *recordingRooms
	publisher *recordingPublisher
	faker     *gofakeit.Faker
	host      Caller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := dbtest.New(t)
	rooms := &recordingRooms{}
	publisher := &recordingPublisher{}
	opts = append([]Option{
		WithRooms(rooms),
		WithPublisher(publisher),
		WithBackOff(func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3) }),
	}, opts...)
	svc := NewSessionService(db, opts...)
	t.Cleanup(svc.Close)

	faker := gofakeit.New(42)
	return &fixture{
		t:         t,
		db:        db,
		svc:       svc,
		rooms:     rooms,
		publisher: publisher,
		faker:     faker,
		host:      Caller{UserID: faker.UUID()},
	}
}

func (f *fixture) user() Caller {
	return Caller{UserID: f.faker.UUID()}
}

// draftTasting creates a public tasting with one untimed flight holding wines
func (f *fixture) draftTasting(wines ...WineInput) (*models.Tasting, *models.Flight, []*models.Wine) {
	f.t.Helper()
	ctx := context.Background()

	tasting, err := f.svc.CreateTasting(ctx, f.host, CreateTastingInput{Name: "Friday flight", IsPublic: true})
	require.NoError(f.t, err)
	flight, err := f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{Name: "Reds"})
	require.NoError(f.t, err)

	var added []*models.Wine
	for _, w := range wines {
		wine, err := f.svc.AddWine(ctx, f.host, tasting.ID, flight.ID, w)
		require.NoError(f.t, err)
		added = append(added, wine)
	}
	return tasting, flight, added
}

// startedTasting builds a tasting that accepts flight starts
func (f *fixture) startedTasting(rule *RuleInput, wines ...WineInput) (*models.Tasting, *models.Flight, []*models.Wine) {
	f.t.Helper()
	ctx := context.Background()

	tasting, flight, added := f.draftTasting(wines...)
	if rule != nil {
		_, err := f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, *rule)
		require.NoError(f.t, err)
	}
	_, err := f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingActive)
	require.NoError(f.t, err)
	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingStarted)
	require.NoError(f.t, err)
	return tasting, flight, added
}

func (f *fixture) participantScore(tastingID, userID string) int {
	f.t.Helper()
	var p models.Participant
	require.NoError(f.t, f.db.Where("tasting_id = ? AND user_id = ?", tastingID, userID).First(&p).Error)
	return p.Score
}

func (f *fixture) reloadFlight(flightID string) *models.Flight {
	f.t.Helper()
	var flight models.Flight
	require.NoError(f.t, f.db.Where("id = ?", flightID).First(&flight).Error)
	return &flight
}

func str(s string) *string { return &s }

// scenarioRule and scenarioWine are the single-wine tasting used across tests
var (
	scenarioRule = RuleInput{Country: 1, Vintage: 1, Varietals: 2, AnyVarietalPoint: true, DisplayCount: 10}
	scenarioWine = WineInput{Country: "France", Region: "Burgundy", Vintage: "2018", Varietals: []string{"Pinot Noir"}}
)

// memConn is a websocket connection that keeps the text frames written to it
type memConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *memConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.messages = append(c.messages, append([]byte(nil), data...))
	}
	return nil
}

func (c *memConn) SetWriteDeadline(time.Time) error { return nil }

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// rawEvent keeps the payload undecoded until its type is known
type rawEvent struct {
	Type    realtime.EventType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

func (c *memConn) events(t *testing.T) []rawEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rawEvent, 0, len(c.messages))
	for _, m := range c.messages {
		var ev rawEvent
		require.NoError(t, json.Unmarshal(m, &ev))
		out = append(out, ev)
	}
	return out
}
