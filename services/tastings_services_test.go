package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viberl/BlindTasting-sub000/config"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/queue"
	"github.com/viberl/BlindTasting-sub000/realtime"
)

func TestCreateTasting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tasting, err := f.svc.CreateTasting(ctx, f.host, CreateTastingInput{Name: "  Left bank  ", Password: "merlot"})
	require.NoError(t, err)
	assert.NotEmpty(t, tasting.ID)
	assert.Equal(t, "Left bank", tasting.Name)
	assert.Equal(t, models.TastingDraft, tasting.Status)
	assert.True(t, tasting.HasPassword())
	assert.NotEqual(t, "merlot", *tasting.PasswordHash)

	tests := []struct {
		name   string
		caller Caller
		in     CreateTastingInput
		want   error
	}{
		{"missing name", f.host, CreateTastingInput{IsPublic: true}, ErrValidation},
		{"private without password", f.host, CreateTastingInput{Name: "x"}, ErrValidation},
		{"anonymous host", Caller{}, CreateTastingInput{Name: "x", IsPublic: true}, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTasting(ctx, tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAddFlightAndWine_AssignOrderAndLetters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, first, wines := f.draftTasting(scenarioWine, scenarioWine, scenarioWine)

	assert.Equal(t, 0, first.OrderIndex)
	assert.Equal(t, "Reds", first.Name)
	letters := []string{}
	for _, w := range wines {
		letters = append(letters, w.LetterCode)
	}
	assert.Equal(t, []string{"A", "B", "C"}, letters)

	second, err := f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.OrderIndex)
	assert.Equal(t, "Flight 2", second.Name)

	_, err = f.svc.AddFlight(ctx, f.user(), tasting.ID, FlightInput{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{TimeLimitSeconds: -5})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.AddWine(ctx, f.host, tasting.ID, "missing", scenarioWine)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddWine_LimitsAndStartedFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, flight, _ := f.draftTasting()

	for i := 0; i < models.MaxWinesPerFlight; i++ {
		_, err := f.svc.AddWine(ctx, f.host, tasting.ID, flight.ID, WineInput{Name: f.faker.Word()})
		require.NoError(t, err)
	}
	_, err := f.svc.AddWine(ctx, f.host, tasting.ID, flight.ID, scenarioWine)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingActive)
	require.NoError(t, err)
	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingStarted)
	require.NoError(t, err)
	second, err := f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{})
	require.NoError(t, err)
	_, err = f.svc.AddWine(ctx, f.host, tasting.ID, second.ID, scenarioWine)
	require.NoError(t, err)
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, second.ID)
	require.NoError(t, err)

	_, err = f.svc.AddWine(ctx, f.host, tasting.ID, second.ID, scenarioWine)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAdvanceTasting_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tasting, _, _ := f.draftTasting()
	_, err := f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingActive)
	assert.ErrorIs(t, err, ErrInvalidState, "no wine yet")

	tasting, _, _ = f.draftTasting(scenarioWine)
	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingStarted)
	assert.ErrorIs(t, err, ErrInvalidState, "skipping a status")
	_, err = f.svc.AdvanceTasting(ctx, f.user(), tasting.ID, models.TastingActive)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingStatus("paused"))
	assert.ErrorIs(t, err, ErrValidation)

	f.rooms.reset()
	active, err := f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingActive)
	require.NoError(t, err)
	assert.Equal(t, models.TastingActive, active.Status)
	assert.Equal(t, realtime.TastingStatusPayload{Status: "active"}, f.rooms.last().Payload)

	rule, err := f.svc.GetScoringRule(ctx, tasting.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID, "activation stores the default rule")
	assert.Equal(t, config.DefaultScoringRule.DisplayCount, rule.DisplayCount)

	_, err = f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingDraft)
	assert.ErrorIs(t, err, ErrInvalidState, "no way back")
}

func TestAdvanceTasting_CompletionClosesRunningFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := scenarioRule
	tasting, flight, wines := f.startedTasting(&rule, scenarioWine)

	alice := f.user()
	_, err := f.svc.JoinTasting(ctx, alice, tasting.ID, "")
	require.NoError(t, err)
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitGuess(ctx, alice, tasting.ID, wines[0].ID, GuessInput{Vintage: str("2018")})
	require.NoError(t, err)

	f.rooms.reset()
	completed, err := f.svc.AdvanceTasting(ctx, f.host, tasting.ID, models.TastingCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TastingCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	assert.NotNil(t, f.reloadFlight(flight.ID).CompletedAt)
	assert.Equal(t, 1, f.participantScore(tasting.ID, alice.UserID))
	assert.Equal(t, []realtime.EventType{
		realtime.EventFlightCompleted,
		realtime.EventScoresUpdated,
		realtime.EventTastingStatus,
	}, f.rooms.types())
	require.Eventually(t, func() bool { return f.publisher.count(queue.TastingCompleted) == 1 }, time.Second, 5*time.Millisecond)

	_, err = f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartFlight_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, draftFlight, _ := f.draftTasting(scenarioWine)
	_, err := f.svc.StartFlight(ctx, f.host, draft.ID, draftFlight.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "tasting not started")

	tasting, flight, _ := f.startedTasting(nil, scenarioWine)
	second, err := f.svc.AddFlight(ctx, f.host, tasting.ID, FlightInput{TimeLimitSeconds: 120})
	require.NoError(t, err)

	_, err = f.svc.StartFlight(ctx, f.user(), tasting.ID, flight.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	f.rooms.reset()
	started, err := f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, []realtime.EventType{realtime.EventFlightStarted}, f.rooms.types())

	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "double start")
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, second.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "another flight running")

	_, err = f.svc.CompleteFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, realtime.FlightStartedPayload{FlightID: second.ID, TimeLimit: 120}, f.rooms.last().Payload)
	assert.Equal(t, 1, f.svc.timers.Len())
}

func TestGetTasting_BlindsOpenFlights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, flight, _ := f.startedTasting(nil, scenarioWine)
	guest := f.user()

	asGuest, err := f.svc.GetTasting(ctx, guest, tasting.ID)
	require.NoError(t, err)
	require.Len(t, asGuest.Flights, 1)
	require.Len(t, asGuest.Flights[0].Wines, 1)
	assert.Equal(t, "A", asGuest.Flights[0].Wines[0].LetterCode)
	assert.Empty(t, asGuest.Flights[0].Wines[0].Country)

	asHost, err := f.svc.GetTasting(ctx, f.host, tasting.ID)
	require.NoError(t, err)
	assert.Equal(t, "France", asHost.Flights[0].Wines[0].Country)
	require.NotNil(t, asHost.ScoringRule)

	_, err = f.svc.StartFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteFlight(ctx, f.host, tasting.ID, flight.ID)
	require.NoError(t, err)

	revealed, err := f.svc.GetTasting(ctx, guest, tasting.ID)
	require.NoError(t, err)
	assert.Equal(t, "France", revealed.Flights[0].Wines[0].Country)

	_, err = f.svc.GetTasting(ctx, guest, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScoringRule_GetAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasting, _, _ := f.draftTasting(scenarioWine)

	rule, err := f.svc.GetScoringRule(ctx, tasting.ID)
	require.NoError(t, err)
	assert.Empty(t, rule.ID, "default rule is not stored before activation")
	assert.Equal(t, config.DefaultScoringRule.Country, rule.Country)

	updated, err := f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, RuleInput{Country: 2, Varietals: 3, DisplayCount: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ID)

	again, err := f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, RuleInput{Country: 4, DisplayCount: 5})
	require.NoError(t, err)
	assert.Equal(t, updated.ID, again.ID)
	assert.Equal(t, 4, again.Country)
	assert.Zero(t, again.Varietals)
	assert.False(t, again.AnyVarietalPoint)

	_, err = f.svc.UpdateScoringRule(ctx, f.host, tasting.ID, RuleInput{Country: -1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.UpdateScoringRule(ctx, f.user(), tasting.ID, RuleInput{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.GetScoringRule(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
