package tastings

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/middleware"
	"github.com/viberl/BlindTasting-sub000/services"
)

// Handler serves the tasting endpoints on top of a SessionService
type Handler struct {
	svc    *services.SessionService
	logger *slog.Logger
}

// NewHandler returns a Handler. A nil logger means slog.Default().
func NewHandler(svc *services.SessionService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger.With("component", "tastings")}
}

// RegisterRoutes registers all routes related to tastings
// r: the RouterGroup to which the routes are added
// secret: HMAC secret used to verify bearer tokens
func RegisterRoutes(r *gin.RouterGroup, h *Handler, secret string) {
	tastings := r.Group("/tastings")
	tastings.Use(middleware.AuthMiddleware(secret))
	{
		// Session setup
		tastings.POST("", h.CreateTasting)
		tastings.GET("/:id", h.GetTasting)
		tastings.PUT("/:id/status", h.UpdateTastingStatus)
		tastings.GET("/:id/scoring-rule", h.GetScoringRule)
		tastings.PUT("/:id/scoring-rule", h.UpdateScoringRule)
		tastings.GET("/:id/export", h.ExportTasting)

		// Flights
		tastings.POST("/:id/flights", h.CreateFlight)
		tastings.POST("/:id/flights/:flightId/wines", h.AddWine)
		tastings.POST("/:id/flights/:flightId/start", h.StartFlight)
		tastings.POST("/:id/flights/:flightId/complete", h.CompleteFlight)
		tastings.PUT("/:id/flights/:flightId/timer", h.SetFlightTimer)

		// Participants
		tastings.POST("/:id/join", h.JoinTasting)
		tastings.POST("/:id/leave", h.LeaveTasting)
		tastings.GET("/:id/participants", h.ListParticipants)
		tastings.GET("/:id/leaderboard", h.Leaderboard)

		// Guesses and corrections
		tastings.PUT("/:id/wines/:wineId/guess", h.SubmitGuess)
		tastings.GET("/:id/guesses", h.ListGuesses)
		tastings.PUT("/:id/guesses/:guessId/override", h.OverrideGuess)
		tastings.GET("/:id/guesses/:guessId/breakdown", h.GetGuessBreakdown)

		// Realtime channel
		tastings.GET("/:id/ws", h.TastingWebSocket)
	}
}
