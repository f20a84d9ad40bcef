package tastings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/middleware"
	"github.com/viberl/BlindTasting-sub000/services"
)

// Error messages returned to clients
const (
	ErrInvalidRequest       = "Invalid request data"
	ErrInvalidStatus        = "Unknown tasting status"
	ErrFailedCreateTasting  = "Failed to create tasting"
	ErrFailedFetchTasting   = "Failed to fetch tasting"
	ErrFailedUpdateStatus   = "Failed to update tasting status"
	ErrFailedFetchRule      = "Failed to fetch scoring rule"
	ErrFailedUpdateRule     = "Failed to update scoring rule"
	ErrFailedCreateFlight   = "Failed to create flight"
	ErrFailedAddWine        = "Failed to add wine"
	ErrFailedStartFlight    = "Failed to start flight"
	ErrFailedCompleteFlight = "Failed to complete flight"
	ErrFailedSetTimer       = "Failed to set flight timer"
	ErrFailedJoin           = "Failed to join tasting"
	ErrFailedLeave          = "Failed to leave tasting"
	ErrFailedFetchPeople    = "Failed to fetch participants"
	ErrFailedFetchBoard     = "Failed to fetch leaderboard"
	ErrFailedSubmitGuess    = "Failed to submit guess"
	ErrFailedFetchGuesses   = "Failed to fetch guesses"
	ErrFailedOverride       = "Failed to override guess"
	ErrFailedFetchBreakdown = "Failed to fetch guess breakdown"
	ErrUnknownSocketMessage = "Unknown message type"
	ErrMalformedSocketFrame = "Malformed message"
	ErrFailedSocketSnapshot = "Failed to build snapshot"
	ErrFailedExport         = "Failed to export results"
)

// CreateTastingRequest creates a draft tasting
type CreateTastingRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	IsPublic bool   `json:"is_public"`
	Password string `json:"password"`
}

// UpdateStatusRequest moves a tasting to its next status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ScoringRuleRequest replaces the points awarded per attribute
type ScoringRuleRequest struct {
	Country          int  `json:"country" binding:"min=0"`
	Region           int  `json:"region" binding:"min=0"`
	Producer         int  `json:"producer" binding:"min=0"`
	Name             int  `json:"name" binding:"min=0"`
	Vintage          int  `json:"vintage" binding:"min=0"`
	Varietals        int  `json:"varietals" binding:"min=0"`
	AnyVarietalPoint bool `json:"any_varietal_point"`
	DisplayCount     int  `json:"display_count" binding:"min=0"`
}

// CreateFlightRequest appends a flight to a tasting
type CreateFlightRequest struct {
	Name             string `json:"name"`
	TimeLimitSeconds int    `json:"time_limit_seconds" binding:"min=0"`
}

// AddWineRequest adds a blind wine to a pending flight
type AddWineRequest struct {
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	Producer  string   `json:"producer"`
	Name      string   `json:"name"`
	Vintage   string   `json:"vintage"`
	Varietals []string `json:"varietals"`
}

// SetTimerRequest sets the seconds remaining in a running flight, zero to disarm
type SetTimerRequest struct {
	Seconds *int `json:"seconds" binding:"required"`
}

// JoinRequest carries the password of a private tasting
type JoinRequest struct {
	Password string `json:"password"`
}

// GuessRequest is a partial guess. Omitted fields keep their earlier value.
type GuessRequest struct {
	Country   *string  `json:"country"`
	Region    *string  `json:"region"`
	Producer  *string  `json:"producer"`
	Name      *string  `json:"name"`
	Vintage   *string  `json:"vintage"`
	Varietals []string `json:"varietals"`
}

// OverrideRequest is the full set of attributes to flip on a graded guess
type OverrideRequest struct {
	Toggles []string `json:"toggles"`
	Reason  string   `json:"reason" binding:"max=500"`
}

// clientFrame is a message sent by a websocket client
type clientFrame struct {
	Type string `json:"type"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondWithServiceError maps a service error to its HTTP status. Domain
// errors carry a message meant for the client; anything else is logged and
// answered with fallback.
func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		respondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		respondWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrValidation):
		respondWithError(c, http.StatusBadRequest, err.Error())
	default:
		slog.Error(fallback, "path", c.FullPath(), "error", err)
		respondWithError(c, http.StatusInternalServerError, fallback)
	}
}

// callerFrom turns the token identity into a service caller
func callerFrom(user *middleware.User) services.Caller {
	return services.Caller{UserID: user.ID, Reviewer: user.HasRole(middleware.ReviewerRole)}
}

// requireCaller authenticates the request. On failure the response is
// already written and ok is false.
func requireCaller(c *gin.Context) (caller services.Caller, ok bool) {
	user, err := middleware.GetUserFromRequest(c)
	if err != nil {
		return services.Caller{}, false
	}
	return callerFrom(user), true
}
