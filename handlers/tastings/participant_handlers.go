package tastings

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// [POST] JoinTasting
// @Summary Join a tasting
// @Description Join an active or started tasting. Joining twice is a no-op; joining after leaving rejoins with the earlier score.
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param join body JoinRequest false "Password of a private tasting"
// @Success 200 {object} models.Participant
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/join [post]
// @Security Bearer
func (h *Handler) JoinTasting(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
			return
		}
	}

	participant, err := h.svc.JoinTasting(c.Request.Context(), caller, c.Param("id"), req.Password)
	if err != nil {
		respondWithServiceError(c, err, ErrFailedJoin)
		return
	}

	c.JSON(http.StatusOK, participant)
}

// [POST] LeaveTasting
// @Summary Leave a tasting
// @Tags Participants
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/leave [post]
// @Security Bearer
func (h *Handler) LeaveTasting(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	if err := h.svc.LeaveTasting(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondWithServiceError(c, err, ErrFailedLeave)
		return
	}

	c.Status(http.StatusNoContent)
}

// [GET] ListParticipants
// @Summary List present participants
// @Tags Participants
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 200 {array} realtime.ParticipantView
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/participants [get]
// @Security Bearer
func (h *Handler) ListParticipants(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	participants, err := h.svc.ListParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchPeople)
		return
	}

	c.JSON(http.StatusOK, participants)
}

// [GET] Leaderboard
// @Summary Get the leaderboard
// @Description Ranked scores, truncated to the display count of the scoring rule.
// @Tags Participants
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 200 {array} services.LeaderboardEntry
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/leaderboard [get]
// @Security Bearer
func (h *Handler) Leaderboard(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	entries, err := h.svc.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchBoard)
		return
	}

	c.JSON(http.StatusOK, entries)
}
