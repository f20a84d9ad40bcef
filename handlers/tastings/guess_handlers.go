package tastings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/services"
)

// [PUT] SubmitGuess
// @Summary Submit a guess
// @Description Create or update the caller's guess for a wine of the running flight. Omitted fields keep their earlier value.
// @Tags Guesses
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param wineId path string true "Wine ID"
// @Param guess body GuessRequest true "Guess fields"
// @Success 200 {object} models.Guess
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/wines/{wineId}/guess [put]
// @Security Bearer
func (h *Handler) SubmitGuess(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req GuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	guess, err := h.svc.SubmitGuess(c.Request.Context(), caller, c.Param("id"), c.Param("wineId"), services.GuessInput{
		Country:   req.Country,
		Region:    req.Region,
		Producer:  req.Producer,
		Name:      req.Name,
		Vintage:   req.Vintage,
		Varietals: req.Varietals,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedSubmitGuess)
		return
	}

	c.JSON(http.StatusOK, guess)
}

// [GET] ListGuesses
// @Summary List the caller's guesses
// @Tags Guesses
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 200 {array} models.Guess
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/guesses [get]
// @Security Bearer
func (h *Handler) ListGuesses(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	guesses, err := h.svc.ListGuesses(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchGuesses)
		return
	}

	c.JSON(http.StatusOK, guesses)
}

// [PUT] OverrideGuess
// @Summary Correct a graded guess
// @Description Store the attributes the host wants flipped on a guess. The request is idempotent; an empty toggle list removes the correction.
// @Tags Guesses
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param guessId path string true "Guess ID"
// @Param override body OverrideRequest true "Attributes to flip"
// @Success 200 {object} services.OverrideResult
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/guesses/{guessId}/override [put]
// @Security Bearer
func (h *Handler) OverrideGuess(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	result, err := h.svc.OverrideGuess(c.Request.Context(), caller, c.Param("id"), c.Param("guessId"), services.OverrideInput{
		Toggles: req.Toggles,
		Reason:  req.Reason,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedOverride)
		return
	}

	c.JSON(http.StatusOK, result)
}

// [GET] GetGuessBreakdown
// @Summary Get the scoring breakdown of a guess
// @Tags Guesses
// @Produce json
// @Param id path string true "Tasting ID"
// @Param guessId path string true "Guess ID"
// @Success 200 {object} services.GuessBreakdown
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/guesses/{guessId}/breakdown [get]
// @Security Bearer
func (h *Handler) GetGuessBreakdown(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	breakdown, err := h.svc.GetGuessBreakdown(c.Request.Context(), caller, c.Param("id"), c.Param("guessId"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchBreakdown)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}
