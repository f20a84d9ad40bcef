package tastings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/services"
)

// [POST] CreateFlight
// @Summary Add a flight
// @Description Append a flight to a tasting. Its order index is the number of flights before it.
// @Tags Flights
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param flight body CreateFlightRequest true "Flight to create"
// @Success 201 {object} models.Flight
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/flights [post]
// @Security Bearer
func (h *Handler) CreateFlight(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CreateFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	flight, err := h.svc.AddFlight(c.Request.Context(), caller, c.Param("id"), services.FlightInput{
		Name:             req.Name,
		TimeLimitSeconds: req.TimeLimitSeconds,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedCreateFlight)
		return
	}

	c.JSON(http.StatusCreated, flight)
}

// [POST] AddWine
// @Summary Add a wine to a flight
// @Description Add a blind wine to a pending flight. Letters are assigned A, B, C... in insertion order.
// @Tags Flights
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param flightId path string true "Flight ID"
// @Param wine body AddWineRequest true "Wine identity"
// @Success 201 {object} models.Wine
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/flights/{flightId}/wines [post]
// @Security Bearer
func (h *Handler) AddWine(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req AddWineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	wine, err := h.svc.AddWine(c.Request.Context(), caller, c.Param("id"), c.Param("flightId"), services.WineInput{
		Country:   req.Country,
		Region:    req.Region,
		Producer:  req.Producer,
		Name:      req.Name,
		Vintage:   req.Vintage,
		Varietals: req.Varietals,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedAddWine)
		return
	}

	c.JSON(http.StatusCreated, wine)
}

// [POST] StartFlight
// @Summary Start a flight
// @Description Open a pending flight for guesses and arm its timer.
// @Tags Flights
// @Produce json
// @Param id path string true "Tasting ID"
// @Param flightId path string true "Flight ID"
// @Success 200 {object} models.Flight
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/flights/{flightId}/start [post]
// @Security Bearer
func (h *Handler) StartFlight(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	flight, err := h.svc.StartFlight(c.Request.Context(), caller, c.Param("id"), c.Param("flightId"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedStartFlight)
		return
	}

	c.JSON(http.StatusOK, flight)
}

// [POST] CompleteFlight
// @Summary Complete a flight
// @Description Close a running flight and grade every guess. Completing an already closed flight returns the stored result.
// @Tags Flights
// @Produce json
// @Param id path string true "Tasting ID"
// @Param flightId path string true "Flight ID"
// @Success 200 {object} services.FlightResult
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/flights/{flightId}/complete [post]
// @Security Bearer
func (h *Handler) CompleteFlight(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.CompleteFlight(c.Request.Context(), caller, c.Param("id"), c.Param("flightId"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedCompleteFlight)
		return
	}

	c.JSON(http.StatusOK, result)
}

// [PUT] SetFlightTimer
// @Summary Set the flight timer
// @Description Set the seconds remaining in a running flight. Zero removes the time limit.
// @Tags Flights
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param flightId path string true "Flight ID"
// @Param timer body SetTimerRequest true "Seconds remaining"
// @Success 200 {object} models.Flight
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/flights/{flightId}/timer [put]
// @Security Bearer
func (h *Handler) SetFlightTimer(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req SetTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	flight, err := h.svc.SetFlightTimer(c.Request.Context(), caller, c.Param("id"), c.Param("flightId"), *req.Seconds)
	if err != nil {
		respondWithServiceError(c, err, ErrFailedSetTimer)
		return
	}

	c.JSON(http.StatusOK, flight)
}
