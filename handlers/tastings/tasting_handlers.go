package tastings

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viberl/BlindTasting-sub000/export"
	"github.com/viberl/BlindTasting-sub000/models"
	"github.com/viberl/BlindTasting-sub000/services"
)

// [POST] CreateTasting
// @Summary Create a tasting
// @Description Create a draft tasting hosted by the caller
// @Tags Tastings
// @Accept json
// @Produce json
// @Param tasting body CreateTastingRequest true "Tasting to create"
// @Success 201 {object} models.Tasting
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /tastings [post]
// @Security Bearer
func (h *Handler) CreateTasting(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req CreateTastingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	tasting, err := h.svc.CreateTasting(c.Request.Context(), caller, services.CreateTastingInput{
		Name:     req.Name,
		IsPublic: req.IsPublic,
		Password: req.Password,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedCreateTasting)
		return
	}

	c.JSON(http.StatusCreated, tasting)
}

// [GET] GetTasting
// @Summary Get a tasting
// @Description Get a tasting with its flights and scoring rule. Wines of open flights are hidden from everyone but the host.
// @Tags Tastings
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 200 {object} models.Tasting
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tastings/{id} [get]
// @Security Bearer
func (h *Handler) GetTasting(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	tasting, err := h.svc.GetTasting(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchTasting)
		return
	}

	c.JSON(http.StatusOK, tasting)
}

// [PUT] UpdateTastingStatus
// @Summary Advance a tasting
// @Description Move a tasting to its next status (draft, active, started, completed). Completing closes and grades the running flight.
// @Tags Tastings
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} models.Tasting
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tastings/{id}/status [put]
// @Security Bearer
func (h *Handler) UpdateTastingStatus(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}
	status := models.TastingStatus(req.Status)
	if !status.Valid() {
		respondWithError(c, http.StatusBadRequest, ErrInvalidStatus)
		return
	}

	tasting, err := h.svc.AdvanceTasting(c.Request.Context(), caller, c.Param("id"), status)
	if err != nil {
		respondWithServiceError(c, err, ErrFailedUpdateStatus)
		return
	}

	c.JSON(http.StatusOK, tasting)
}

// [GET] GetScoringRule
// @Summary Get the scoring rule
// @Tags Tastings
// @Produce json
// @Param id path string true "Tasting ID"
// @Success 200 {object} models.ScoringRule
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/scoring-rule [get]
// @Security Bearer
func (h *Handler) GetScoringRule(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	rule, err := h.svc.GetScoringRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedFetchRule)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// [PUT] UpdateScoringRule
// @Summary Replace the scoring rule
// @Description Stored corrections keep their intent and are re-evaluated against the new rule.
// @Tags Tastings
// @Accept json
// @Produce json
// @Param id path string true "Tasting ID"
// @Param rule body ScoringRuleRequest true "Points per attribute"
// @Success 200 {object} models.ScoringRule
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/scoring-rule [put]
// @Security Bearer
func (h *Handler) UpdateScoringRule(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req ScoringRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	rule, err := h.svc.UpdateScoringRule(c.Request.Context(), caller, c.Param("id"), services.RuleInput{
		Country:          req.Country,
		Region:           req.Region,
		Producer:         req.Producer,
		Name:             req.Name,
		Vintage:          req.Vintage,
		Varietals:        req.Varietals,
		AnyVarietalPoint: req.AnyVarietalPoint,
		DisplayCount:     req.DisplayCount,
	})
	if err != nil {
		respondWithServiceError(c, err, ErrFailedUpdateRule)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// [GET] ExportTasting
// @Summary Export tasting results
// @Description Download the leaderboard and every graded guess, with the wines revealed, as an xlsx workbook.
// @Tags Tastings
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Tasting ID"
// @Success 200 {file} file
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tastings/{id}/export [get]
// @Security Bearer
func (h *Handler) ExportTasting(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	results, err := h.svc.TastingResults(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, ErrFailedExport)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, results); err != nil {
		h.logger.Error("failed to render results workbook", "tasting_id", results.Tasting.ID, "error", err)
		respondWithError(c, http.StatusInternalServerError, ErrFailedExport)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="tasting-%s.xlsx"`, results.Tasting.ID))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
