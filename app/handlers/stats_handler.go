package handlers

import (
	"github.com/amirphl/Omikuji/app/dto"
	businessflow "github.com/amirphl/Omikuji/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// StatsHandlerInterface defines the contract for stats handlers
type StatsHandlerInterface interface {
	TodayOutcome(c fiber.Ctx) error
	Streaks(c fiber.Ctx) error
	Statistics(c fiber.Ctx) error
}

// StatsHandler serves the daily ledger and per-owner statistics
type StatsHandler struct {
	baseHandler
	statsFlow businessflow.StatsFlow
	dailyFlow businessflow.DailyOutcomeFlow
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow, dailyFlow businessflow.DailyOutcomeFlow) *StatsHandler {
	return &StatsHandler{
		baseHandler: baseHandler{validator: validator.New()},
		statsFlow:   statsFlow,
		dailyFlow:   dailyFlow,
	}
}

// TodayOutcome Get
// @Summary Get today's official card
// @Tags Daily
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Success 200 {object} dto.APIResponse{data=dto.DailyOutcomeResponse} "Today's outcome (null when not played yet)"
// @Failure 400 {object} dto.APIResponse "Owner key missing"
// @Router /api/v1/daily-outcome/today [get]
func (h *StatsHandler) TodayOutcome(c fiber.Ctx) error {
	req := dto.OwnerRequest{OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/daily-outcome/today")
	defer cancel()

	result, err := h.dailyFlow.GetTodayOutcome(ctx, &req, h.metadata(c, "/api/v1/daily-outcome/today"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve today's outcome")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Today's outcome retrieved successfully", result)
}

// Streaks Get
// @Summary Get play streaks
// @Tags Stats
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Success 200 {object} dto.APIResponse{data=dto.StreaksResponse} "Streaks retrieved"
// @Router /api/v1/stats/streaks [get]
func (h *StatsHandler) Streaks(c fiber.Ctx) error {
	req := dto.OwnerRequest{OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/stats/streaks")
	defer cancel()

	result, err := h.statsFlow.GetStreaks(ctx, &req, h.metadata(c, "/api/v1/stats/streaks"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve streaks")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Streaks retrieved successfully", result)
}

// Statistics Get
// @Summary Get aggregated statistics
// @Tags Stats
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Success 200 {object} dto.APIResponse{data=dto.StatisticsResponse} "Statistics retrieved"
// @Router /api/v1/stats/statistics [get]
func (h *StatsHandler) Statistics(c fiber.Ctx) error {
	req := dto.OwnerRequest{OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/stats/statistics")
	defer cancel()

	result, err := h.statsFlow.GetStatistics(ctx, &req, h.metadata(c, "/api/v1/stats/statistics"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve statistics")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}
