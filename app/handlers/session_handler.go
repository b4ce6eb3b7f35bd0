package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/amirphl/Omikuji/app/dto"
	businessflow "github.com/amirphl/Omikuji/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SessionHandlerInterface defines the contract for session handlers
type SessionHandlerInterface interface {
	Create(c fiber.Ctx) error
	Draw(c fiber.Ctx) error
	Finalize(c fiber.Ctx) error
	FinalizeAuto(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	DailyOutcome(c fiber.Ctx) error
	History(c fiber.Ctx) error
	ExportHistory(c fiber.Ctx) error
}

// SessionHandler handles session lifecycle HTTP requests
type SessionHandler struct {
	baseHandler
	sessionFlow  businessflow.SessionFlow
	drawFlow     businessflow.DrawFlow
	finalizeFlow businessflow.FinalizeFlow
	dailyFlow    businessflow.DailyOutcomeFlow
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessionFlow businessflow.SessionFlow,
	drawFlow businessflow.DrawFlow,
	finalizeFlow businessflow.FinalizeFlow,
	dailyFlow businessflow.DailyOutcomeFlow,
) *SessionHandler {
	return &SessionHandler{
		baseHandler:  baseHandler{validator: validator.New()},
		sessionFlow:  sessionFlow,
		drawFlow:     drawFlow,
		finalizeFlow: finalizeFlow,
		dailyFlow:    dailyFlow,
	}
}

// Create Session
// @Summary Start a new draw session
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Success 201 {object} dto.APIResponse{data=dto.CreateSessionResponse} "Session created"
// @Failure 400 {object} dto.APIResponse "Owner key missing"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/sessions [post]
func (h *SessionHandler) Create(c fiber.Ctx) error {
	req := dto.CreateSessionRequest{OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions")
	defer cancel()

	result, err := h.sessionFlow.CreateSession(ctx, &req, h.metadata(c, "/api/v1/sessions"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to create session")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// Draw Card
// @Summary Draw the next card of a session
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param id path string true "Session ID"
// @Success 201 {object} dto.APIResponse{data=dto.DrawCardResponse} "Card drawn"
// @Failure 400 {object} dto.APIResponse "Session finalized or draw limit reached"
// @Failure 403 {object} dto.APIResponse "Session belongs to another owner"
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Failure 409 {object} dto.APIResponse "Concurrent draw"
// @Router /api/v1/sessions/{id}/draw [post]
func (h *SessionHandler) Draw(c fiber.Ctx) error {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session ID must be a UUID", "INVALID_SESSION_ID", nil)
	}
	req := dto.DrawCardRequest{SessionID: sessionID, OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/:id/draw")
	defer cancel()

	result, err := h.drawFlow.DrawCard(ctx, &req, h.metadata(c, "/api/v1/sessions/:id/draw"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to draw card")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Card drawn", result)
}

// Finalize Session
// @Summary Finalize a session with a chosen card
// @Description The card at pick_index (0-4) becomes the final card. A missing or non-integer pick_index is rejected; use /finalize/auto for a random pick.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param id path string true "Session ID"
// @Param request body dto.FinalizeSessionRequest true "Pick index (0-4)"
// @Success 200 {object} dto.APIResponse{data=dto.FinalizeSessionResponse} "Session finalized"
// @Failure 400 {object} dto.APIResponse "Invalid pick, not enough cards or already finalized"
// @Failure 403 {object} dto.APIResponse "Session belongs to another owner"
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Failure 409 {object} dto.APIResponse "Concurrent finalize"
// @Router /api/v1/sessions/{id}/finalize [post]
func (h *SessionHandler) Finalize(c fiber.Ctx) error {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session ID must be a UUID", "INVALID_SESSION_ID", nil)
	}

	var req dto.FinalizeSessionRequest
	if len(strings.TrimSpace(string(c.Body()))) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field == "pick_index" {
				return h.handleFlowError(c, businessflow.ErrInvalidPickIndex, "Failed to finalize session")
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.SessionID = sessionID
	req.OwnerKey = ownerKey(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/:id/finalize")
	defer cancel()
	metadata := h.metadata(c, "/api/v1/sessions/:id/finalize")

	result, err := h.finalizeFlow.FinalizeWithPick(ctx, &req, metadata)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to finalize session")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// FinalizeAuto Session
// @Summary Finalize a session with a randomly chosen card
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param id path string true "Session ID"
// @Success 200 {object} dto.APIResponse{data=dto.FinalizeSessionResponse} "Session finalized"
// @Failure 400 {object} dto.APIResponse "Not enough cards or already finalized"
// @Failure 403 {object} dto.APIResponse "Session belongs to another owner"
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Router /api/v1/sessions/{id}/finalize/auto [post]
func (h *SessionHandler) FinalizeAuto(c fiber.Ctx) error {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session ID must be a UUID", "INVALID_SESSION_ID", nil)
	}
	req := dto.FinalizeSessionRequest{SessionID: sessionID, OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/:id/finalize/auto")
	defer cancel()

	result, err := h.finalizeFlow.FinalizeWithDailyCheck(ctx, &req, h.metadata(c, "/api/v1/sessions/:id/finalize/auto"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to finalize session")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Get Session
// @Summary Get a session with its cards
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param id path string true "Session ID"
// @Success 200 {object} dto.APIResponse{data=dto.GetSessionResponse} "Session retrieved"
// @Failure 403 {object} dto.APIResponse "Session unknown or owned by someone else"
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) Get(c fiber.Ctx) error {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session ID must be a UUID", "INVALID_SESSION_ID", nil)
	}
	req := dto.GetSessionRequest{SessionID: sessionID, OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/:id")
	defer cancel()

	result, err := h.sessionFlow.GetSession(ctx, &req, h.metadata(c, "/api/v1/sessions/:id"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve session")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session retrieved successfully", result)
}

// DailyOutcome returns the ledger entry recorded by a session, if any
// @Summary Get the daily outcome recorded by a session
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param id path string true "Session ID"
// @Success 200 {object} dto.APIResponse{data=dto.DailyOutcomeResponse} "Daily outcome (null when the session was casual)"
// @Failure 403 {object} dto.APIResponse "Session belongs to another owner"
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Router /api/v1/sessions/{id}/daily-outcome [get]
func (h *SessionHandler) DailyOutcome(c fiber.Ctx) error {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session ID must be a UUID", "INVALID_SESSION_ID", nil)
	}
	req := dto.GetSessionRequest{SessionID: sessionID, OwnerKey: ownerKey(c)}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/:id/daily-outcome")
	defer cancel()

	result, err := h.dailyFlow.GetSessionDailyOutcome(ctx, &req, h.metadata(c, "/api/v1/sessions/:id/daily-outcome"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve daily outcome")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Daily outcome retrieved successfully", result)
}

// History lists finalized sessions
// @Summary List finalized sessions, newest first
// @Tags Sessions
// @Produce json
// @Param X-Owner-Key header string true "Owner key"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 10, max 50)"
// @Param official query bool false "Filter by official flag"
// @Success 200 {object} dto.APIResponse{data=dto.SessionHistoryResponse} "History retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid query parameters"
// @Router /api/v1/sessions/history/list [get]
func (h *SessionHandler) History(c fiber.Ctx) error {
	req := dto.SessionHistoryRequest{OwnerKey: ownerKey(c), Page: 1, Limit: 10}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "page must be an integer", "INVALID_QUERY", nil)
		}
		req.Page = page
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "limit must be an integer", "INVALID_QUERY", nil)
		}
		req.Limit = limit
	}
	official, err := parseOfficialQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "official must be true or false", "INVALID_QUERY", nil)
	}
	req.Official = official

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/history/list")
	defer cancel()

	result, err := h.sessionFlow.GetSessionHistory(ctx, &req, h.metadata(c, "/api/v1/sessions/history/list"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to retrieve session history")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session history retrieved successfully", result)
}

// ExportHistory downloads finalized sessions as an xlsx workbook
// @Summary Export session history
// @Tags Sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param X-Owner-Key header string true "Owner key"
// @Param official query bool false "Filter by official flag"
// @Success 200 {file} file "History workbook"
// @Failure 400 {object} dto.APIResponse "Invalid query parameters"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/sessions/history/export [get]
func (h *SessionHandler) ExportHistory(c fiber.Ctx) error {
	official, err := parseOfficialQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "official must be true or false", "INVALID_QUERY", nil)
	}
	req := dto.ExportSessionHistoryRequest{OwnerKey: ownerKey(c), Official: official}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sessions/history/export")
	defer cancel()

	result, err := h.sessionFlow.ExportSessionHistory(ctx, &req, h.metadata(c, "/api/v1/sessions/history/export"))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to export session history")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+result.Filename)
	return c.Send(result.Content)
}

func parseOfficialQuery(c fiber.Ctx) (*bool, error) {
	v := strings.TrimSpace(c.Query("official"))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
