// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/Omikuji/app/dto"
	businessflow "github.com/amirphl/Omikuji/business_flow"
	"github.com/amirphl/Omikuji/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// validationDetails flattens validator errors into field messages
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, getValidationErrorMessage(e))
	}
	return out
}

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext creates a context with timeout and request-scoped values.
// The caller must invoke the returned cancel func.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), utils.RequestTimeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, utils.RequestTimeout)
	ctx = context.WithValue(ctx, utils.OwnerKeyKey, ownerKey(c))

	return ctx, cancel
}

func requestID(c fiber.Ctx) string {
	if rid := requestid.FromContext(c); rid != "" {
		return rid
	}
	return c.Get(fiber.HeaderXRequestID)
}

func (h *baseHandler) metadata(c fiber.Ctx, endpoint string) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestID(c))
	md.SetEndpoint(endpoint)
	return md
}

// ownerKey reads the key stored by the owner-key middleware, falling back to the raw header
func ownerKey(c fiber.Ctx) string {
	if key, ok := c.Locals(utils.OwnerKeyLocal).(string); ok {
		return key
	}
	return strings.TrimSpace(c.Get(utils.OwnerKeyHeader))
}

// sessionIDParam returns the :id path parameter when it is a UUID
func sessionIDParam(c fiber.Ctx) (string, bool) {
	raw := strings.TrimSpace(c.Params("id"))
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}

// handleFlowError maps business flow errors to HTTP responses
func (h *baseHandler) handleFlowError(c fiber.Ctx, err error, fallbackMessage string) error {
	switch {
	case businessflow.IsOwnerKeyRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Owner key is required", "OWNER_KEY_REQUIRED", nil)
	case businessflow.IsSessionNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", nil)
	case businessflow.IsForbidden(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access to this session is forbidden", "FORBIDDEN", nil)
	case businessflow.IsSessionFinalized(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Session is already finalized", "SESSION_FINALIZED", nil)
	case businessflow.IsDrawLimitReached(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Maximum of 5 cards reached", "DRAW_LIMIT_REACHED", nil)
	case businessflow.IsInvalidPickIndex(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "pick_index must be between 0 and 4", "INVALID_PICK_INDEX", nil)
	case businessflow.IsNeed5Cards(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "You must draw 5 cards before finalizing", "NEED_5_CARDS", nil)
	case businessflow.IsInvalidCardIndex(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "No card at this index", "INVALID_CARD_INDEX", nil)
	case businessflow.IsAlreadyPlayedToday(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Today's official card was already chosen", "ALREADY_PLAYED_TODAY", nil)
	case businessflow.IsConflict(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Concurrent update, please retry", "CONFLICT", nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, "INTERNAL_ERROR", nil)
}
