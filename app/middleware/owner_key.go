// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"strings"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/utils"
	"github.com/gofiber/fiber/v3"
)

// RequireOwnerKey rejects requests without an X-Owner-Key header or with one
// longer than utils.OwnerKeyMaxLength, and stores the trimmed key in locals for the handlers.
func RequireOwnerKey() fiber.Handler {
	return func(c fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(utils.OwnerKeyHeader))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
				Success: false,
				Message: "Owner key is required",
				Error: &dto.ErrorDetail{
					Code:    "OWNER_KEY_REQUIRED",
					Message: "Header " + utils.OwnerKeyHeader + " is missing or blank",
				},
			})
		}

		if len(key) > utils.OwnerKeyMaxLength {
			return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
				Success: false,
				Message: "Owner key is too long",
				Error: &dto.ErrorDetail{
					Code:    "OWNER_KEY_TOO_LONG",
					Message: "Header " + utils.OwnerKeyHeader + " must be at most " + strconv.Itoa(utils.OwnerKeyMaxLength) + " bytes",
				},
			})
		}

		c.Locals(utils.OwnerKeyLocal, key)
		return c.Next()
	}
}

// OwnerKeyOrIP is a limiter key generator: the owner key when present, the client IP otherwise
func OwnerKeyOrIP(c fiber.Ctx) string {
	if key, ok := c.Locals(utils.OwnerKeyLocal).(string); ok && key != "" {
		return "owner:" + key
	}
	return "ip:" + c.IP()
}
