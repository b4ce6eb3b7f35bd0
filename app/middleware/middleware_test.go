package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOwnerApp() *fiber.App {
	app := fiber.New()
	app.Use(RequireOwnerKey())
	app.Get("/whoami", func(c fiber.Ctx) error {
		return c.SendString(c.Locals(utils.OwnerKeyLocal).(string) + "|" + OwnerKeyOrIP(c))
	})
	return app
}

func TestRequireOwnerKey(t *testing.T) {
	t.Run("MissingHeader", func(t *testing.T) {
		resp, err := newOwnerApp().Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		var body dto.APIResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
		assert.Equal(t, "OWNER_KEY_REQUIRED", body.Error.Code)
	})

	t.Run("BlankHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(utils.OwnerKeyHeader, "   ")
		resp, err := newOwnerApp().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("KeyLength", func(t *testing.T) {
		atLimit := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		atLimit.Header.Set(utils.OwnerKeyHeader, " "+strings.Repeat("a", utils.OwnerKeyMaxLength)+" ")
		resp, err := newOwnerApp().Test(atLimit)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		tooLong := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		tooLong.Header.Set(utils.OwnerKeyHeader, strings.Repeat("a", utils.OwnerKeyMaxLength+1))
		resp, err = newOwnerApp().Test(tooLong)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		var body dto.APIResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotNil(t, body.Error)
		assert.Equal(t, "OWNER_KEY_TOO_LONG", body.Error.Code)
	})

	t.Run("TrimsAndStores", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(utils.OwnerKeyHeader, "  bob ")
		resp, err := newOwnerApp().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "bob|owner:bob", string(raw))
	})
}

func TestMetrics(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics("/health"))
	app.Get("/items/:id", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/health", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204"))
	for _, id := range []string{"1", "2"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.NoError(t, err)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204"))
	assert.Equal(t, float64(2), after-before)

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")))
}
