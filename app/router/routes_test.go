package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/config"
	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandlers struct{}

func (echoHandlers) reply(name string) fiber.Handler {
	return func(c fiber.Ctx) error { return c.SendString(name) }
}

func (h echoHandlers) Create(c fiber.Ctx) error        { return h.reply("create")(c) }
func (h echoHandlers) Draw(c fiber.Ctx) error          { return h.reply("draw")(c) }
func (h echoHandlers) Finalize(c fiber.Ctx) error      { return h.reply("finalize")(c) }
func (h echoHandlers) FinalizeAuto(c fiber.Ctx) error  { return h.reply("finalize-auto")(c) }
func (h echoHandlers) Get(c fiber.Ctx) error           { return h.reply("get")(c) }
func (h echoHandlers) DailyOutcome(c fiber.Ctx) error  { return h.reply("session-daily")(c) }
func (h echoHandlers) History(c fiber.Ctx) error       { return h.reply("history")(c) }
func (h echoHandlers) ExportHistory(c fiber.Ctx) error { return h.reply("export")(c) }
func (h echoHandlers) TodayOutcome(c fiber.Ctx) error  { return h.reply("today")(c) }
func (h echoHandlers) Streaks(c fiber.Ctx) error       { return h.reply("streaks")(c) }
func (h echoHandlers) Statistics(c fiber.Ctx) error    { return h.reply("statistics")(c) }

func newTestRouter(t *testing.T, mutate func(*config.ProductionConfig), checks map[string]HealthCheck) *fiber.App {
	t.Helper()
	cfg := &config.ProductionConfig{}
	require.NoError(t, env.Parse(cfg))
	if mutate != nil {
		mutate(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewFiberRouter(cfg, logger, echoHandlers{}, echoHandlers{}, checks)
	r.SetupRoutes()
	return r.GetApp()
}

func call(t *testing.T, app *fiber.App, method, path string, owner string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if owner != "" {
		req.Header.Set("X-Owner-Key", owner)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestRoutes_Dispatch(t *testing.T) {
	app := newTestRouter(t, nil, nil)
	id := "6f1c2a8e-4b1d-4c55-9a47-0c1f4f0b9d21"

	cases := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/v1/sessions", "create"},
		{http.MethodPost, "/api/v1/sessions/" + id + "/draw", "draw"},
		{http.MethodPost, "/api/v1/sessions/" + id + "/finalize", "finalize"},
		{http.MethodPost, "/api/v1/sessions/" + id + "/finalize/auto", "finalize-auto"},
		{http.MethodGet, "/api/v1/sessions/" + id, "get"},
		{http.MethodGet, "/api/v1/sessions/" + id + "/daily-outcome", "session-daily"},
		{http.MethodGet, "/api/v1/sessions/history/list", "history"},
		{http.MethodGet, "/api/v1/sessions/history/export", "export"},
		{http.MethodGet, "/api/v1/daily-outcome/today", "today"},
		{http.MethodGet, "/api/v1/stats/streaks", "streaks"},
		{http.MethodGet, "/api/v1/stats/statistics", "statistics"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, body := call(t, app, tc.method, tc.path, "alice")
			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tc.want, body)
		})
	}
}

func TestRoutes_OwnerKeyRequired(t *testing.T) {
	app := newTestRouter(t, nil, nil)
	status, body := call(t, app, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "OWNER_KEY_REQUIRED")
}

func TestRoutes_ActionRateLimit(t *testing.T) {
	app := newTestRouter(t, func(cfg *config.ProductionConfig) { cfg.Game.ActionRateLimit = 2 }, nil)
	path := "/api/v1/sessions/6f1c2a8e-4b1d-4c55-9a47-0c1f4f0b9d21/draw"

	for range 2 {
		status, _ := call(t, app, http.MethodPost, path, "alice")
		require.Equal(t, fiber.StatusOK, status)
	}
	status, body := call(t, app, http.MethodPost, path, "alice")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Contains(t, body, "RATE_LIMIT_EXCEEDED")

	// budget is per owner key
	status, _ = call(t, app, http.MethodPost, path, "bob")
	assert.Equal(t, fiber.StatusOK, status)

	// reads are not part of the action budget
	status, _ = call(t, app, http.MethodGet, "/api/v1/stats/streaks", "alice")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoutes_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		app := newTestRouter(t, nil, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		status, body := call(t, app, http.MethodGet, "/health", "")
		assert.Equal(t, fiber.StatusOK, status)

		var resp dto.APIResponse
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		assert.True(t, resp.Success)
		checks := resp.Data.(map[string]any)["checks"].(map[string]any)
		assert.Equal(t, "up", checks["database"])
	})

	t.Run("Degraded", func(t *testing.T) {
		app := newTestRouter(t, nil, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		status, body := call(t, app, http.MethodGet, "/health", "")
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		assert.Contains(t, body, "SERVICE_DEGRADED")
		assert.Contains(t, body, `"redis":"down"`)
	})
}

func TestRoutes_MetricsAndNotFound(t *testing.T) {
	app := newTestRouter(t, nil, nil)

	status, body := call(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")

	status, body = call(t, app, http.MethodGet, "/api/v1/nope", "alice")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, body, "ENDPOINT_NOT_FOUND")
}

func TestCompressionLevel(t *testing.T) {
	assert.Equal(t, compress.LevelDefault, compressionLevel(0))
	assert.Equal(t, compress.LevelBestSpeed, compressionLevel(2))
	assert.Equal(t, compress.LevelBestCompression, compressionLevel(9))
}
