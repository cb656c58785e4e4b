package middleware_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/tmshq/tms-go-api/internal/middleware"
)

func newCORSApp(t *testing.T, cfg middleware.Config) *fiber.App {
	t.Helper()

	app := fiber.New()
	middleware.Register(app, cfg)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	return app
}

func TestCORSUsesConfiguredOrigins(t *testing.T) {
	app := newCORSApp(t, middleware.Config{AllowOrigins: "https://tms.example.com"})

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://tms.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "https://tms.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	app := newCORSApp(t, middleware.Config{})

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://tms.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
