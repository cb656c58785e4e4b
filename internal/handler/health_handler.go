package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tmshq/tms-go-api/internal/utils"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	appName string
	appEnv  string
}

// NewHealthHandler constructs the handler instance.
func NewHealthHandler(appName, appEnv string) *HealthHandler {
	return &HealthHandler{appName: appName, appEnv: appEnv}
}

// Register wires the health route.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.check)
}

func (h *HealthHandler) check(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "service healthy", fiber.Map{
		"app":    h.appName,
		"env":    h.appEnv,
		"status": "ok",
	})
}
