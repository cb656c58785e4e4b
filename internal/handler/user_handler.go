package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/service"
	"github.com/tmshq/tms-go-api/internal/utils"
)

// UserHandler serves account management, admin only.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler instance.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires the user routes onto an admin-only group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Put("/:id", h.update)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Create(c.Context(), viewer, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to create user")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	userID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Update(c.Context(), viewer, userID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to update user")
	}

	return utils.SendSuccess(c, "user updated", user)
}

func (h *UserHandler) fail(c *fiber.Ctx, err error, msg string) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	}
	h.logger.Error().Err(err).Msg(msg)
	return utils.SendError(c, fiber.StatusInternalServerError, msg)
}
