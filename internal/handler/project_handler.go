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

// ProjectHandler serves project lifecycle endpoints.
type ProjectHandler struct {
	service service.ProjectService
	logger  zerolog.Logger
}

// NewProjectHandler constructs the handler instance.
func NewProjectHandler(service service.ProjectService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		service: service,
		logger:  logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register wires the project routes onto a restricted group.
func (h *ProjectHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Put("/:id", h.update)
	router.Patch("/:id/status", h.changeStatus)
	router.Post("/:id/members", h.addMember)
}

func (h *ProjectHandler) create(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ProjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.service.Create(c.Context(), viewer, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to create project")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project created", project)
}

func (h *ProjectHandler) update(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	projectID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project id")
	}

	var payload dto.ProjectUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.service.Update(c.Context(), viewer, projectID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to update project")
	}

	return utils.SendSuccess(c, "project updated", project)
}

func (h *ProjectHandler) changeStatus(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	projectID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project id")
	}

	var payload dto.ProjectStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.service.ChangeStatus(c.Context(), viewer, projectID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to change project status")
	}

	return utils.SendSuccess(c, "project status updated", project)
}

func (h *ProjectHandler) addMember(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	projectID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project id")
	}

	var payload dto.ProjectMemberRequest
	if err := c.BodyParser(&payload); err != nil || payload.UserID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.AddMember(c.Context(), viewer, projectID, payload.UserID, requestMeta(c)); err != nil {
		return h.fail(c, err, "failed to add member")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "member added", nil)
}

func (h *ProjectHandler) fail(c *fiber.Ctx, err error, msg string) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, "project not found")
	}
	h.logger.Error().Err(err).Msg(msg)
	return utils.SendError(c, fiber.StatusInternalServerError, msg)
}
