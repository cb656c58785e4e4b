package handler

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/service"
	"github.com/tmshq/tms-go-api/internal/utils"
)

// TaskHandler serves task lifecycle endpoints.
type TaskHandler struct {
	service         service.TaskService
	maxAttachmentKB int
	logger          zerolog.Logger
}

// NewTaskHandler constructs the handler instance.
func NewTaskHandler(service service.TaskService, maxAttachmentKB int, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		service:         service,
		maxAttachmentKB: maxAttachmentKB,
		logger:          logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register wires the task routes onto an authenticated group. Create and
// assign routes are registered separately so the router can restrict them.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Patch("/:id/status", h.updateStatus)
	router.Post("/:id/notes", h.addNote)
	router.Post("/:id/attachments", h.addAttachment)
}

// RegisterManaged wires the routes reserved for admins and managers.
func (h *TaskHandler) RegisterManaged(router fiber.Router) {
	router.Post("/", h.create)
	router.Patch("/:id/assign", h.assign)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.service.Create(c.Context(), viewer, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to create task")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) assign(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	taskID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.TaskAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.service.Assign(c.Context(), viewer, taskID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to assign task")
	}

	return utils.SendSuccess(c, "task assigned", task)
}

func (h *TaskHandler) updateStatus(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	taskID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.TaskStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.service.UpdateStatus(c.Context(), viewer, taskID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to update task status")
	}

	return utils.SendSuccess(c, "task status updated", task)
}

func (h *TaskHandler) addNote(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	taskID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.TaskNoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	note, err := h.service.AddNote(c.Context(), viewer, taskID, payload, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to add note")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "note added", note)
}

func (h *TaskHandler) addAttachment(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	taskID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	maxBytes := int64(h.maxAttachmentKB) * 1024
	if fileHeader.Size > maxBytes {
		return utils.SendError(c, fiber.StatusBadRequest, fmt.Sprintf("file exceeds %d KB limit", h.maxAttachmentKB))
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to open uploaded file")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read upload")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read uploaded file")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read upload")
	}
	if int64(len(content)) > maxBytes {
		return utils.SendError(c, fiber.StatusBadRequest, fmt.Sprintf("file exceeds %d KB limit", h.maxAttachmentKB))
	}

	attachment, err := h.service.AddAttachment(c.Context(), viewer, taskID, fileHeader.Filename, content, requestMeta(c))
	if err != nil {
		return h.fail(c, err, "failed to add attachment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attachment added", attachment)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	taskID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.service.Get(c.Context(), taskID)
	if err != nil {
		return h.fail(c, err, "failed to fetch task")
	}

	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) fail(c *fiber.Ctx, err error, msg string) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	}
	h.logger.Error().Err(err).Msg(msg)
	return utils.SendError(c, fiber.StatusInternalServerError, msg)
}
