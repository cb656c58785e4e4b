package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/service"
	"github.com/tmshq/tms-go-api/internal/utils"
)

// ActivityHandler serves the activity feed, the badge head lookup and the
// admin-only manual audit entry.
type ActivityHandler struct {
	query    service.ActivityQueryService
	recorder service.ActivityRecorder
	logger   zerolog.Logger
}

// NewActivityHandler constructs the handler instance.
func NewActivityHandler(query service.ActivityQueryService, recorder service.ActivityRecorder, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		query:    query,
		recorder: recorder,
		logger:   logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the feed routes onto an authenticated group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/latest", h.latest)
}

// RegisterAdmin wires the manual entry route onto an admin-only group.
func (h *ActivityHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/", h.create)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	req := dto.ActivityListRequest{
		Limit:      limit,
		Offset:     offset,
		ActionType: c.Query("action_type"),
		EntityType: c.Query("entity_type"),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		Search:     c.Query("search"),
		Scope:      c.Query("scope"),
	}

	result, err := h.query.List(c.Context(), viewer, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) || isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to fetch activities")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activities")
	}

	return utils.SendSuccess(c, "activities retrieved", result)
}

func (h *ActivityHandler) latest(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	item, err := h.query.Latest(c.Context(), viewer)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to fetch latest activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch latest activity")
	}

	return utils.SendSuccess(c, "latest activity", item)
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	viewer := viewerFromContext(c)
	if viewer.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ActivityCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	entry, err := h.recorder.CreateManual(c.Context(), viewer, payload, requestMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) || isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create activity entry")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create activity entry")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity entry created", entry)
}
