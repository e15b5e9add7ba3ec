package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200
)

// AdminActivityHandler exposes the enrollment audit trail: decisions, drops,
// promotions and capacity snapshots.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches audit routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/courses/:courseId", h.listForCourse)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	req, err := activityListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	courseID, err := parseQueryInt(c, "course_id")
	if err != nil || courseID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}
	if courseID > 0 {
		req.EntityType = service.ActivityEntityCourse
		req.EntityID = uint(courseID)
	}
	return h.respond(c, req)
}

// listForCourse returns one course's enrollment history, newest first.
func (h *AdminActivityHandler) listForCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	req, err := activityListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	req.EntityType = service.ActivityEntityCourse
	req.EntityID = courseID
	return h.respond(c, req)
}

func (h *AdminActivityHandler) respond(c *fiber.Ctx, req dto.ActivityListRequest) error {
	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activity logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activity logs")
	}
	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

func activityListRequest(c *fiber.Ctx) (dto.ActivityListRequest, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil || page < 0 {
		return dto.ActivityListRequest{}, errors.New("invalid page")
	}
	if page == 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil || pageSize < 0 {
		return dto.ActivityListRequest{}, errors.New("invalid page_size")
	}
	switch {
	case pageSize == 0:
		pageSize = defaultActivityPageSize
	case pageSize > maxActivityPageSize:
		pageSize = maxActivityPageSize
	}

	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil || actorID < 0 {
		return dto.ActivityListRequest{}, errors.New("invalid actor_id")
	}

	return dto.ActivityListRequest{
		Page:          page,
		PageSize:      pageSize,
		ActorID:       uint(actorID),
		Action:        c.Query("action"),
		EntityType:    c.Query("entity_type"),
		CorrelationID: strings.TrimSpace(c.Query("correlation_id")),
	}, nil
}
