package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// CourseHandler exposes seat availability and course analytics.
type CourseHandler struct {
	capacity  service.CapacityService
	analytics service.CourseAnalyticsService
	logger    zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(capacity service.CapacityService, analytics service.CourseAnalyticsService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		capacity:  capacity,
		analytics: analytics,
		logger:    logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register binds the public course routes.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("/:courseId/availability", h.availability)
}

// RegisterAnalytics binds the analytics routes behind guard.
func (h *CourseHandler) RegisterAnalytics(router fiber.Router, guard fiber.Handler) {
	if guard == nil {
		guard = func(c *fiber.Ctx) error { return c.Next() }
	}
	router.Get("/:courseId/analytics/trends", guard, h.trends)
	router.Get("/:courseId/analytics/success-rates", guard, h.successRates)
	router.Get("/:courseId/analytics/at-risk", guard, h.atRisk)
	router.Get("/:courseId/analytics/capacity", guard, h.capacityUtilization)
	router.Post("/:courseId/analytics/capacity-snapshots", guard, h.recordSnapshot)
}

func (h *CourseHandler) availability(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.capacity.GetAvailability(requestContext(c), courseID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load availability")
	}

	return utils.SendSuccess(c, "seat availability", status)
}

func (h *CourseHandler) trends(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	years, err := parseQueryInt(c, "years")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid years")
	}

	report, err := h.analytics.EnrollmentTrends(requestContext(c), courseID, years)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load enrollment trends")
	}

	return utils.SendSuccess(c, "enrollment trends", report)
}

func (h *CourseHandler) successRates(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.analytics.SuccessRates(requestContext(c), courseID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load success rates")
	}

	return utils.SendSuccess(c, "success rates", report)
}

func (h *CourseHandler) atRisk(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	year, err := parseQueryInt(c, "academic_year")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid academic year")
	}

	report, err := h.analytics.AtRiskStudents(requestContext(c), courseID, year, c.Query("semester"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load at-risk students")
	}

	return utils.SendSuccess(c, "at-risk students", report)
}

func (h *CourseHandler) capacityUtilization(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	years, err := parseQueryInt(c, "years")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid years")
	}

	report, err := h.analytics.CapacityUtilization(requestContext(c), courseID, years)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load capacity utilization")
	}

	return utils.SendSuccess(c, "capacity utilization", report)
}

func (h *CourseHandler) recordSnapshot(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CapacitySnapshotRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	snapshot, err := h.analytics.RecordCapacitySnapshot(requestContext(c), activityActorFromContext(c), courseID, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to record capacity snapshot")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "capacity snapshot recorded", snapshot)
}
