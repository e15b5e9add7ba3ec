package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// EnrollmentHandler exposes enrollment, drop and eligibility endpoints.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register binds the enrollment routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("/", h.enroll)
	router.Get("/eligibility/:courseId", h.eligibility)
	router.Delete("/:courseId", h.drop)
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	var payload dto.EnrollmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	studentID, status, message := h.subject(c, payload.StudentID)
	if status != 0 {
		return utils.SendError(c, status, message)
	}
	payload.StudentID = studentID

	logger := requestLogger(h.logger, c)
	result, err := h.service.ProcessEnrollmentRequest(requestContext(c), activityActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, logger, err, "failed to process enrollment")
	}

	status = fiber.StatusOK
	switch result.Status {
	case dto.EnrollmentApproved:
		status = fiber.StatusCreated
	case dto.EnrollmentWaitlisted:
		status = fiber.StatusAccepted
	}

	return utils.SendSuccessWithStatus(c, status, result.Message, result)
}

func (h *EnrollmentHandler) drop(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	requested, err := parseQueryInt(c, "student_id")
	if err != nil || requested < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	studentID, status, message := h.subject(c, uint(requested))
	if status != 0 {
		return utils.SendError(c, status, message)
	}

	logger := requestLogger(h.logger, c)
	result, err := h.service.DropEnrollment(requestContext(c), activityActorFromContext(c), studentID, courseID)
	if err != nil {
		return sendServiceError(c, logger, err, "failed to drop enrollment")
	}

	return utils.SendSuccess(c, "enrollment dropped", result)
}

func (h *EnrollmentHandler) eligibility(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	requested, err := parseQueryInt(c, "student_id")
	if err != nil || requested < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	studentID, status, message := h.subject(c, uint(requested))
	if status != 0 {
		return utils.SendError(c, status, message)
	}

	logger := requestLogger(h.logger, c)
	result, err := h.service.CheckEligibility(requestContext(c), studentID, courseID)
	if err != nil {
		return sendServiceError(c, logger, err, "failed to check eligibility")
	}

	return utils.SendSuccess(c, result.Reason, result)
}

// subject resolves whose enrollment is being acted on. Students may only act
// for themselves; staff may name any student. A non-zero status means the
// request must be refused with that status and message.
func (h *EnrollmentHandler) subject(c *fiber.Ctx, requested uint) (uint, int, string) {
	if isStaff(c) {
		if requested == 0 {
			return 0, fiber.StatusBadRequest, "student_id is required"
		}
		return requested, 0, ""
	}

	caller := userIDFromContext(c)
	if caller == 0 {
		return 0, fiber.StatusUnauthorized, "user not authenticated"
	}
	if requested != 0 && requested != caller {
		return 0, fiber.StatusForbidden, "cannot act for student " + strconv.FormatUint(uint64(requested), 10)
	}
	return caller, 0, ""
}
