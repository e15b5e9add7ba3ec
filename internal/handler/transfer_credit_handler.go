package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// TransferCreditHandler exposes transfer credit evaluation to registrars.
type TransferCreditHandler struct {
	service service.TransferCreditService
	policy  service.TransferPolicy
	logger  zerolog.Logger
}

// NewTransferCreditHandler constructs the handler with the configured policy.
func NewTransferCreditHandler(service service.TransferCreditService, policy service.TransferPolicy, logger zerolog.Logger) *TransferCreditHandler {
	return &TransferCreditHandler{
		service: service,
		policy:  policy,
		logger:  logger.With().Str("component", "transfer_credit_handler").Logger(),
	}
}

// Register binds the transfer credit routes.
func (h *TransferCreditHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.evaluate)
}

func (h *TransferCreditHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.TransferEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Evaluate(requestContext(c), payload, h.policy)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to evaluate transfer credits")
	}

	return utils.SendSuccess(c, "transfer credits evaluated", response)
}
