package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/service"
	"github.com/noah-isme/eduflow-api/internal/utils"
)

// PaymentHandler manages payment initialization and reconciliation endpoints.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler builds a payment handler instance.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register attaches authenticated payment routes.
func (h *PaymentHandler) Register(router fiber.Router) {
	router.Post("", h.initialize)
	router.Get("/:reference", h.get)
	router.Post("/:reference/verify", h.verify)
}

// RegisterWebhook attaches the unauthenticated gateway callback route.
func (h *PaymentHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/payments", h.webhook)
}

func (h *PaymentHandler) initialize(c *fiber.Ctx) error {
	var payload dto.PaymentInitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	// The payer is always the authenticated user.
	payload.UserID = userIDFromContext(c)

	payment, err := h.service.Initialize(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "payment initialized", payment)
}

func (h *PaymentHandler) get(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if reference == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reference")
	}

	payment, err := h.service.GetByReference(c.Context(), reference)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "payment retrieved", payment)
}

// verify lets the client poll reconciliation after returning from the
// gateway redirect. It runs the same flow as the webhook.
func (h *PaymentHandler) verify(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if reference == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reference")
	}

	result, err := h.service.Reconcile(c.Context(), reference)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, result.Message, result)
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

func (h *PaymentHandler) webhook(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid webhook body")
	}
	if payload.Data.Reference == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "webhook carries no reference")
	}

	result, err := h.service.Reconcile(c.Context(), payload.Data.Reference)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			// Unknown references are acknowledged so the gateway stops
			// retrying a payment we never initialized.
			requestLogger(h.logger, c).Warn().
				Str("reference", payload.Data.Reference).
				Msg("webhook for unknown payment reference")
			return utils.SendSuccess(c, "reference not recognized", nil)
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, result.Message, result)
}

func (h *PaymentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "payment not found")
	case errors.Is(err, service.ErrVerificationUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "payment verification unavailable, try again later")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
