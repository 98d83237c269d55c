package handlers

import (
	"log"
	"strconv"

	"github.com/anchorchat/anchor/app/dto"
	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// DarajaProvider is the provider a bare /payments/callback delivery is attributed to
const DarajaProvider = "mpesa"

// PaymentHandlerInterface defines the contract for payment handlers
type PaymentHandlerInterface interface {
	InitiatePayment(c fiber.Ctx) error
	PaymentCallback(c fiber.Ctx) error
	GetPaymentHistory(c fiber.Ctx) error
	Plans(c fiber.Ctx) error
}

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentFlow businessflow.PaymentFlow
	validator   *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentFlow businessflow.PaymentFlow) *PaymentHandler {
	return &PaymentHandler{
		paymentFlow: paymentFlow,
		validator:   NewValidator(),
	}
}

// InitiatePayment starts a mobile-money checkout for the authenticated account
// @Summary Initiate payment
// @Description Send an STK push for the activation fee or a premium window. The account is activated only by the provider callback.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.InitiatePaymentRequest true "Checkout data"
// @Success 200 {object} dto.APIResponse{data=dto.InitiatePaymentResponse} "Checkout started"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Account banned"
// @Failure 502 {object} dto.APIResponse "Payment provider unavailable"
// @Router /api/v1/payments/init [post]
func (h *PaymentHandler) InitiatePayment(c fiber.Ctx) error {
	var req dto.InitiatePaymentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	accountID, err := authenticatedAccountID(c)
	if accountID == 0 {
		return err
	}
	req.AccountID = accountID

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.paymentFlow.InitiatePayment(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return ErrorResponse(c, fiber.StatusUnauthorized, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		if businessflow.IsAccountBanned(err) {
			return ErrorResponse(c, fiber.StatusForbidden, "Account is banned", "ACCOUNT_BANNED", nil)
		}
		if businessflow.IsInvalidInput(err) {
			return ErrorResponse(c, fiber.StatusBadRequest, "Invalid payment request", "INVALID_PAYMENT_REQUEST", err.Error())
		}
		if businessflow.IsGatewayUnavailable(err) {
			log.Println("Payment gateway unavailable", err)
			return ErrorResponse(c, fiber.StatusBadGateway, "Payment provider is unavailable, please retry", "PAYMENT_GATEWAY_UNAVAILABLE", nil)
		}

		log.Println("Payment initiation failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Payment initiation failed", businessErrorCode(err, "PAYMENT_INIT_FAILED"), nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "Checkout started", result)
}

// PaymentCallback receives a provider callback. The body is recorded and processed in the
// background, and the provider always gets the same acknowledgment.
// @Summary Payment callback
// @Description Provider webhook. Always answers 200 with {"ResultCode":0,"ResultDesc":"Accepted"}.
// @Tags Payments
// @Accept json
// @Produce json
// @Param provider path string false "Provider name (mpesa, intasend, stub)"
// @Success 200 {object} dto.CallbackAck "Accepted"
// @Router /api/v1/payments/callback [post]
// @Router /api/v1/payments/callback/{provider} [post]
func (h *PaymentHandler) PaymentCallback(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		provider = DarajaProvider
	}

	// The body buffer is reused by fasthttp once the handler returns
	body := append([]byte(nil), c.Body()...)

	ctx, cancel := requestContext(c)
	defer cancel()

	ack := h.paymentFlow.AcknowledgeCallback(ctx, provider, body, clientMetadata(c))
	return c.Status(fiber.StatusOK).JSON(ack)
}

// GetPaymentHistory lists the caller's payment attempts
// @Summary Payment history
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param pageSize query int false "Items per page (default: 20, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.PaymentHistoryResponse} "Payment history"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/payments/history [get]
func (h *PaymentHandler) GetPaymentHistory(c fiber.Ctx) error {
	accountID, err := authenticatedAccountID(c)
	if accountID == 0 {
		return err
	}

	req := &dto.PaymentHistoryRequest{
		AccountID: accountID,
		Page:      queryUint(c, "page", 1),
		PageSize:  queryUint(c, "pageSize", 20),
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.paymentFlow.PaymentHistory(ctx, req)
	if err != nil {
		log.Println("Payment history retrieval failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve payment history", "PAYMENT_HISTORY_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Payment history retrieved successfully", result)
}

// Plans lists the purchasable products
// @Summary Plans
// @Tags Payments
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.PlansResponse} "Plans"
// @Router /api/v1/payments/plans [get]
func (h *PaymentHandler) Plans(c fiber.Ctx) error {
	return SuccessResponse(c, fiber.StatusOK, "Plans retrieved successfully", h.paymentFlow.Plans(c.Context()))
}

func queryUint(c fiber.Ctx, key string, def uint) uint {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 32); err == nil && parsed > 0 {
			return uint(parsed)
		}
	}
	return def
}
