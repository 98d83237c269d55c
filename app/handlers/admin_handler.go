package handlers

import (
	"log"
	"strconv"

	"github.com/anchorchat/anchor/app/dto"
	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandlerInterface interface {
	ListAccounts(c fiber.Ctx) error
	GetAccount(c fiber.Ctx) error
	BanAccount(c fiber.Ctx) error
	UnbanAccount(c fiber.Ctx) error
	SetPremium(c fiber.Ctx) error
	SetAdmin(c fiber.Ctx) error
	DeleteAccount(c fiber.Ctx) error
	ListAttempts(c fiber.Ctx) error
	ExportAttempts(c fiber.Ctx) error
	ReconcileAttempt(c fiber.Ctx) error
	StalePending(c fiber.Ctx) error
}

// AdminHandler serves the operator console
type AdminHandler struct {
	flow      businessflow.AdminFlow
	validator *validator.Validate
}

func NewAdminHandler(flow businessflow.AdminFlow) *AdminHandler {
	return &AdminHandler{flow: flow, validator: NewValidator()}
}

// adminError maps the admin flow's errors onto HTTP statuses
func adminError(c fiber.Ctx, err error, fallbackMessage string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsPaymentAttemptNotFound(err):
		return ErrorResponse(c, fiber.StatusNotFound, "Payment attempt not found", "PAYMENT_ATTEMPT_NOT_FOUND", nil)
	case businessflow.IsLastAdminProtected(err):
		return ErrorResponse(c, fiber.StatusConflict, "Cannot remove the last admin", "LAST_ADMIN_PROTECTED", nil)
	case businessflow.IsAlreadyResolved(err):
		return ErrorResponse(c, fiber.StatusConflict, "Payment attempt is already resolved", "ATTEMPT_ALREADY_RESOLVED", nil)
	case businessflow.IsCallbackLockBusy(err):
		return ErrorResponse(c, fiber.StatusConflict, "A callback for this attempt is being processed, retry shortly", "ATTEMPT_BUSY", nil)
	case businessflow.IsInvalidInput(err):
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request", businessErrorCode(err, "VALIDATION_ERROR"), err.Error())
	}
	log.Println(fallbackMessage, err)
	return ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, businessErrorCode(err, "ADMIN_OPERATION_FAILED"), nil)
}

func queryBool(c fiber.Ctx, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func queryString(c fiber.Ctx, key string) *string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	return &raw
}

// ListAccounts
// @Summary Admin list accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 200)"
// @Param email query string false "Email contains"
// @Param isActive query bool false "Filter by activation"
// @Param isPremium query bool false "Filter by premium flag"
// @Param isBanned query bool false "Filter by ban"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListAccountsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/accounts [get]
func (h *AdminHandler) ListAccounts(c fiber.Ctx) error {
	req := dto.AdminListAccountsRequest{
		Page:      queryUint(c, "page", 1),
		PageSize:  queryUint(c, "pageSize", 20),
		Email:     queryString(c, "email"),
		IsActive:  queryBool(c, "isActive"),
		IsPremium: queryBool(c, "isPremium"),
		IsBanned:  queryBool(c, "isBanned"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.ListAccounts(ctx, &req)
	if err != nil {
		return adminError(c, err, "Failed to list accounts")
	}
	return SuccessResponse(c, fiber.StatusOK, "Accounts retrieved successfully", res)
}

// GetAccount
// @Summary Admin get account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAccountDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id} [get]
func (h *AdminHandler) GetAccount(c fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.GetAccount(ctx, c.Params("id"))
	if err != nil {
		return adminError(c, err, "Failed to load account")
	}
	return SuccessResponse(c, fiber.StatusOK, "Account retrieved successfully", res)
}

// BanAccount
// @Summary Admin ban account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAccountDTO}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Last admin"
// @Router /api/v1/admin/accounts/{id}/ban [post]
func (h *AdminHandler) BanAccount(c fiber.Ctx) error {
	return h.setBanned(c, true)
}

// UnbanAccount
// @Summary Admin unban account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAccountDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id}/unban [post]
func (h *AdminHandler) UnbanAccount(c fiber.Ctx) error {
	return h.setBanned(c, false)
}

func (h *AdminHandler) setBanned(c fiber.Ctx, banned bool) error {
	adminID, err := authenticatedAccountID(c)
	if adminID == 0 {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.SetBanned(ctx, adminID, c.Params("id"), banned, clientMetadata(c))
	if err != nil {
		return adminError(c, err, "Failed to update account")
	}
	msg := "Account unbanned"
	if banned {
		msg = "Account banned"
	}
	return SuccessResponse(c, fiber.StatusOK, msg, res)
}

// SetPremium
// @Summary Admin set premium window
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body dto.AdminSetPremiumRequest true "Premium window"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAccountDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id}/premium [put]
func (h *AdminHandler) SetPremium(c fiber.Ctx) error {
	adminID, err := authenticatedAccountID(c)
	if adminID == 0 {
		return err
	}

	var req dto.AdminSetPremiumRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.SetPremium(ctx, adminID, c.Params("id"), &req, clientMetadata(c))
	if err != nil {
		return adminError(c, err, "Failed to update premium")
	}
	return SuccessResponse(c, fiber.StatusOK, "Premium updated", res)
}

// SetAdmin
// @Summary Admin grant or revoke admin
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body dto.AdminSetAdminRequest true "Admin flag"
// @Success 200 {object} dto.APIResponse{data=dto.AdminAccountDTO}
// @Failure 409 {object} dto.APIResponse "Last admin"
// @Router /api/v1/admin/accounts/{id}/admin [put]
func (h *AdminHandler) SetAdmin(c fiber.Ctx) error {
	adminID, err := authenticatedAccountID(c)
	if adminID == 0 {
		return err
	}

	var req dto.AdminSetAdminRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.SetAdmin(ctx, adminID, c.Params("id"), req.IsAdmin, clientMetadata(c))
	if err != nil {
		return adminError(c, err, "Failed to update admin flag")
	}
	return SuccessResponse(c, fiber.StatusOK, "Admin flag updated", res)
}

// DeleteAccount
// @Summary Admin delete account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Last admin"
// @Router /api/v1/admin/accounts/{id} [delete]
func (h *AdminHandler) DeleteAccount(c fiber.Ctx) error {
	adminID, err := authenticatedAccountID(c)
	if adminID == 0 {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.flow.DeleteAccount(ctx, adminID, c.Params("id"), clientMetadata(c)); err != nil {
		return adminError(c, err, "Failed to delete account")
	}
	return SuccessResponse(c, fiber.StatusOK, "Account deleted", nil)
}

func (h *AdminHandler) attemptsRequest(c fiber.Ctx) (*dto.AdminListAttemptsRequest, error) {
	req := &dto.AdminListAttemptsRequest{
		Page:     queryUint(c, "page", 1),
		PageSize: queryUint(c, "pageSize", 20),
		Status:   queryString(c, "status"),
		Provider: queryString(c, "provider"),
		Purpose:  queryString(c, "purpose"),
	}
	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListAttempts
// @Summary Admin list payment attempts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 200)"
// @Param status query string false "pending, success or failed"
// @Param provider query string false "mpesa, intasend or stub"
// @Param purpose query string false "activation or premium"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListAttemptsResponse}
// @Router /api/v1/admin/payments [get]
func (h *AdminHandler) ListAttempts(c fiber.Ctx) error {
	req, err := h.attemptsRequest(c)
	if err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.ListAttempts(ctx, req)
	if err != nil {
		return adminError(c, err, "Failed to list payment attempts")
	}
	return SuccessResponse(c, fiber.StatusOK, "Payment attempts retrieved successfully", res)
}

// ExportAttempts
// @Summary Admin export payment ledger
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param status query string false "pending, success or failed"
// @Param provider query string false "mpesa, intasend or stub"
// @Param purpose query string false "activation or premium"
// @Success 200 {file} file "XLSX workbook"
// @Router /api/v1/admin/payments/export [get]
func (h *AdminHandler) ExportAttempts(c fiber.Ctx) error {
	req, err := h.attemptsRequest(c)
	if err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	data, filename, err := h.flow.ExportAttempts(ctx, req)
	if err != nil {
		return adminError(c, err, "Failed to export payment attempts")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(data)
}

// ReconcileAttempt
// @Summary Admin reconcile a pending attempt
// @Description Resolve an attempt whose callback never arrived. Runs the same engine as a provider callback.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param request body dto.AdminReconcileRequest true "Outcome"
// @Success 200 {object} dto.APIResponse{data=dto.AdminReconcileResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Already resolved"
// @Router /api/v1/admin/payments/{id}/reconcile [post]
func (h *AdminHandler) ReconcileAttempt(c fiber.Ctx) error {
	adminID, err := authenticatedAccountID(c)
	if adminID == 0 {
		return err
	}

	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return ErrorResponse(c, fiber.StatusNotFound, "Payment attempt not found", "PAYMENT_ATTEMPT_NOT_FOUND", nil)
	}

	var req dto.AdminReconcileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.Reconcile(ctx, adminID, id, &req, clientMetadata(c))
	if err != nil {
		return adminError(c, err, "Failed to reconcile payment attempt")
	}
	return SuccessResponse(c, fiber.StatusOK, "Payment attempt reconciled", res)
}

// StalePending
// @Summary Admin stale pending attempts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AdminStalePendingDTO}
// @Router /api/v1/admin/payments/stale [get]
func (h *AdminHandler) StalePending(c fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.flow.StalePending(ctx)
	if err != nil {
		return adminError(c, err, "Failed to list stale attempts")
	}
	return SuccessResponse(c, fiber.StatusOK, "Stale attempts retrieved", res)
}
