package handlers

import (
	"log"

	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AccountHandler serves the entitlement query surface
type AccountHandler struct {
	entitlementFlow businessflow.EntitlementFlow
}

func NewAccountHandler(entitlementFlow businessflow.EntitlementFlow) *AccountHandler {
	return &AccountHandler{entitlementFlow: entitlementFlow}
}

// ActivationStatus is polled by the client while it waits for the payment callback
// @Summary Activation status
// @Description Returns only isActive, isPremium and premiumUntil. Lapsed premium is expired on read.
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} dto.APIResponse{data=dto.ActivationStatusResponse} "Activation status"
// @Failure 404 {object} dto.APIResponse "Account not found"
// @Failure 429 {object} dto.APIResponse "Too many polls"
// @Router /api/v1/accounts/{id}/activation-status [get]
func (h *AccountHandler) ActivationStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.entitlementFlow.PollActivation(ctx, id)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		log.Println("Activation status failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load activation status", "ACTIVATION_STATUS_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Activation status retrieved", result)
}

// Me returns the caller's account
// @Summary Current session
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Account"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/session/me [get]
func (h *AccountHandler) Me(c fiber.Ctx) error {
	accountID, err := authenticatedAccountID(c)
	if accountID == 0 {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.entitlementFlow.Me(ctx, accountID)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return ErrorResponse(c, fiber.StatusUnauthorized, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		log.Println("Get account failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load account", "GET_ACCOUNT_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Account retrieved", result)
}
