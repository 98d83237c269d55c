package businessflow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
)

const (
	maxAdminPageSize  = 200
	maxExportRows     = 50000
	manualResultCode  = "MANUAL"
	stalePendingLimit = 500
)

// AdminFlow is the operator console: account moderation, ledger inspection and manual reconciliation
type AdminFlow interface {
	ListAccounts(ctx context.Context, req *dto.AdminListAccountsRequest) (*dto.AdminListAccountsResponse, error)
	GetAccount(ctx context.Context, accountUUID string) (*dto.AdminAccountDTO, error)
	SetBanned(ctx context.Context, adminID uint, accountUUID string, banned bool, metadata *ClientMetadata) (*dto.AdminAccountDTO, error)
	SetPremium(ctx context.Context, adminID uint, accountUUID string, req *dto.AdminSetPremiumRequest, metadata *ClientMetadata) (*dto.AdminAccountDTO, error)
	SetAdmin(ctx context.Context, adminID uint, accountUUID string, isAdmin bool, metadata *ClientMetadata) (*dto.AdminAccountDTO, error)
	DeleteAccount(ctx context.Context, adminID uint, accountUUID string, metadata *ClientMetadata) error

	ListAttempts(ctx context.Context, req *dto.AdminListAttemptsRequest) (*dto.AdminListAttemptsResponse, error)
	ExportAttempts(ctx context.Context, req *dto.AdminListAttemptsRequest) ([]byte, string, error)
	Reconcile(ctx context.Context, adminID uint, attemptUUID string, req *dto.AdminReconcileRequest, metadata *ClientMetadata) (*dto.AdminReconcileResponse, error)
	StalePending(ctx context.Context) (*dto.AdminStalePendingDTO, error)

	// EnsureAdmin creates or promotes the bootstrap operator account
	EnsureAdmin(ctx context.Context, email, password string) error
}

// AdminFlowImpl implements AdminFlow
type AdminFlowImpl struct {
	accountRepo       repository.AccountRepository
	attemptRepo       repository.PaymentAttemptRepository
	auditRepo         repository.AuditLogRepository
	payments          PaymentFlow
	entitlements      EntitlementFlow
	db                *gorm.DB
	premiumWindow     time.Duration
	stalePendingAfter time.Duration

	now func() time.Time
}

// NewAdminFlow creates a new admin flow instance
func NewAdminFlow(
	accountRepo repository.AccountRepository,
	attemptRepo repository.PaymentAttemptRepository,
	auditRepo repository.AuditLogRepository,
	payments PaymentFlow,
	entitlements EntitlementFlow,
	db *gorm.DB,
	premiumWindow time.Duration,
	stalePendingAfter time.Duration,
) AdminFlow {
	if premiumWindow <= 0 {
		premiumWindow = utils.PremiumWindow
	}
	if stalePendingAfter <= 0 {
		stalePendingAfter = 15 * time.Minute
	}
	return &AdminFlowImpl{
		accountRepo:       accountRepo,
		attemptRepo:       attemptRepo,
		auditRepo:         auditRepo,
		payments:          payments,
		entitlements:      entitlements,
		db:                db,
		premiumWindow:     premiumWindow,
		stalePendingAfter: stalePendingAfter,
		now:               utils.UTCNow,
	}
}

func (a *AdminFlowImpl) ListAccounts(ctx context.Context, req *dto.AdminListAccountsRequest) (*dto.AdminListAccountsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize, maxAdminPageSize)
	filter := models.AccountFilter{
		Email:     req.Email,
		IsActive:  req.IsActive,
		IsPremium: req.IsPremium,
		IsBanned:  req.IsBanned,
	}

	total, err := a.accountRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
	}
	accounts, err := a.accountRepo.ByFilter(ctx, filter, "created_at DESC", int(pageSize), int((page-1)*pageSize))
	if err != nil {
		return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
	}

	now := a.now()
	items := make([]dto.AdminAccountDTO, 0, len(accounts))
	for _, acc := range accounts {
		items = append(items, ToAdminAccountDTO(*acc, now))
	}

	return &dto.AdminListAccountsResponse{
		Items:      items,
		Pagination: calculatePaginationInfo(page, pageSize, uint(total)),
	}, nil
}

func (a *AdminFlowImpl) GetAccount(ctx context.Context, accountUUID string) (*dto.AdminAccountDTO, error) {
	account, err := a.accountByUUID(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	account, err = a.entitlements.CheckAndLazilyExpire(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("GET_ACCOUNT_FAILED", "Failed to load account", err)
	}
	view := ToAdminAccountDTO(*account, a.now())
	return &view, nil
}

// SetBanned bans or unbans an account. Banning the last remaining admin is refused.
func (a *AdminFlowImpl) SetBanned(ctx context.Context, adminID uint, accountUUID string, banned bool, metadata *ClientMetadata) (*dto.AdminAccountDTO, error) {
	account, err := a.accountByUUID(ctx, accountUUID)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		if banned && utils.IsTrue(account.IsAdmin) {
			if err := a.guardLastAdmin(txCtx, account.ID); err != nil {
				return err
			}
		}
		return a.accountRepo.UpdateFlags(txCtx, account.ID, repository.AccountFlagsUpdate{IsBanned: utils.ToPtr(banned)})
	})
	if err != nil {
		return nil, a.mutationError(err)
	}

	action := models.AuditActionAccountUnbanned
	if banned {
		action = models.AuditActionAccountBanned
	}
	msg := fmt.Sprintf("Admin %d set banned=%t on account %d", adminID, banned, account.ID)
	_ = createAuditLog(ctx, a.auditRepo, &account.ID, action, msg, true, nil, metadata)

	return a.reload(ctx, account.ID)
}

// SetPremium replaces the premium window by hand. Granting without an explicit end opens a
// window of Days (default the plan window) from now.
func (a *AdminFlowImpl) SetPremium(ctx context.Context, adminID uint, accountUUID string, req *dto.AdminSetPremiumRequest, metadata *ClientMetadata) (*dto.AdminAccountDTO, error) {
	account, err := a.accountByUUID(ctx, accountUUID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	update := repository.AccountFlagsUpdate{IsPremium: utils.ToPtr(req.IsPremium)}
	switch {
	case !req.IsPremium:
		update.ClearPremiumUntil = true
	case req.PremiumUntil != nil:
		if !req.PremiumUntil.After(now) {
			return nil, NewBusinessError("INVALID_PREMIUM_UNTIL", "premiumUntil must be in the future", ErrInvalidInput)
		}
		update.PremiumUntil = utils.ToPtr(req.PremiumUntil.UTC())
	default:
		window := a.premiumWindow
		if req.Days != nil {
			window = time.Duration(*req.Days) * 24 * time.Hour
		}
		update.PremiumUntil = utils.ToPtr(now.Add(window))
	}

	if err := a.accountRepo.UpdateFlags(ctx, account.ID, update); err != nil {
		return nil, a.mutationError(err)
	}

	msg := fmt.Sprintf("Admin %d set premium=%t on account %d", adminID, req.IsPremium, account.ID)
	if update.PremiumUntil != nil {
		msg += " until " + update.PremiumUntil.Format(time.RFC3339)
		entitlementChangesTotal.WithLabelValues("premium_granted").Inc()
	}
	_ = createAuditLog(ctx, a.auditRepo, &account.ID, models.AuditActionAccountUpdatedByAdmin, msg, true, nil, metadata)

	return a.reload(ctx, account.ID)
}

// SetAdmin grants or revokes the admin flag, refusing to demote the last admin
func (a *AdminFlowImpl) SetAdmin(ctx context.Context, adminID uint, accountUUID string, isAdmin bool, metadata *ClientMetadata) (*dto.AdminAccountDTO, error) {
	account, err := a.accountByUUID(ctx, accountUUID)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		if !isAdmin && utils.IsTrue(account.IsAdmin) {
			if err := a.guardLastAdmin(txCtx, account.ID); err != nil {
				return err
			}
		}
		return a.accountRepo.UpdateFlags(txCtx, account.ID, repository.AccountFlagsUpdate{IsAdmin: utils.ToPtr(isAdmin)})
	})
	if err != nil {
		return nil, a.mutationError(err)
	}

	msg := fmt.Sprintf("Admin %d set admin=%t on account %d", adminID, isAdmin, account.ID)
	_ = createAuditLog(ctx, a.auditRepo, &account.ID, models.AuditActionAccountUpdatedByAdmin, msg, true, nil, metadata)

	return a.reload(ctx, account.ID)
}

// DeleteAccount removes an account. Its ledger rows stay for reconciliation.
func (a *AdminFlowImpl) DeleteAccount(ctx context.Context, adminID uint, accountUUID string, metadata *ClientMetadata) error {
	account, err := a.accountByUUID(ctx, accountUUID)
	if err != nil {
		return err
	}

	err = repository.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		if utils.IsTrue(account.IsAdmin) {
			if err := a.guardLastAdmin(txCtx, account.ID); err != nil {
				return err
			}
		}
		return a.accountRepo.Delete(txCtx, account.ID)
	})
	if err != nil {
		return a.mutationError(err)
	}

	msg := fmt.Sprintf("Admin %d deleted account %d (%s)", adminID, account.ID, account.Email)
	_ = createAuditLog(ctx, a.auditRepo, nil, models.AuditActionAccountUpdatedByAdmin, msg, true, nil, metadata)
	return nil
}

// guardLastAdmin fails when accountID is the only admin left
func (a *AdminFlowImpl) guardLastAdmin(ctx context.Context, accountID uint) error {
	admins, err := a.accountRepo.ByFilter(ctx, models.AccountFilter{IsAdmin: utils.ToPtr(true)}, "id ASC", 2, 0)
	if err != nil {
		return err
	}
	if len(admins) == 1 && admins[0].ID == accountID {
		return ErrLastAdminProtected
	}
	return nil
}

func (a *AdminFlowImpl) ListAttempts(ctx context.Context, req *dto.AdminListAttemptsRequest) (*dto.AdminListAttemptsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize, maxAdminPageSize)
	filter := attemptFilterOf(req)

	total, err := a.attemptRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_ATTEMPTS_FAILED", "Failed to list payment attempts", err)
	}
	attempts, err := a.attemptRepo.ByFilter(ctx, filter, "created_at DESC", int(pageSize), int((page-1)*pageSize))
	if err != nil {
		return nil, NewBusinessError("LIST_ATTEMPTS_FAILED", "Failed to list payment attempts", err)
	}

	items := make([]dto.AdminAttemptDTO, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, ToAdminAttemptDTO(*attempt))
	}

	return &dto.AdminListAttemptsResponse{
		Items:      items,
		Pagination: calculatePaginationInfo(page, pageSize, uint(total)),
	}, nil
}

// ExportAttempts writes the filtered ledger to a single-sheet XLSX workbook
func (a *AdminFlowImpl) ExportAttempts(ctx context.Context, req *dto.AdminListAttemptsRequest) ([]byte, string, error) {
	attempts, err := a.attemptRepo.ByFilter(ctx, attemptFilterOf(req), "created_at ASC", maxExportRows, 0)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_ATTEMPTS_FAILED", "Failed to load payment attempts", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const sheet = "payments"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "uuid", "account_id", "provider", "purpose", "grants_premium", "amount", "currency",
		"phone", "status", "correlation_token", "merchant_request_id", "receipt_id", "result_code", "failure_reason",
		"created_at", "resolved_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, r := range attempts {
		resolvedAt := ""
		if r.ResolvedAt != nil {
			resolvedAt = r.ResolvedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.UUID.String(),
			strconv.FormatUint(uint64(r.AccountID), 10),
			string(r.Provider),
			string(r.Purpose),
			strconv.FormatBool(r.GrantsPremium),
			strconv.FormatUint(r.Amount, 10),
			r.Currency,
			r.ContactHandle,
			string(r.Status),
			r.CorrelationToken,
			r.MerchantRequestID,
			utils.StrOrEmpty(r.ExternalReceiptID),
			utils.StrOrEmpty(r.ResultCode),
			utils.StrOrEmpty(r.FailureReason),
			r.CreatedAt.UTC().Format(time.RFC3339),
			resolvedAt,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_ATTEMPTS_FAILED", "Failed to build workbook", err)
	}

	filename := fmt.Sprintf("payments_%s.xlsx", a.now().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

// Reconcile resolves a pending attempt whose callback never arrived. It runs the same engine
// as a provider callback, synchronously, so the usual idempotency holds.
func (a *AdminFlowImpl) Reconcile(ctx context.Context, adminID uint, attemptUUID string, req *dto.AdminReconcileRequest, metadata *ClientMetadata) (*dto.AdminReconcileResponse, error) {
	attempt, err := a.attemptRepo.ByUUID(ctx, attemptUUID)
	if err != nil {
		return nil, NewBusinessError("RECONCILE_FAILED", "Failed to load payment attempt", err)
	}
	if attempt == nil {
		return nil, NewBusinessError("PAYMENT_ATTEMPT_NOT_FOUND", "Payment attempt not found", ErrPaymentAttemptNotFound)
	}

	notification := &services.CallbackNotification{
		CorrelationToken: attempt.CorrelationToken,
		ResultCode:       manualResultCode,
	}
	switch req.Outcome {
	case "success":
		notification.Outcome = services.CallbackOutcomeSuccess
		notification.ExternalReceiptID = strings.TrimSpace(req.ReceiptID)
		notification.ResultDesc = "Reconciled by admin"
	case "failure":
		notification.Outcome = services.CallbackOutcomeFailure
		notification.ResultDesc = strings.TrimSpace(req.FailureReason)
	default:
		return nil, NewBusinessError("INVALID_OUTCOME", "outcome must be success or failure", ErrInvalidInput)
	}

	result, err := a.payments.ResolveCallback(ctx, string(attempt.Provider), notification)
	if err != nil && !IsAccountMissing(err) {
		if IsAlreadyResolved(err) {
			return nil, NewBusinessError("ATTEMPT_ALREADY_RESOLVED", "Payment attempt is already resolved", err)
		}
		if IsCallbackLockBusy(err) {
			return nil, NewBusinessError("ATTEMPT_BUSY", "A callback for this attempt is being processed, retry shortly", err)
		}
		return nil, NewBusinessError("RECONCILE_FAILED", "Failed to reconcile payment attempt", err)
	}

	msg := fmt.Sprintf("Admin %d reconciled attempt %s as %s", adminID, attempt.UUID, req.Outcome)
	_ = createAuditLog(ctx, a.auditRepo, &attempt.AccountID, models.AuditActionPaymentReconciled, msg, true, nil, metadata)
	log.Printf("[admin] %s", msg)

	resp := &dto.AdminReconcileResponse{
		Attempt: ToAdminAttemptDTO(*result.Attempt),
		Applied: result.Applied,
	}
	if result.Account != nil {
		view := ToAdminAccountDTO(*result.Account, a.now())
		resp.Account = &view
	}
	return resp, nil
}

func (a *AdminFlowImpl) StalePending(ctx context.Context) (*dto.AdminStalePendingDTO, error) {
	attempts, err := a.entitlements.ReportStalePending(ctx, a.stalePendingAfter, stalePendingLimit)
	if err != nil {
		return nil, NewBusinessError("STALE_PENDING_FAILED", "Failed to list stale attempts", err)
	}
	items := make([]dto.AdminAttemptDTO, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, ToAdminAttemptDTO(*attempt))
	}
	return &dto.AdminStalePendingDTO{Count: len(items), Items: items}, nil
}

func (a *AdminFlowImpl) EnsureAdmin(ctx context.Context, email, password string) error {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	account, err := a.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account != nil {
		if utils.IsTrue(account.IsAdmin) {
			return nil
		}
		return a.accountRepo.UpdateFlags(ctx, account.ID, repository.AccountFlagsUpdate{IsAdmin: utils.ToPtr(true)})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := a.now()
	return a.accountRepo.Save(ctx, &models.Account{
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       models.AvatarOwl,
		Plan:         models.AccountPlanFree,
		IsAdmin:      utils.ToPtr(true),
		IsBanned:     utils.ToPtr(false),
		IsActive:     utils.ToPtr(true),
		IsPremium:    utils.ToPtr(false),
		ActivatedAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (a *AdminFlowImpl) accountByUUID(ctx context.Context, accountUUID string) (*models.Account, error) {
	if _, err := uuid.Parse(accountUUID); err != nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	account, err := a.accountRepo.ByUUID(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("GET_ACCOUNT_FAILED", "Failed to load account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	return account, nil
}

func (a *AdminFlowImpl) reload(ctx context.Context, accountID uint) (*dto.AdminAccountDTO, error) {
	account, err := getAccount(ctx, a.accountRepo, accountID)
	if err != nil {
		return nil, NewBusinessError("GET_ACCOUNT_FAILED", "Failed to load account", err)
	}
	view := ToAdminAccountDTO(*account, a.now())
	return &view, nil
}

func (a *AdminFlowImpl) mutationError(err error) error {
	if IsLastAdminProtected(err) {
		return NewBusinessError("LAST_ADMIN_PROTECTED", "Cannot remove the last admin", err)
	}
	return NewBusinessError("UPDATE_ACCOUNT_FAILED", "Failed to update account", err)
}

func attemptFilterOf(req *dto.AdminListAttemptsRequest) models.PaymentAttemptFilter {
	var filter models.PaymentAttemptFilter
	if req.Status != nil && *req.Status != "" {
		filter.Status = utils.ToPtr(models.PaymentAttemptStatus(*req.Status))
	}
	if req.Provider != nil && *req.Provider != "" {
		filter.Provider = utils.ToPtr(models.PaymentProvider(*req.Provider))
	}
	if req.Purpose != nil && *req.Purpose != "" {
		filter.Purpose = utils.ToPtr(models.PaymentPurpose(*req.Purpose))
	}
	return filter
}
