package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
)

// EntitlementFlow is the read side of the entitlement store. Every read path goes through
// lazy expiry, so no caller ever sees premium with a lapsed window.
type EntitlementFlow interface {
	CheckAndLazilyExpire(ctx context.Context, accountID uint) (*models.Account, error)
	PollActivation(ctx context.Context, accountUUID string) (*dto.ActivationStatusResponse, error)
	Me(ctx context.Context, accountID uint) (*dto.AccountDTO, error)
	// ExpireLapsedPremium clears every lapsed window in one statement; used by the sweeper
	ExpireLapsedPremium(ctx context.Context) (int64, error)
	// ReportStalePending lists pending attempts older than olderThan without touching them
	ReportStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*models.PaymentAttempt, error)
}

// EntitlementFlowImpl implements EntitlementFlow
type EntitlementFlowImpl struct {
	accountRepo repository.AccountRepository
	attemptRepo repository.PaymentAttemptRepository
	auditRepo   repository.AuditLogRepository
	publisher   services.EventPublisher

	now func() time.Time
}

// NewEntitlementFlow creates a new entitlement flow instance
func NewEntitlementFlow(
	accountRepo repository.AccountRepository,
	attemptRepo repository.PaymentAttemptRepository,
	auditRepo repository.AuditLogRepository,
	publisher services.EventPublisher,
) EntitlementFlow {
	if publisher == nil {
		publisher = &services.LogPublisher{}
	}
	return &EntitlementFlowImpl{
		accountRepo: accountRepo,
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		publisher:   publisher,
		now:         utils.UTCNow,
	}
}

// CheckAndLazilyExpire loads the account and persists the expiry of a lapsed premium window
func (e *EntitlementFlowImpl) CheckAndLazilyExpire(ctx context.Context, accountID uint) (*models.Account, error) {
	account, err := getAccount(ctx, e.accountRepo, accountID)
	if err != nil {
		return nil, err
	}
	return e.expireIfLapsed(ctx, account)
}

func (e *EntitlementFlowImpl) expireIfLapsed(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := e.now()
	if !account.PremiumExpired(now) {
		return account, nil
	}

	expired, err := e.accountRepo.ExpirePremium(ctx, account.ID, now)
	if err != nil {
		return nil, err
	}
	if !expired {
		// A renewal landed between the read and the conditional update
		fresh, err := getAccount(ctx, e.accountRepo, account.ID)
		if err != nil {
			return nil, err
		}
		return fresh, nil
	}

	previous := account.PremiumUntil
	account.IsPremium = utils.ToPtr(false)
	account.PremiumUntil = nil
	account.UpdatedAt = now

	entitlementChangesTotal.WithLabelValues("premium_expired").Inc()
	msg := fmt.Sprintf("Premium window ended at %s", previous.UTC().Format(time.RFC3339))
	_ = createAuditLog(ctx, e.auditRepo, &account.ID, models.AuditActionPremiumExpired, msg, true, nil, nil)
	if err := e.publisher.Publish(ctx, services.EventPremiumExpired, services.EntitlementEvent{
		Type:         services.EventPremiumExpired,
		AccountUUID:  account.UUID.String(),
		PremiumUntil: previous,
		OccurredAt:   now,
	}); err != nil {
		log.Printf("[events] failed to publish %s for account %d: %v", services.EventPremiumExpired, account.ID, err)
	}

	return account, nil
}

// PollActivation returns only the activation and premium fields of one account
func (e *EntitlementFlowImpl) PollActivation(ctx context.Context, accountUUID string) (*dto.ActivationStatusResponse, error) {
	account, err := e.accountRepo.ByUUID(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("ACTIVATION_STATUS_FAILED", "Failed to load activation status", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}

	account, err = e.expireIfLapsed(ctx, account)
	if err != nil {
		return nil, NewBusinessError("ACTIVATION_STATUS_FAILED", "Failed to load activation status", err)
	}

	status := ToActivationStatusDTO(*account, e.now())
	return &status, nil
}

// Me returns the caller's full account view after lazy expiry
func (e *EntitlementFlowImpl) Me(ctx context.Context, accountID uint) (*dto.AccountDTO, error) {
	account, err := e.CheckAndLazilyExpire(ctx, accountID)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", err)
		}
		return nil, NewBusinessError("GET_ACCOUNT_FAILED", "Failed to load account", err)
	}

	view := ToAccountDTO(*account, e.now())
	return &view, nil
}

func (e *EntitlementFlowImpl) ExpireLapsedPremium(ctx context.Context) (int64, error) {
	n, err := e.accountRepo.ExpireLapsedPremium(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		entitlementChangesTotal.WithLabelValues("premium_expired").Add(float64(n))
	}
	return n, nil
}

func (e *EntitlementFlowImpl) ReportStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*models.PaymentAttempt, error) {
	attempts, err := e.attemptRepo.ListStalePending(ctx, e.now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	stalePendingAttempts.Set(float64(len(attempts)))
	return attempts, nil
}
