// Package businessflow contains the core business logic and use cases for payment workflows
package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PaymentFlow is the activation engine: it starts checkouts and applies provider callbacks
type PaymentFlow interface {
	InitiatePayment(ctx context.Context, req *dto.InitiatePaymentRequest, metadata *ClientMetadata) (*dto.InitiatePaymentResponse, error)
	// AcknowledgeCallback schedules the inbox write and ResolveCallback in the background
	// and returns the fixed acknowledgment. It never fails and never touches the database.
	AcknowledgeCallback(ctx context.Context, provider string, body []byte, metadata *ClientMetadata) dto.CallbackAck
	ResolveCallback(ctx context.Context, provider string, notification *services.CallbackNotification) (*CallbackResult, error)
	PaymentHistory(ctx context.Context, req *dto.PaymentHistoryRequest) (*dto.PaymentHistoryResponse, error)
	Plans(ctx context.Context) *dto.PlansResponse
	// Wait blocks until every scheduled callback has been processed
	Wait()
}

// PaymentFlowConfig is the engine's injected configuration
type PaymentFlowConfig struct {
	Pricing         Pricing
	PrimaryProvider string
	CallbackBaseURL string
	CheckoutTimeout time.Duration
	CallbackTimeout time.Duration
	CallbackLockTTL time.Duration
	RedisPrefix     string
}

// CallbackResult describes what ResolveCallback did
type CallbackResult struct {
	Attempt *models.PaymentAttempt
	Account *models.Account // nil when the owning account no longer exists
	Applied bool            // this delivery won the pending -> terminal transition
}

// releaseCallbackLock deletes the lock only while it still holds this delivery's owner value
var releaseCallbackLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PaymentFlowImpl implements the payment business flow
type PaymentFlowImpl struct {
	accountRepo  repository.AccountRepository
	attemptRepo  repository.PaymentAttemptRepository
	callbackRepo repository.PaymentCallbackEventRepository
	auditRepo    repository.AuditLogRepository
	gateways     map[string]services.PaymentGateway
	publisher    services.EventPublisher
	rc           *redis.Client
	db           *gorm.DB
	cfg          PaymentFlowConfig

	now func() time.Time
	wg  sync.WaitGroup
}

// NewPaymentFlow creates a new payment flow instance. rc may be nil, in which case
// concurrent deliveries are serialized by the ledger's conditional update alone.
func NewPaymentFlow(
	accountRepo repository.AccountRepository,
	attemptRepo repository.PaymentAttemptRepository,
	callbackRepo repository.PaymentCallbackEventRepository,
	auditRepo repository.AuditLogRepository,
	gateways []services.PaymentGateway,
	publisher services.EventPublisher,
	rc *redis.Client,
	db *gorm.DB,
	cfg PaymentFlowConfig,
) PaymentFlow {
	byName := make(map[string]services.PaymentGateway, len(gateways))
	for _, g := range gateways {
		byName[g.Name()] = g
	}
	if cfg.PrimaryProvider == "" && len(gateways) > 0 {
		cfg.PrimaryProvider = gateways[0].Name()
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = 20 * time.Second
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = utils.CallbackProcessingTimeout
	}
	if cfg.CallbackLockTTL <= 0 {
		cfg.CallbackLockTTL = utils.CallbackLockTTL
	}
	// A lock must outlive the processing it guards
	if cfg.CallbackLockTTL < cfg.CallbackTimeout {
		cfg.CallbackLockTTL = cfg.CallbackTimeout
	}
	if publisher == nil {
		publisher = &services.LogPublisher{}
	}

	return &PaymentFlowImpl{
		accountRepo:  accountRepo,
		attemptRepo:  attemptRepo,
		callbackRepo: callbackRepo,
		auditRepo:    auditRepo,
		gateways:     byName,
		publisher:    publisher,
		rc:           rc,
		db:           db,
		cfg:          cfg,
		now:          utils.UTCNow,
	}
}

// InitiatePayment starts an STK push and records the pending attempt once the provider
// has issued a correlation token. A gateway failure leaves no ledger row behind.
func (p *PaymentFlowImpl) InitiatePayment(ctx context.Context, req *dto.InitiatePaymentRequest, metadata *ClientMetadata) (*dto.InitiatePaymentResponse, error) {
	provider := p.cfg.PrimaryProvider

	account, purpose, msisdn, err := p.validateInitiatePaymentRequest(ctx, req)
	if err != nil {
		purposeLabel := req.Purpose
		if !models.IsValidPaymentPurpose(purposeLabel) {
			purposeLabel = "unknown"
		}
		paymentInitiationsTotal.WithLabelValues(provider, purposeLabel, "rejected").Inc()
		return nil, NewBusinessError("PAYMENT_INIT_VALIDATION_FAILED", "Payment initiation validation failed", err)
	}

	gateway, ok := p.gateways[provider]
	if !ok {
		return nil, NewBusinessError("PAYMENT_INIT_FAILED", "Payment provider is not configured",
			fmt.Errorf("%w: no gateway named %q", ErrGatewayUnavailable, provider))
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckoutTimeout)
	defer cancel()

	session, err := gateway.StartCheckout(checkoutCtx, services.CheckoutRequest{
		Amount:        req.Amount,
		ContactHandle: msisdn,
		CallbackURL:   p.callbackURL(provider),
		Reference:     "Anchor",
		Description:   checkoutDescription(purpose),
	})
	if err == nil && (session == nil || session.CorrelationToken == "") {
		err = fmt.Errorf("%w: empty correlation token", ErrGatewayUnavailable)
	}
	if err != nil {
		if !errors.Is(err, ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		paymentInitiationsTotal.WithLabelValues(provider, string(purpose), "gateway_error").Inc()
		errMsg := fmt.Sprintf("Checkout failed for account %d: %s", account.ID, err.Error())
		_ = createAuditLog(ctx, p.auditRepo, &account.ID, models.AuditActionPaymentInitiationFailed, errMsg, false, &errMsg, metadata)
		log.Printf("[payments] checkout via %s failed for account %d: %v", provider, account.ID, err)

		return nil, NewBusinessError("PAYMENT_GATEWAY_UNAVAILABLE", "Payment provider is unavailable, please retry", err)
	}

	attempt := &models.PaymentAttempt{
		AccountID:         account.ID,
		Provider:          models.PaymentProvider(provider),
		Purpose:           purpose,
		GrantsPremium:     purpose == models.PaymentPurposePremium || account.Plan == models.AccountPlanPremium,
		Amount:            req.Amount,
		Currency:          utils.KenyanShillingCurrency,
		ContactHandle:     msisdn,
		CorrelationToken:  session.CorrelationToken,
		MerchantRequestID: session.MerchantRequestID,
		CustomerMessage:   session.CustomerMessage,
		Status:            models.PaymentAttemptStatusPending,
	}
	if err := p.attemptRepo.Save(ctx, attempt); err != nil {
		// The customer already has a prompt; the callback will be logged as unknown
		log.Printf("[payments] failed to record attempt for token %s (account %d): %v", session.CorrelationToken, account.ID, err)
		paymentInitiationsTotal.WithLabelValues(provider, string(purpose), "ledger_error").Inc()
		return nil, NewBusinessError("PAYMENT_INIT_FAILED", "Failed to record payment attempt", err)
	}

	paymentInitiationsTotal.WithLabelValues(provider, string(purpose), "started").Inc()
	msg := fmt.Sprintf("Started %s checkout %s for %d KES (attempt %s)", purpose, session.CorrelationToken, req.Amount, attempt.UUID)
	_ = createAuditLog(ctx, p.auditRepo, &account.ID, models.AuditActionPaymentInitiated, msg, true, nil, metadata)

	prompt := session.CustomerMessage
	if prompt == "" {
		prompt = "Check your phone and enter your M-Pesa PIN to complete the payment"
	}

	return &dto.InitiatePaymentResponse{
		CorrelationToken: session.CorrelationToken,
		AttemptID:        attempt.UUID.String(),
		Prompt:           prompt,
		Amount:           attempt.Amount,
		Currency:         attempt.Currency,
		Provider:         provider,
	}, nil
}

// validateInitiatePaymentRequest resolves the purpose and normalizes the phone number
func (p *PaymentFlowImpl) validateInitiatePaymentRequest(ctx context.Context, req *dto.InitiatePaymentRequest) (*models.Account, models.PaymentPurpose, string, error) {
	if req.Amount == 0 {
		return nil, "", "", ErrInvalidAmount
	}
	msisdn, ok := utils.NormalizeKenyanMSISDN(req.Phone)
	if !ok {
		return nil, "", "", ErrInvalidContactHandle
	}
	if req.Purpose != "" && !models.IsValidPaymentPurpose(req.Purpose) {
		return nil, "", "", ErrInvalidPaymentPurpose
	}

	account, err := getAccount(ctx, p.accountRepo, req.AccountID)
	if err != nil {
		return nil, "", "", err
	}
	if utils.IsTrue(account.IsBanned) {
		return nil, "", "", ErrAccountBanned
	}

	purpose := models.PaymentPurpose(req.Purpose)
	active := utils.IsTrue(account.IsActive)
	switch {
	case purpose == "" && active:
		purpose = models.PaymentPurposePremium
	case purpose == "":
		purpose = SignupPurpose(account.Plan)
	case purpose == models.PaymentPurposeActivation && active:
		return nil, "", "", ErrAlreadyActivated
	case purpose == models.PaymentPurposeActivation && account.Plan == models.AccountPlanPremium:
		// A premium signup activates by paying for premium
		purpose = models.PaymentPurposePremium
	}

	if req.Amount != p.cfg.Pricing.PriceFor(purpose) {
		return nil, "", "", fmt.Errorf("%w (expected %d KES for %s)", ErrInvalidAmount, p.cfg.Pricing.PriceFor(purpose), purpose)
	}

	return account, purpose, msisdn, nil
}

func (p *PaymentFlowImpl) callbackURL(provider string) string {
	return strings.TrimRight(p.cfg.CallbackBaseURL, "/") + "/" + provider
}

func checkoutDescription(purpose models.PaymentPurpose) string {
	if purpose == models.PaymentPurposePremium {
		return "Anchor Premium"
	}
	return "Anchor Activate"
}

// AcknowledgeCallback is the synchronous phase of callback handling
func (p *PaymentFlowImpl) AcknowledgeCallback(ctx context.Context, provider string, body []byte, metadata *ClientMetadata) dto.CallbackAck {
	ack := dto.AcceptedCallbackAck()
	if provider == "" {
		provider = p.cfg.PrimaryProvider
	}

	event := &models.PaymentCallbackEvent{
		Provider:    models.PaymentProvider(provider),
		PayloadJSON: callbackPayloadJSON(body),
		Outcome:     models.CallbackOutcomeReceived,
		ReceivedAt:  p.now(),
	}

	gateway, ok := p.gateways[provider]
	if !ok {
		p.rejectCallback(metadata, event, fmt.Errorf("%w: unknown provider %q", ErrInvalidCallback, provider))
		return ack
	}

	notification, err := gateway.ParseCallback(body)
	if err != nil {
		if errors.Is(err, services.ErrCallbackVerification) {
			err = fmt.Errorf("%w: %v", ErrCallbackRejected, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrInvalidCallback, err)
		}
		p.rejectCallback(metadata, event, err)
		return ack
	}

	event.CorrelationToken = notification.CorrelationToken
	event.ResultCode = notification.ResultCode

	// Nothing on the ack path touches the database
	p.inBackground(metadata, notification.CorrelationToken, func(bgCtx context.Context) {
		if err := p.callbackRepo.Save(bgCtx, event); err != nil {
			log.Printf("[payments] failed to store %s callback for %s: %v", provider, notification.CorrelationToken, err)
		}
		p.processCallback(bgCtx, provider, event, notification)
	})

	return ack
}

// inBackground runs fn on a detached context bounded by the callback processing timeout.
// Wait blocks until every such job is done.
func (p *PaymentFlowImpl) inBackground(metadata *ClientMetadata, label string, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[payments] panic while processing callback %s: %v", label, r)
			}
		}()

		bgCtx, cancel := context.WithTimeout(context.Background(), p.cfg.CallbackTimeout)
		defer cancel()
		if metadata != nil && metadata.RequestID != "" {
			bgCtx = context.WithValue(bgCtx, RequestIDKey, metadata.RequestID)
		}
		fn(bgCtx)
	}()
}

func (p *PaymentFlowImpl) rejectCallback(metadata *ClientMetadata, event *models.PaymentCallbackEvent, err error) {
	log.Printf("[payments] rejected %s callback: %v", event.Provider, err)
	paymentCallbacksTotal.WithLabelValues(string(event.Provider), string(models.CallbackOutcomeRejected)).Inc()

	msg := err.Error()
	event.Outcome = models.CallbackOutcomeRejected
	event.ProcessingError = &msg
	event.ProcessedAt = utils.ToPtr(p.now())
	p.inBackground(metadata, "rejected", func(bgCtx context.Context) {
		if saveErr := p.callbackRepo.Save(bgCtx, event); saveErr != nil {
			log.Printf("[payments] failed to store rejected callback: %v", saveErr)
		}
	})
}

// processCallback is the background phase: it runs the engine and records the outcome on the inbox row
func (p *PaymentFlowImpl) processCallback(ctx context.Context, provider string, event *models.PaymentCallbackEvent, notification *services.CallbackNotification) {
	_, err := p.ResolveCallback(ctx, provider, notification)

	outcome := callbackOutcomeOf(err)
	var errMsg *string
	if outcome == models.CallbackOutcomeProcessingError || outcome == models.CallbackOutcomeRejected {
		errMsg = utils.ToPtr(err.Error())
	}
	if event.ID == 0 {
		return
	}
	if markErr := p.callbackRepo.MarkProcessed(ctx, event.ID, outcome, errMsg, p.now()); markErr != nil {
		log.Printf("[payments] failed to mark callback event %d: %v", event.ID, markErr)
	}
}

func callbackOutcomeOf(err error) models.CallbackOutcome {
	switch {
	case err == nil:
		return models.CallbackOutcomeApplied
	case IsAlreadyResolved(err), IsCallbackLockBusy(err):
		return models.CallbackOutcomeDuplicate
	case IsUnknownCorrelation(err):
		return models.CallbackOutcomeUnknown
	case IsAccountMissing(err):
		return models.CallbackOutcomeAccountMissing
	case IsInterimCallback(err):
		return models.CallbackOutcomeReceived
	case IsInvalidCallback(err), IsCallbackRejected(err):
		return models.CallbackOutcomeRejected
	default:
		return models.CallbackOutcomeProcessingError
	}
}

// ResolveCallback applies a provider outcome to the attempt identified by its correlation token.
// Safe under at-least-once delivery: only the delivery whose conditional update moves the
// attempt out of pending mutates anything. Errors are for logging; the provider is always acked.
func (p *PaymentFlowImpl) ResolveCallback(ctx context.Context, provider string, notification *services.CallbackNotification) (*CallbackResult, error) {
	if notification == nil || strings.TrimSpace(notification.CorrelationToken) == "" {
		return nil, ErrInvalidCallback
	}
	token := notification.CorrelationToken

	release, err := p.acquireCallbackLock(ctx, token)
	if err != nil {
		log.Printf("[payments] callback for %s skipped: %v", token, err)
		paymentCallbacksTotal.WithLabelValues(provider, string(models.CallbackOutcomeDuplicate)).Inc()
		return nil, err
	}
	defer release()

	now := p.now()
	result := &CallbackResult{}
	var mutation *AccountMutation
	accountMissing := false

	err = repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		attempt, err := p.attemptRepo.ByCorrelationToken(txCtx, token)
		if err != nil {
			return err
		}
		if attempt != nil && provider != "" && string(attempt.Provider) != provider {
			return fmt.Errorf("%w: attempt belongs to %s, callback came from %s", ErrInvalidCallback, attempt.Provider, provider)
		}
		result.Attempt = attempt

		transition, m, err := ResolveTransition(attempt, notification, now, p.cfg.Pricing.window())
		if err != nil {
			return err
		}

		won, err := p.attemptRepo.MarkResolved(txCtx, attempt.ID, transition.Resolution)
		if err != nil {
			return err
		}
		if !won {
			return ErrAlreadyResolved
		}
		resolved := transition.applyTo(*attempt)
		result.Attempt = &resolved
		result.Applied = true

		if m == nil {
			return nil
		}
		mutation = m

		found, err := p.accountRepo.ApplyEntitlement(txCtx, attempt.AccountID, m.Grant(now))
		if err != nil {
			return err
		}
		if !found {
			// Keep the attempt write; the ledger must reflect what the provider confirmed
			accountMissing = true
			return nil
		}

		result.Account, err = p.accountRepo.ByID(txCtx, attempt.AccountID)
		return err
	})

	if err != nil {
		p.logResolveError(provider, token, err)
		paymentCallbacksTotal.WithLabelValues(provider, string(callbackOutcomeOf(err))).Inc()
		if IsAlreadyResolved(err) || IsUnknownCorrelation(err) || IsInterimCallback(err) {
			return result, err
		}
		return result, NewBusinessError("PAYMENT_CALLBACK_FAILED", "Failed to apply payment callback", err)
	}

	attempt := result.Attempt
	if amountMismatch(attempt, notification) {
		log.Printf("[payments] WARNING: attempt %s confirmed %.2f KES but charged %d KES", attempt.UUID, *notification.Amount, attempt.Amount)
	}

	if accountMissing {
		log.Printf("[payments] DATA INTEGRITY: attempt %s (token %s) resolved %s but account %d no longer exists",
			attempt.UUID, token, attempt.Status, attempt.AccountID)
		paymentCallbacksTotal.WithLabelValues(provider, string(models.CallbackOutcomeAccountMissing)).Inc()
		errMsg := fmt.Sprintf("account %d missing for attempt %s", attempt.AccountID, attempt.UUID)
		_ = createAuditLog(ctx, p.auditRepo, nil, models.AuditActionPaymentSucceeded, errMsg, false, &errMsg, nil)
		return result, ErrAccountMissing
	}

	paymentCallbacksTotal.WithLabelValues(provider, string(models.CallbackOutcomeApplied)).Inc()
	p.recordResolution(ctx, result, mutation, now)

	return result, nil
}

func (p *PaymentFlowImpl) logResolveError(provider, token string, err error) {
	switch {
	case IsUnknownCorrelation(err):
		log.Printf("[payments] %s callback for unknown correlation token %s ignored", provider, token)
	case IsAlreadyResolved(err):
		log.Printf("[payments] %s callback for %s ignored: already resolved", provider, token)
	case IsInterimCallback(err):
		log.Printf("[payments] %s interim callback for %s ignored", provider, token)
	default:
		log.Printf("[payments] failed to apply %s callback for %s: %v", provider, token, err)
	}
}

// recordResolution writes audit rows, metrics and domain events after the transaction committed
func (p *PaymentFlowImpl) recordResolution(ctx context.Context, result *CallbackResult, mutation *AccountMutation, now time.Time) {
	attempt := result.Attempt
	accountID := attempt.AccountID
	event := services.EntitlementEvent{
		AttemptUUID: attempt.UUID.String(),
		Provider:    string(attempt.Provider),
		Amount:      attempt.Amount,
		OccurredAt:  now,
	}
	if result.Account != nil {
		event.AccountUUID = result.Account.UUID.String()
	}

	if attempt.Status == models.PaymentAttemptStatusFailed {
		reason := utils.StrOrEmpty(attempt.FailureReason)
		msg := fmt.Sprintf("Payment %s failed: %s", attempt.CorrelationToken, reason)
		_ = createAuditLog(ctx, p.auditRepo, &accountID, models.AuditActionPaymentFailed, msg, true, nil, nil)

		event.Type = services.EventPaymentFailed
		event.Reason = reason
		p.publish(ctx, services.EventPaymentFailed, event)
		return
	}

	paymentRevenueTotal.WithLabelValues(string(attempt.Purpose)).Add(float64(attempt.Amount))
	msg := fmt.Sprintf("Payment %s confirmed, receipt %s", attempt.CorrelationToken, utils.StrOrEmpty(attempt.ExternalReceiptID))
	_ = createAuditLog(ctx, p.auditRepo, &accountID, models.AuditActionPaymentSucceeded, msg, true, nil, nil)

	entitlementChangesTotal.WithLabelValues("activated").Inc()
	_ = createAuditLog(ctx, p.auditRepo, &accountID, models.AuditActionAccountActivated, "Account activated by payment "+attempt.UUID.String(), true, nil, nil)
	event.Type = services.EventAccountActivated
	p.publish(ctx, services.EventAccountActivated, event)

	if mutation != nil && mutation.GrantPremium {
		entitlementChangesTotal.WithLabelValues("premium_granted").Inc()
		msg := fmt.Sprintf("Premium granted until %s", mutation.PremiumUntil.Format(time.RFC3339))
		_ = createAuditLog(ctx, p.auditRepo, &accountID, models.AuditActionPremiumGranted, msg, true, nil, nil)

		event.Type = services.EventPremiumGranted
		event.PremiumUntil = mutation.PremiumUntil
		p.publish(ctx, services.EventPremiumGranted, event)
	}
}

func (p *PaymentFlowImpl) publish(ctx context.Context, routingKey string, event services.EntitlementEvent) {
	if err := p.publisher.Publish(ctx, routingKey, event); err != nil {
		log.Printf("[events] failed to publish %s for attempt %s: %v", routingKey, event.AttemptUUID, err)
	}
}

// acquireCallbackLock takes a per-token SETNX lock when Redis is configured.
// Redis errors fall through to the ledger's conditional update.
func (p *PaymentFlowImpl) acquireCallbackLock(ctx context.Context, token string) (func(), error) {
	noop := func() {}
	if p.rc == nil {
		return noop, nil
	}

	lockKey := redisKey(p.cfg.RedisPrefix, "payments", "callback-lock", token)
	owner := uuid.NewString()
	ok, err := p.rc.SetNX(ctx, lockKey, owner, p.cfg.CallbackLockTTL).Result()
	if err != nil {
		log.Printf("[payments] redis lock unavailable for %s: %v", token, err)
		return noop, nil
	}
	if !ok {
		return nil, ErrCallbackLockBusy
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseCallbackLock.Run(releaseCtx, p.rc, []string{lockKey}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("[payments] failed to release callback lock for %s: %v", token, err)
		}
	}, nil
}

// PaymentHistory lists the caller's ledger, newest first
func (p *PaymentFlowImpl) PaymentHistory(ctx context.Context, req *dto.PaymentHistoryRequest) (*dto.PaymentHistoryResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize, 100)
	filter := models.PaymentAttemptFilter{AccountID: &req.AccountID}

	total, err := p.attemptRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PAYMENT_HISTORY_FAILED", "Failed to count payment attempts", err)
	}
	attempts, err := p.attemptRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), int((page-1)*pageSize))
	if err != nil {
		return nil, NewBusinessError("PAYMENT_HISTORY_FAILED", "Failed to list payment attempts", err)
	}

	items := make([]dto.PaymentAttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, ToPaymentAttemptDTO(*a))
	}

	return &dto.PaymentHistoryResponse{
		Items:      items,
		Pagination: calculatePaginationInfo(page, pageSize, uint(total)),
	}, nil
}

func (p *PaymentFlowImpl) Plans(ctx context.Context) *dto.PlansResponse {
	return p.cfg.Pricing.toDTO()
}

func (p *PaymentFlowImpl) Wait() {
	p.wg.Wait()
}

// callbackPayloadJSON keeps the raw body as JSON; non-JSON bodies are stored as a JSON string
func callbackPayloadJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(append([]byte(nil), body...))
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

func redisKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}
