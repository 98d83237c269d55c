package businessflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/models"
	testutil "github.com/anchorchat/anchor/testing"
	"github.com/anchorchat/anchor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiatePayment_StartsCheckoutAndRecordsAttempt(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)

	resp, err := env.payments.InitiatePayment(ctx, &dto.InitiatePaymentRequest{
		AccountID: account.ID,
		Amount:    50,
		Phone:     "0712 345 678",
	}, NewClientMetadata("10.0.0.1", "test"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.CorrelationToken, "stub_"))
	assert.Equal(t, uint64(50), resp.Amount)
	assert.Equal(t, "KES", resp.Currency)
	assert.NotEmpty(t, resp.Prompt)

	requests := env.stub.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "254712345678", requests[0].ContactHandle)
	assert.Equal(t, "https://api.anchor.test/api/v1/payments/callback/stub", requests[0].CallbackURL)
	assert.Equal(t, "Anchor Activate", requests[0].Description)

	attempt, err := env.attemptRepo.ByCorrelationToken(ctx, resp.CorrelationToken)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, models.PaymentAttemptStatusPending, attempt.Status)
	assert.Equal(t, models.PaymentPurposeActivation, attempt.Purpose)
	assert.False(t, attempt.GrantsPremium)
	assert.Equal(t, resp.AttemptID, attempt.UUID.String())
}

func TestInitiatePayment_GatewayFailureLeavesNoAttempt(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()
	env.stub.Fail = errors.New("connection refused")

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)

	_, err = env.payments.InitiatePayment(ctx, &dto.InitiatePaymentRequest{
		AccountID: account.ID,
		Amount:    50,
		Phone:     "254712345678",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsGatewayUnavailable(err))

	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "PAYMENT_GATEWAY_UNAVAILABLE", be.Code)

	count, err := env.attemptRepo.Count(ctx, models.PaymentAttemptFilter{AccountID: &account.ID})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInitiatePayment_Validation(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	pendingFree, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	active, err := env.fx.CreateTestAccount(testutil.WithActive())
	require.NoError(t, err)
	banned, err := env.fx.CreateTestAccount(testutil.WithBanned())
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   dto.InitiatePaymentRequest
		check func(error) bool
	}{
		{"zero amount", dto.InitiatePaymentRequest{AccountID: pendingFree.ID, Amount: 0, Phone: "0712345678"}, IsInvalidInput},
		{"wrong amount for activation", dto.InitiatePaymentRequest{AccountID: pendingFree.ID, Amount: 300, Phone: "0712345678", Purpose: "activation"}, IsInvalidInput},
		{"non kenyan phone", dto.InitiatePaymentRequest{AccountID: pendingFree.ID, Amount: 50, Phone: "+14155550100"}, IsInvalidInput},
		{"unknown purpose", dto.InitiatePaymentRequest{AccountID: pendingFree.ID, Amount: 50, Phone: "0712345678", Purpose: "gold"}, IsInvalidInput},
		{"activation on an active account", dto.InitiatePaymentRequest{AccountID: active.ID, Amount: 50, Phone: "0712345678", Purpose: "activation"}, IsInvalidInput},
		{"banned account", dto.InitiatePaymentRequest{AccountID: banned.ID, Amount: 50, Phone: "0712345678"}, IsAccountBanned},
		{"missing account", dto.InitiatePaymentRequest{AccountID: 999999, Amount: 50, Phone: "0712345678"}, IsAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.payments.InitiatePayment(ctx, &tt.req, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	assert.Empty(t, env.stub.Requests(), "no checkout is started for a rejected request")
}

func TestInitiatePayment_PremiumPlanActivationChargesPremium(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount(testutil.WithPlan(models.AccountPlanPremium))
	require.NoError(t, err)

	_, err = env.payments.InitiatePayment(ctx, &dto.InitiatePaymentRequest{
		AccountID: account.ID, Amount: 50, Phone: "0712345678", Purpose: "activation",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	resp, err := env.payments.InitiatePayment(ctx, &dto.InitiatePaymentRequest{
		AccountID: account.ID, Amount: 300, Phone: "0712345678",
	}, nil)
	require.NoError(t, err)

	attempt, err := env.attemptRepo.ByCorrelationToken(ctx, resp.CorrelationToken)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPurposePremium, attempt.Purpose)
	assert.True(t, attempt.GrantsPremium)
}

func TestResolveCallback_SuccessActivatesAndGrantsPremium(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_100")
	require.NoError(t, err)

	result, err := env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_100", "R1"))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.NotNil(t, result.Account)

	got := env.reloadAccount(t, account.ID)
	assert.True(t, utils.IsTrue(got.IsActive))
	assert.True(t, utils.IsTrue(got.IsPremium))
	require.NotNil(t, got.PremiumUntil)
	assert.WithinDuration(t, env.now.Add(utils.PremiumWindow), *got.PremiumUntil, time.Second)
	require.NotNil(t, got.ActivatedAt)

	resolved := env.reloadAttempt(t, attempt.ID)
	assert.Equal(t, models.PaymentAttemptStatusSuccess, resolved.Status)
	assert.Equal(t, "R1", utils.StrOrEmpty(resolved.ExternalReceiptID))

	audits, err := env.auditRepo.ListByAction(ctx, models.AuditActionPremiumGranted, 10, 0)
	require.NoError(t, err)
	assert.Len(t, audits, 1)
}

func TestResolveCallback_DuplicateSuccessIsIdempotent(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_200")
	require.NoError(t, err)

	_, err = env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_200", "R1"))
	require.NoError(t, err)
	first := env.reloadAccount(t, account.ID)

	env.advance(time.Hour)
	result, err := env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_200", "R2"))
	assert.True(t, IsAlreadyResolved(err))
	assert.False(t, result.Applied)

	second := env.reloadAccount(t, account.ID)
	require.NotNil(t, second.PremiumUntil)
	assert.True(t, first.PremiumUntil.Equal(*second.PremiumUntil), "window is not extended by a redelivery")
	assert.Equal(t, "R1", utils.StrOrEmpty(env.reloadAttempt(t, attempt.ID).ExternalReceiptID))
}

func TestResolveCallback_UnknownTokenIsNoop(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)

	_, err = env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_unknown", "R1"))
	assert.True(t, IsUnknownCorrelation(err))

	got := env.reloadAccount(t, account.ID)
	assert.False(t, utils.IsTrue(got.IsActive))
}

func TestResolveCallback_FailureLeavesAccountUntouched(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_300")
	require.NoError(t, err)

	result, err := env.payments.ResolveCallback(ctx, "stub", failureFor("ws_CO_300", "insufficient funds"))
	require.NoError(t, err)
	assert.True(t, result.Applied)

	resolved := env.reloadAttempt(t, attempt.ID)
	assert.Equal(t, models.PaymentAttemptStatusFailed, resolved.Status)
	assert.Equal(t, "insufficient funds", utils.StrOrEmpty(resolved.FailureReason))
	assert.Nil(t, resolved.ExternalReceiptID)

	got := env.reloadAccount(t, account.ID)
	assert.False(t, utils.IsTrue(got.IsActive))
	assert.False(t, utils.IsTrue(got.IsPremium))

	// A late success for the same token changes nothing
	_, err = env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_300", "R9"))
	assert.True(t, IsAlreadyResolved(err))
	assert.False(t, utils.IsTrue(env.reloadAccount(t, account.ID).IsActive))
}

func TestResolveCallback_ProviderMismatchRejected(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_350")
	require.NoError(t, err)

	_, err = env.payments.ResolveCallback(ctx, "mpesa", successFor("ws_CO_350", "R1"))
	assert.True(t, IsInvalidCallback(err))
	assert.True(t, env.reloadAttempt(t, attempt.ID).IsPending())
}

func TestResolveCallback_ConcurrentDuplicatesTransitionOnce(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_400")
	require.NoError(t, err)

	const deliveries = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		dupes   int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_400", "R1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && result.Applied:
				applied++
			case IsAlreadyResolved(err):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, deliveries-1, dupes)

	audits, err := env.auditRepo.ListByAction(ctx, models.AuditActionAccountActivated, 10, 0)
	require.NoError(t, err)
	assert.Len(t, audits, 1)
}

func TestResolveCallback_AccountMissingKeepsLedgerWrite(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_500")
	require.NoError(t, err)
	require.NoError(t, env.accountRepo.Delete(ctx, account.ID))

	result, err := env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_500", "R5"))
	assert.True(t, IsAccountMissing(err))
	require.NotNil(t, result)
	assert.True(t, result.Applied)
	assert.Nil(t, result.Account)

	assert.Equal(t, models.PaymentAttemptStatusSuccess, env.reloadAttempt(t, attempt.ID).Status)
}

func TestResolveCallback_RenewalReplacesWindow(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	remaining := env.now.Add(10 * 24 * time.Hour)
	account, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(remaining))
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_600")
	require.NoError(t, err)

	_, err = env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_600", "R6"))
	require.NoError(t, err)

	got := env.reloadAccount(t, account.ID)
	require.NotNil(t, got.PremiumUntil)
	assert.WithinDuration(t, env.now.Add(utils.PremiumWindow), *got.PremiumUntil, time.Second)
}

func TestAcknowledgeCallback_ProcessesInBackground(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_700")
	require.NoError(t, err)

	ack := env.payments.AcknowledgeCallback(ctx, "stub",
		[]byte(`{"correlationToken":"ws_CO_700","outcome":"success","receiptId":"R7"}`), nil)
	assert.Equal(t, dto.AcceptedCallbackAck(), ack)

	env.payments.Wait()

	assert.True(t, utils.IsTrue(env.reloadAccount(t, account.ID).IsActive))

	var event models.PaymentCallbackEvent
	require.NoError(t, env.tdb.DB.Where("correlation_token = ?", "ws_CO_700").First(&event).Error)
	assert.Equal(t, models.CallbackOutcomeApplied, event.Outcome)
	assert.NotNil(t, event.ProcessedAt)
}

func TestAcknowledgeCallback_MalformedBodyIsAckedAndRejected(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	ack := env.payments.AcknowledgeCallback(ctx, "stub", []byte(`not json`), nil)
	assert.Equal(t, 0, ack.ResultCode)
	assert.Equal(t, "Accepted", ack.ResultDesc)
	env.payments.Wait()

	var events []models.PaymentCallbackEvent
	require.NoError(t, env.tdb.DB.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.CallbackOutcomeRejected, events[0].Outcome)
	assert.NotNil(t, events[0].ProcessingError)
}

func TestAcknowledgeCallback_UnknownProviderIsAcked(t *testing.T) {
	env := newFlowEnv(t)

	ack := env.payments.AcknowledgeCallback(context.Background(), "paypal", []byte(`{}`), nil)
	assert.Equal(t, dto.AcceptedCallbackAck(), ack)
	env.payments.Wait()
}

func TestPaymentHistory_MasksPhone(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_800")
	require.NoError(t, err)

	resp, err := env.payments.PaymentHistory(ctx, &dto.PaymentHistoryRequest{AccountID: account.ID})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "2547****5678", resp.Items[0].Phone)
	assert.Equal(t, uint(1), resp.Pagination.TotalItems)
}

func TestPlans(t *testing.T) {
	env := newFlowEnv(t)

	plans := env.payments.Plans(context.Background())
	require.Len(t, plans.Plans, 2)
	assert.Equal(t, uint64(50), plans.Plans[0].Amount)
	assert.Equal(t, uint64(300), plans.Plans[1].Amount)
	assert.Equal(t, 30, plans.Plans[1].DurationDays)
}
