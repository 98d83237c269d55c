package businessflow

import (
	"strings"
	"testing"
	"time"

	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	testutil "github.com/anchorchat/anchor/testing"
	"github.com/stretchr/testify/require"
)

// flowEnv wires every flow against one in-memory database and a fixed clock
type flowEnv struct {
	tdb *testutil.TestDB
	fx  *testutil.TestFixtures

	accountRepo  repository.AccountRepository
	attemptRepo  repository.PaymentAttemptRepository
	callbackRepo repository.PaymentCallbackEventRepository
	auditRepo    repository.AuditLogRepository

	stub   *services.StubGateway
	tokens services.TokenService

	payments     *PaymentFlowImpl
	entitlements *EntitlementFlowImpl
	signup       *SignupFlowImpl
	login        *LoginFlowImpl
	admin        *AdminFlowImpl

	now time.Time
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()

	tdb, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	env := &flowEnv{
		tdb:          tdb,
		fx:           testutil.NewTestFixtures(tdb),
		accountRepo:  repository.NewAccountRepository(tdb.DB),
		attemptRepo:  repository.NewPaymentAttemptRepository(tdb.DB),
		callbackRepo: repository.NewPaymentCallbackEventRepository(tdb.DB),
		auditRepo:    repository.NewAuditLogRepository(tdb.DB),
		stub:         services.NewStubGateway(),
		now:          time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	env.tokens, err = services.NewTokenService(time.Hour, 2*time.Hour, "anchor", "anchor-api", false, "", "", strings.Repeat("s", 32))
	require.NoError(t, err)

	clock := func() time.Time { return env.now }

	env.payments = NewPaymentFlow(env.accountRepo, env.attemptRepo, env.callbackRepo, env.auditRepo,
		[]services.PaymentGateway{env.stub}, nil, nil, tdb.DB, PaymentFlowConfig{
			Pricing:         DefaultPricing(),
			PrimaryProvider: string(models.PaymentProviderStub),
			CallbackBaseURL: "https://api.anchor.test/api/v1/payments/callback/",
		}).(*PaymentFlowImpl)
	env.payments.now = clock

	env.entitlements = NewEntitlementFlow(env.accountRepo, env.attemptRepo, env.auditRepo, nil).(*EntitlementFlowImpl)
	env.entitlements.now = clock

	env.signup = NewSignupFlow(env.accountRepo, env.auditRepo, env.tokens, nil, SignupFlowConfig{
		Pricing:    DefaultPricing(),
		BcryptCost: 4,
	}).(*SignupFlowImpl)
	env.signup.now = clock

	env.login = NewLoginFlow(env.accountRepo, env.auditRepo, env.entitlements, env.tokens, time.Hour).(*LoginFlowImpl)
	env.login.now = clock

	env.admin = NewAdminFlow(env.accountRepo, env.attemptRepo, env.auditRepo, env.payments, env.entitlements,
		tdb.DB, 0, 15*time.Minute).(*AdminFlowImpl)
	env.admin.now = clock

	return env
}

func (env *flowEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *flowEnv) reloadAccount(t *testing.T, id uint) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, env.tdb.DB.First(&account, id).Error)
	return &account
}

func (env *flowEnv) reloadAttempt(t *testing.T, id uint) *models.PaymentAttempt {
	t.Helper()
	var attempt models.PaymentAttempt
	require.NoError(t, env.tdb.DB.First(&attempt, id).Error)
	return &attempt
}

func successFor(token, receipt string) *services.CallbackNotification {
	return &services.CallbackNotification{
		CorrelationToken:  token,
		Outcome:           services.CallbackOutcomeSuccess,
		ResultCode:        "0",
		ResultDesc:        "The service request is processed successfully.",
		ExternalReceiptID: receipt,
	}
}

func failureFor(token, reason string) *services.CallbackNotification {
	return &services.CallbackNotification{
		CorrelationToken: token,
		Outcome:          services.CallbackOutcomeFailure,
		ResultCode:       "1",
		ResultDesc:       reason,
	}
}
