package testing

import (
	"fmt"
	"time"

	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of every fixture account
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// AccountOption tweaks a fixture account before it is inserted
type AccountOption func(*models.Account)

// WithActive marks the account as activated
func WithActive() AccountOption {
	return func(a *models.Account) {
		a.IsActive = utils.ToPtr(true)
		a.ActivatedAt = utils.UTCNowPtr()
	}
}

// WithPremiumUntil gives the account a premium window ending at until
func WithPremiumUntil(until time.Time) AccountOption {
	return func(a *models.Account) {
		a.IsPremium = utils.ToPtr(true)
		a.PremiumUntil = &until
	}
}

// WithPlan sets the plan chosen at signup
func WithPlan(plan models.AccountPlan) AccountOption {
	return func(a *models.Account) { a.Plan = plan }
}

// WithAdmin grants the admin role
func WithAdmin() AccountOption {
	return func(a *models.Account) { a.IsAdmin = utils.ToPtr(true) }
}

// WithBanned bans the account
func WithBanned() AccountOption {
	return func(a *models.Account) { a.IsBanned = utils.ToPtr(true) }
}

// CreateTestAccount inserts a pending account with a random email and TestPassword
func (tf *TestFixtures) CreateTestAccount(opts ...AccountOption) (*models.Account, error) {
	// MinCost keeps fixture creation fast
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Email:        fmt.Sprintf("anon.%s@example.com", uuid.NewString()[:8]),
		PasswordHash: string(hashedPassword),
		Avatar:       models.AvatarFox,
		Plan:         models.AccountPlanFree,
		IsActive:     utils.ToPtr(false),
		IsPremium:    utils.ToPtr(false),
		IsAdmin:      utils.ToPtr(false),
		IsBanned:     utils.ToPtr(false),
	}
	for _, opt := range opts {
		opt(account)
	}

	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}
	return account, nil
}

// CreatePendingAttempt inserts a pending payment attempt for the account
func (tf *TestFixtures) CreatePendingAttempt(account *models.Account, purpose models.PaymentPurpose, token string) (*models.PaymentAttempt, error) {
	amount := utils.ActivationFeeKES
	if purpose == models.PaymentPurposePremium {
		amount = utils.PremiumPriceKES
	}

	attempt := &models.PaymentAttempt{
		AccountID:        account.ID,
		Provider:         models.PaymentProviderStub,
		Purpose:          purpose,
		GrantsPremium:    purpose == models.PaymentPurposePremium || account.Plan == models.AccountPlanPremium,
		Amount:           amount,
		Currency:         utils.KenyanShillingCurrency,
		ContactHandle:    "254712345678",
		CorrelationToken: token,
		Status:           models.PaymentAttemptStatusPending,
	}

	if err := tf.DB.DB.Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create test payment attempt: %w", err)
	}
	return attempt, nil
}
