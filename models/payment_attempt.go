package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentAttemptStatus represents the status of a ledger entry
type PaymentAttemptStatus string

const (
	PaymentAttemptStatusPending PaymentAttemptStatus = "pending" // Checkout started, waiting for the provider callback
	PaymentAttemptStatusSuccess PaymentAttemptStatus = "success" // Provider confirmed the payment
	PaymentAttemptStatusFailed  PaymentAttemptStatus = "failed"  // Provider reported a failure or the user cancelled
)

// PaymentProvider names the external checkout provider
type PaymentProvider string

const (
	PaymentProviderMpesa    PaymentProvider = "mpesa"
	PaymentProviderIntaSend PaymentProvider = "intasend"
	PaymentProviderStub     PaymentProvider = "stub"
)

// PaymentPurpose is what the customer is paying for
type PaymentPurpose string

const (
	PaymentPurposeActivation PaymentPurpose = "activation" // one-off signup fee
	PaymentPurposePremium    PaymentPurpose = "premium"    // one premium window
)

// IsValidPaymentPurpose reports whether p is a known purpose
func IsValidPaymentPurpose(p string) bool {
	return p == string(PaymentPurposeActivation) || p == string(PaymentPurposePremium)
}

// PaymentAttempt is one ledger row, correlated to exactly one external checkout session
type PaymentAttempt struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_payment_attempts_uuid;not null" json:"uuid"`
	AccountID uint      `gorm:"not null;index:idx_payment_attempts_account_id" json:"account_id"`

	Provider      PaymentProvider `gorm:"size:20;not null" json:"provider"`
	Purpose       PaymentPurpose  `gorm:"size:20;not null" json:"purpose"`
	GrantsPremium bool            `gorm:"not null" json:"grants_premium"` // Captured from purpose and account plan at initiation

	Amount        uint64 `gorm:"not null" json:"amount"` // Whole shillings
	Currency      string `gorm:"size:3;not null;default:'KES'" json:"currency"`
	ContactHandle string `gorm:"size:20;not null" json:"contact_handle"` // MSISDN charged

	// Provider session
	CorrelationToken  string `gorm:"size:255;not null;uniqueIndex:uk_payment_attempts_correlation_token" json:"correlation_token"`
	MerchantRequestID string `gorm:"size:255" json:"merchant_request_id,omitempty"`
	CustomerMessage   string `gorm:"type:text" json:"customer_message,omitempty"`

	// Outcome
	Status            PaymentAttemptStatus `gorm:"size:20;not null;default:'pending';index:idx_payment_attempts_status" json:"status"`
	ExternalReceiptID *string              `gorm:"size:255;index:idx_payment_attempts_receipt" json:"external_receipt_id,omitempty"` // Set only on success
	FailureReason     *string              `gorm:"type:text" json:"failure_reason,omitempty"`                                      // Set only on failure
	ResultCode        *string              `gorm:"size:20" json:"result_code,omitempty"`
	ResolvedAt        *time.Time           `json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_payment_attempts_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}

// BeforeCreate ensures UUID is set
func (pa *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if pa.UUID == uuid.Nil {
		pa.UUID = uuid.New()
	}
	return nil
}

// IsTerminal returns true once the attempt has left pending
func (pa *PaymentAttempt) IsTerminal() bool {
	return pa.Status == PaymentAttemptStatusSuccess || pa.Status == PaymentAttemptStatusFailed
}

// IsPending returns true while the attempt waits for its callback
func (pa *PaymentAttempt) IsPending() bool {
	return pa.Status == PaymentAttemptStatusPending
}

// PaymentAttemptFilter represents filter criteria for ledger queries
type PaymentAttemptFilter struct {
	ID               *uint
	UUID             *uuid.UUID
	AccountID        *uint
	Provider         *PaymentProvider
	Purpose          *PaymentPurpose
	Status           *PaymentAttemptStatus
	CorrelationToken *string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}
