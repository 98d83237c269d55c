// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/anchorchat/anchor/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// EntitlementGrant is the account mutation applied by a successful payment
type EntitlementGrant struct {
	GrantPremium bool
	PremiumUntil *time.Time
	ActivatedAt  time.Time
}

// AccountFlagsUpdate carries the admin-editable flags; nil fields are left untouched
type AccountFlagsUpdate struct {
	IsAdmin           *bool
	IsBanned          *bool
	IsPremium         *bool
	PremiumUntil      *time.Time
	ClearPremiumUntil bool
}

// AccountRepository defines operations for accounts (the entitlement store)
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	ByUUID(ctx context.Context, uuid string) (*models.Account, error)
	// ApplyEntitlement activates the account and optionally replaces its premium window.
	// Returns false when the account row does not exist.
	ApplyEntitlement(ctx context.Context, accountID uint, grant EntitlementGrant) (bool, error)
	// ExpirePremium clears a lapsed premium window. Returns false when the row was not lapsed at now.
	ExpirePremium(ctx context.Context, accountID uint, now time.Time) (bool, error)
	ExpireLapsedPremium(ctx context.Context, now time.Time) (int64, error)
	UpdateLastLogin(ctx context.Context, accountID uint, at time.Time) error
	UpdateFlags(ctx context.Context, accountID uint, update AccountFlagsUpdate) error
	Delete(ctx context.Context, accountID uint) error
}

// AttemptResolution is the terminal state written onto a pending payment attempt
type AttemptResolution struct {
	Status            models.PaymentAttemptStatus
	ExternalReceiptID *string
	FailureReason     *string
	ResultCode        *string
	ResolvedAt        time.Time
}

// PaymentAttemptRepository defines operations for the payment ledger
type PaymentAttemptRepository interface {
	Repository[models.PaymentAttempt, models.PaymentAttemptFilter]
	ByUUID(ctx context.Context, uuid string) (*models.PaymentAttempt, error)
	ByCorrelationToken(ctx context.Context, token string) (*models.PaymentAttempt, error)
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.PaymentAttempt, error)
	// MarkResolved moves a pending attempt to a terminal state. Returns false when the attempt
	// was no longer pending, i.e. another delivery already resolved it.
	MarkResolved(ctx context.Context, attemptID uint, resolution AttemptResolution) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.PaymentAttempt, error)
}

// PaymentCallbackEventRepository defines operations for the raw callback inbox
type PaymentCallbackEventRepository interface {
	Repository[models.PaymentCallbackEvent, models.PaymentCallbackEventFilter]
	MarkProcessed(ctx context.Context, eventID uint, outcome models.CallbackOutcome, processingError *string, at time.Time) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}
