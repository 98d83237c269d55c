package dto

import "time"

// AdminAccountDTO is the account view shown in the admin console
type AdminAccountDTO struct {
	AccountDTO
	InternalID  uint       `json:"internalId"`
	IsBanned    bool       `json:"isBanned"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// AdminListAccountsRequest filters the account list
type AdminListAccountsRequest struct {
	Page      uint    `query:"page" validate:"min=1"`
	PageSize  uint    `query:"pageSize" validate:"min=1,max=200"`
	Email     *string `query:"email" validate:"omitempty,max=255"`
	IsActive  *bool   `query:"isActive"`
	IsPremium *bool   `query:"isPremium"`
	IsBanned  *bool   `query:"isBanned"`
}

type AdminListAccountsResponse struct {
	Items      []AdminAccountDTO `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}

// AdminSetPremiumRequest sets or clears an account's premium window.
// With IsPremium and no PremiumUntil, Days (default 30) from now is used.
type AdminSetPremiumRequest struct {
	IsPremium    bool       `json:"isPremium"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
	Days         *int       `json:"days,omitempty" validate:"omitempty,min=1,max=3650"`
}

type AdminSetAdminRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

// AdminAttemptDTO is a ledger row with the fields operators reconcile against
type AdminAttemptDTO struct {
	PaymentAttemptDTO
	InternalID        uint    `json:"internalId"`
	AccountID         uint    `json:"accountId"`
	ContactHandle     string  `json:"contactHandle"`
	CorrelationToken  string  `json:"correlationToken"`
	MerchantRequestID string  `json:"merchantRequestId,omitempty"`
	ResultCode        *string `json:"resultCode,omitempty"`
	GrantsPremium     bool    `json:"grantsPremium"`
}

// AdminListAttemptsRequest filters the ledger
type AdminListAttemptsRequest struct {
	Page     uint    `query:"page" validate:"min=1"`
	PageSize uint    `query:"pageSize" validate:"min=1,max=200"`
	Status   *string `query:"status" validate:"omitempty,oneof=pending success failed"`
	Provider *string `query:"provider" validate:"omitempty,oneof=mpesa intasend stub"`
	Purpose  *string `query:"purpose" validate:"omitempty,oneof=activation premium"`
}

type AdminListAttemptsResponse struct {
	Items      []AdminAttemptDTO `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}

// AdminReconcileRequest resolves an abandoned pending attempt by hand
type AdminReconcileRequest struct {
	Outcome       string `json:"outcome" validate:"required,oneof=success failure"`
	ReceiptID     string `json:"receiptId,omitempty" validate:"required_if=Outcome success,max=64"`
	FailureReason string `json:"failureReason,omitempty" validate:"max=255"`
}

type AdminReconcileResponse struct {
	Attempt AdminAttemptDTO  `json:"attempt"`
	Account *AdminAccountDTO `json:"account,omitempty"`
	Applied bool             `json:"applied"`
}

// AdminStalePendingDTO summarises attempts still waiting for a callback
type AdminStalePendingDTO struct {
	Count int               `json:"count"`
	Items []AdminAttemptDTO `json:"items"`
}
