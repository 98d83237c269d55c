package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (30 days)
	AccessTokenTTL = 30 * 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (60 days)
	RefreshTokenTTL = 60 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Payment constants
const (
	KenyanShillingCurrency = "KES"

	// PremiumWindow is the entitlement granted by one premium payment
	PremiumWindow = 30 * 24 * time.Hour

	// ActivationFeeKES is the one-off signup fee
	ActivationFeeKES uint64 = 50

	// PremiumPriceKES is the price of one premium window
	PremiumPriceKES uint64 = 300

	// CallbackProcessingTimeout bounds the background effect phase of a provider callback
	CallbackProcessingTimeout = 30 * time.Second

	// CallbackLockTTL is how long a per-token callback lock is held at most.
	// It is never shorter than CallbackProcessingTimeout.
	CallbackLockTTL = 45 * time.Second
)
