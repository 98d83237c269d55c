package models

import (
	"encoding/json"
	"time"
)

// CallbackOutcome records what the effect phase did with a received callback
type CallbackOutcome string

const (
	CallbackOutcomeReceived        CallbackOutcome = "received"         // Stored, not yet processed
	CallbackOutcomeApplied         CallbackOutcome = "applied"          // Won the transition
	CallbackOutcomeDuplicate       CallbackOutcome = "duplicate"        // Attempt already terminal
	CallbackOutcomeUnknown         CallbackOutcome = "unknown"          // No attempt with that token
	CallbackOutcomeAccountMissing  CallbackOutcome = "account_missing"  // Attempt marked, owner gone
	CallbackOutcomeRejected        CallbackOutcome = "rejected"         // Failed provider verification or parsing
	CallbackOutcomeProcessingError CallbackOutcome = "processing_error" // Internal error after acknowledgment
)

// PaymentCallbackEvent is the raw inbox of provider callbacks, kept for replay and reconciliation
type PaymentCallbackEvent struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Provider         PaymentProvider `gorm:"size:20;not null;index:idx_callback_events_provider" json:"provider"`
	CorrelationToken string          `gorm:"size:255;index:idx_callback_events_correlation_token" json:"correlation_token"`
	ResultCode       string          `gorm:"size:20" json:"result_code"`
	PayloadJSON      json.RawMessage `gorm:"type:text" json:"payload"`
	Outcome          CallbackOutcome `gorm:"size:30;not null;default:'received';index:idx_callback_events_outcome" json:"outcome"`
	ProcessingError  *string         `gorm:"type:text" json:"processing_error,omitempty"`
	ReceivedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

func (PaymentCallbackEvent) TableName() string {
	return "payment_callback_events"
}

// PaymentCallbackEventFilter represents filter criteria for callback inbox queries
type PaymentCallbackEventFilter struct {
	Provider         *PaymentProvider
	CorrelationToken *string
	Outcome          *CallbackOutcome
	ReceivedAfter    *time.Time
}
