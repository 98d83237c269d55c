package dto

import "time"

// InitiatePaymentRequest starts an STK push for the authenticated account
type InitiatePaymentRequest struct {
	AccountID uint   `json:"-"` // From the authenticated context
	Amount    uint64 `json:"amount" validate:"required,gt=0" example:"50"`
	Phone     string `json:"phone" validate:"required,ke_phone" example:"0712345678"`
	Purpose   string `json:"purpose,omitempty" validate:"omitempty,oneof=activation premium" example:"activation"`
}

// InitiatePaymentResponse carries the correlation token the client can show while waiting
type InitiatePaymentResponse struct {
	CorrelationToken string `json:"correlationToken" example:"ws_CO_191220191020363925"`
	AttemptID        string `json:"attemptId"`
	Prompt           string `json:"prompt" example:"Success. Request accepted for processing"`
	Amount           uint64 `json:"amount"`
	Currency         string `json:"currency"`
	Provider         string `json:"provider"`
}

// CallbackAck is the fixed acknowledgment every provider callback receives
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// AcceptedCallbackAck returns the acknowledgment body
func AcceptedCallbackAck() CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
}

// PaymentAttemptDTO is one ledger row as shown to its owner
type PaymentAttemptDTO struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	Purpose       string     `json:"purpose"`
	Amount        uint64     `json:"amount"`
	Currency      string     `json:"currency"`
	Phone         string     `json:"phone"` // masked
	Status        string     `json:"status"`
	ReceiptID     *string    `json:"receiptId,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// PaymentHistoryRequest lists the caller's ledger
type PaymentHistoryRequest struct {
	AccountID uint `json:"-"`
	Page      uint `json:"page" validate:"min=1"`
	PageSize  uint `json:"pageSize" validate:"min=1,max=100"`
}

// PaymentHistoryResponse represents the response for payment history
type PaymentHistoryResponse struct {
	Items      []PaymentAttemptDTO `json:"items"`
	Pagination PaginationInfo      `json:"pagination"`
}

// PlanDTO describes one purchasable product
type PlanDTO struct {
	Purpose      string `json:"purpose" example:"premium"`
	Name         string `json:"name" example:"Premium"`
	Amount       uint64 `json:"amount" example:"300"`
	Currency     string `json:"currency" example:"KES"`
	DurationDays int    `json:"durationDays,omitempty" example:"30"`
	Description  string `json:"description"`
}

// PlansResponse lists the purchasable products
type PlansResponse struct {
	Plans []PlanDTO `json:"plans"`
}
