// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToAccountDTO converts an account to the owner's view. The premium fields are
// read through EffectivePremium so a lapsed window never leaks out.
func ToAccountDTO(account models.Account, now time.Time) dto.AccountDTO {
	out := dto.AccountDTO{
		ID:          account.UUID.String(),
		Email:       account.Email,
		Avatar:      string(account.Avatar),
		Plan:        string(account.Plan),
		IsActive:    utils.IsTrue(account.IsActive),
		IsPremium:   account.EffectivePremium(now),
		IsAdmin:     utils.IsTrue(account.IsAdmin),
		ActivatedAt: utils.TimeToUTCPtr(account.ActivatedAt),
		CreatedAt:   account.CreatedAt.UTC(),
	}
	if out.IsPremium {
		out.PremiumUntil = utils.TimeToUTCPtr(account.PremiumUntil)
	}
	return out
}

func ToActivationStatusDTO(account models.Account, now time.Time) dto.ActivationStatusResponse {
	view := ToAccountDTO(account, now)
	return dto.ActivationStatusResponse{
		IsActive:     view.IsActive,
		IsPremium:    view.IsPremium,
		PremiumUntil: view.PremiumUntil,
	}
}

func ToAdminAccountDTO(account models.Account, now time.Time) dto.AdminAccountDTO {
	return dto.AdminAccountDTO{
		AccountDTO:  ToAccountDTO(account, now),
		InternalID:  account.ID,
		IsBanned:    utils.IsTrue(account.IsBanned),
		LastLoginAt: utils.TimeToUTCPtr(account.LastLoginAt),
		UpdatedAt:   account.UpdatedAt.UTC(),
	}
}

func ToPaymentAttemptDTO(attempt models.PaymentAttempt) dto.PaymentAttemptDTO {
	return dto.PaymentAttemptDTO{
		ID:            attempt.UUID.String(),
		Provider:      string(attempt.Provider),
		Purpose:       string(attempt.Purpose),
		Amount:        attempt.Amount,
		Currency:      attempt.Currency,
		Phone:         maskContactHandle(attempt.ContactHandle),
		Status:        string(attempt.Status),
		ReceiptID:     attempt.ExternalReceiptID,
		FailureReason: attempt.FailureReason,
		CreatedAt:     attempt.CreatedAt.UTC(),
		ResolvedAt:    utils.TimeToUTCPtr(attempt.ResolvedAt),
	}
}

func ToAdminAttemptDTO(attempt models.PaymentAttempt) dto.AdminAttemptDTO {
	return dto.AdminAttemptDTO{
		PaymentAttemptDTO: ToPaymentAttemptDTO(attempt),
		InternalID:        attempt.ID,
		AccountID:         attempt.AccountID,
		ContactHandle:     attempt.ContactHandle,
		CorrelationToken:  attempt.CorrelationToken,
		MerchantRequestID: attempt.MerchantRequestID,
		ResultCode:        attempt.ResultCode,
		GrantsPremium:     attempt.GrantsPremium,
	}
}

// maskContactHandle shows 2547****5678
func maskContactHandle(msisdn string) string {
	if len(msisdn) < 8 {
		return msisdn
	}
	return msisdn[:4] + "****" + msisdn[len(msisdn)-4:]
}

func calculatePaginationInfo(page, pageSize, totalItems uint) dto.PaginationInfo {
	totalPages := (totalItems + pageSize - 1) / pageSize // Ceiling division

	return dto.PaginationInfo{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// normalizePage applies defaults for missing paging parameters
func normalizePage(page, pageSize, maxPageSize uint) (uint, uint) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// getAccount loads an account or returns ErrAccountNotFound
func getAccount(ctx context.Context, accountRepo repository.AccountRepository, accountID uint) (*models.Account, error) {
	account, err := accountRepo.ByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, accountID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	var extra json.RawMessage
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
		if len(metadata.Additional) > 0 {
			extra, _ = json.Marshal(metadata.Additional)
		}
	}

	audit := &models.AuditLog{
		AccountID:    accountID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		Metadata:     extra,
		ErrorMessage: errorMsg,
	}

	// Extract request ID from context if available
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = utils.ToPtr(metadata.RequestID)
	}

	return auditRepo.Save(ctx, audit)
}
