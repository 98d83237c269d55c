package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anchorchat/anchor/models"
	"gorm.io/gorm"
)

// PaymentAttemptRepositoryImpl implements PaymentAttemptRepository interface
type PaymentAttemptRepositoryImpl struct {
	*BaseRepository[models.PaymentAttempt, models.PaymentAttemptFilter]
}

// NewPaymentAttemptRepository creates a new payment attempt repository
func NewPaymentAttemptRepository(db *gorm.DB) PaymentAttemptRepository {
	return &PaymentAttemptRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PaymentAttempt, models.PaymentAttemptFilter](db),
	}
}

// ByUUID retrieves a payment attempt by UUID
func (r *PaymentAttemptRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.PaymentAttempt, error) {
	db := r.getDB(ctx)

	var attempt models.PaymentAttempt
	err := db.Where("uuid = ?", uuid).Last(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment attempt by uuid: %w", err)
	}

	return &attempt, nil
}

// ByCorrelationToken retrieves the single attempt issued for a provider checkout session
func (r *PaymentAttemptRepositoryImpl) ByCorrelationToken(ctx context.Context, token string) (*models.PaymentAttempt, error) {
	db := r.getDB(ctx)

	var attempt models.PaymentAttempt
	err := db.Where("correlation_token = ?", token).Last(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment attempt by correlation token: %w", err)
	}

	return &attempt, nil
}

// ListByAccount retrieves an account's ledger, newest first
func (r *PaymentAttemptRepositoryImpl) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.PaymentAttempt, error) {
	return r.ByFilter(ctx, models.PaymentAttemptFilter{AccountID: &accountID}, "created_at DESC, id DESC", limit, offset)
}

// MarkResolved is a compare-and-swap on status: it only touches rows that are still pending
func (r *PaymentAttemptRepositoryImpl) MarkResolved(ctx context.Context, attemptID uint, resolution AttemptResolution) (bool, error) {
	if resolution.Status != models.PaymentAttemptStatusSuccess && resolution.Status != models.PaymentAttemptStatusFailed {
		return false, fmt.Errorf("invalid terminal status %q", resolution.Status)
	}

	updates := map[string]any{
		"status":      resolution.Status,
		"resolved_at": resolution.ResolvedAt,
		"updated_at":  resolution.ResolvedAt,
	}
	if resolution.ExternalReceiptID != nil {
		updates["external_receipt_id"] = *resolution.ExternalReceiptID
	}
	if resolution.FailureReason != nil {
		updates["failure_reason"] = *resolution.FailureReason
	}
	if resolution.ResultCode != nil {
		updates["result_code"] = *resolution.ResultCode
	}

	affected, err := r.updateColumns(ctx, updates, "id = ? AND status = ?", attemptID, models.PaymentAttemptStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to resolve payment attempt %d: %w", attemptID, err)
	}
	return affected == 1, nil
}

// ListStalePending lists attempts still waiting for a callback that were created before olderThan
func (r *PaymentAttemptRepositoryImpl) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.PaymentAttempt, error) {
	status := models.PaymentAttemptStatusPending
	return r.ByFilter(ctx, models.PaymentAttemptFilter{Status: &status, CreatedBefore: &olderThan}, "created_at ASC", limit, 0)
}

// ByFilter retrieves payment attempts based on filter criteria
func (r *PaymentAttemptRepositoryImpl) ByFilter(ctx context.Context, filter models.PaymentAttemptFilter, orderBy string, limit, offset int) ([]*models.PaymentAttempt, error) {
	db := r.getDB(ctx)

	var attempts []*models.PaymentAttempt
	query := r.applyFilter(db.Model(&models.PaymentAttempt{}), filter)
	query = paginate(query, orderBy, limit, offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to find payment attempts by filter: %w", err)
	}
	return attempts, nil
}

// Count returns the number of payment attempts matching the filter
func (r *PaymentAttemptRepositoryImpl) Count(ctx context.Context, filter models.PaymentAttemptFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.PaymentAttempt{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count payment attempts: %w", err)
	}
	return count, nil
}

// Exists checks if any payment attempt matching the filter exists
func (r *PaymentAttemptRepositoryImpl) Exists(ctx context.Context, filter models.PaymentAttemptFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PaymentAttemptRepositoryImpl) applyFilter(query *gorm.DB, filter models.PaymentAttemptFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.Purpose != nil {
		query = query.Where("purpose = ?", *filter.Purpose)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CorrelationToken != nil {
		query = query.Where("correlation_token = ?", *filter.CorrelationToken)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
