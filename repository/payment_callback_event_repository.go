package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/anchorchat/anchor/models"
	"gorm.io/gorm"
)

// PaymentCallbackEventRepositoryImpl implements PaymentCallbackEventRepository interface
type PaymentCallbackEventRepositoryImpl struct {
	*BaseRepository[models.PaymentCallbackEvent, models.PaymentCallbackEventFilter]
}

// NewPaymentCallbackEventRepository creates a new callback inbox repository
func NewPaymentCallbackEventRepository(db *gorm.DB) PaymentCallbackEventRepository {
	return &PaymentCallbackEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PaymentCallbackEvent, models.PaymentCallbackEventFilter](db),
	}
}

// MarkProcessed stores the outcome of the effect phase for an inbox row
func (r *PaymentCallbackEventRepositoryImpl) MarkProcessed(ctx context.Context, eventID uint, outcome models.CallbackOutcome, processingError *string, at time.Time) error {
	updates := map[string]any{
		"outcome":      outcome,
		"processed_at": at,
	}
	if processingError != nil {
		updates["processing_error"] = *processingError
	}

	if _, err := r.updateColumns(ctx, updates, "id = ?", eventID); err != nil {
		return fmt.Errorf("failed to mark callback event %d processed: %w", eventID, err)
	}
	return nil
}

// ByFilter retrieves callback events based on filter criteria
func (r *PaymentCallbackEventRepositoryImpl) ByFilter(ctx context.Context, filter models.PaymentCallbackEventFilter, orderBy string, limit, offset int) ([]*models.PaymentCallbackEvent, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "received_at DESC"
	}

	var events []*models.PaymentCallbackEvent
	query := r.applyFilter(db.Model(&models.PaymentCallbackEvent{}), filter)
	query = paginate(query, orderBy, limit, offset)

	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to find callback events by filter: %w", err)
	}
	return events, nil
}

// Count returns the number of callback events matching the filter
func (r *PaymentCallbackEventRepositoryImpl) Count(ctx context.Context, filter models.PaymentCallbackEventFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.PaymentCallbackEvent{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count callback events: %w", err)
	}
	return count, nil
}

// Exists checks if any callback event matching the filter exists
func (r *PaymentCallbackEventRepositoryImpl) Exists(ctx context.Context, filter models.PaymentCallbackEventFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PaymentCallbackEventRepositoryImpl) applyFilter(query *gorm.DB, filter models.PaymentCallbackEventFilter) *gorm.DB {
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.CorrelationToken != nil {
		query = query.Where("correlation_token = ?", *filter.CorrelationToken)
	}
	if filter.Outcome != nil {
		query = query.Where("outcome = ?", *filter.Outcome)
	}
	if filter.ReceivedAfter != nil {
		query = query.Where("received_at >= ?", *filter.ReceivedAfter)
	}
	return query
}
