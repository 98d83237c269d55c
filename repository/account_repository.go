package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/utils"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByEmail retrieves an account by its normalized email
func (r *AccountRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	db := r.getDB(ctx)

	var account models.Account
	err := db.Where("email = ?", utils.NormalizeEmail(email)).Last(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}

	return &account, nil
}

// ByUUID retrieves an account by its public UUID
func (r *AccountRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Account, error) {
	db := r.getDB(ctx)

	var account models.Account
	err := db.Where("uuid = ?", uuid).Last(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account by uuid: %w", err)
	}

	return &account, nil
}

// ApplyEntitlement sets is_active and, for premium grants, replaces the premium window
func (r *AccountRepositoryImpl) ApplyEntitlement(ctx context.Context, accountID uint, grant EntitlementGrant) (bool, error) {
	updates := map[string]any{
		"is_active":    true,
		"activated_at": gorm.Expr("COALESCE(activated_at, ?)", grant.ActivatedAt),
		"updated_at":   grant.ActivatedAt,
	}
	if grant.GrantPremium {
		updates["is_premium"] = true
		updates["premium_until"] = grant.PremiumUntil
		updates["plan"] = models.AccountPlanPremium
	}

	affected, err := r.updateColumns(ctx, updates, "id = ?", accountID)
	if err != nil {
		return false, fmt.Errorf("failed to apply entitlement to account %d: %w", accountID, err)
	}
	return affected > 0, nil
}

// ExpirePremium clears is_premium and premium_until only when the window has lapsed at now
func (r *AccountRepositoryImpl) ExpirePremium(ctx context.Context, accountID uint, now time.Time) (bool, error) {
	affected, err := r.updateColumns(ctx,
		map[string]any{"is_premium": false, "premium_until": nil, "updated_at": now},
		"id = ? AND is_premium = ? AND premium_until IS NOT NULL AND premium_until < ?",
		accountID, true, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire premium for account %d: %w", accountID, err)
	}
	return affected > 0, nil
}

// ExpireLapsedPremium clears every lapsed premium window and returns how many accounts changed
func (r *AccountRepositoryImpl) ExpireLapsedPremium(ctx context.Context, now time.Time) (int64, error) {
	affected, err := r.updateColumns(ctx,
		map[string]any{"is_premium": false, "premium_until": nil, "updated_at": now},
		"is_premium = ? AND premium_until IS NOT NULL AND premium_until < ?",
		true, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed premium: %w", err)
	}
	return affected, nil
}

// UpdateLastLogin records a successful login
func (r *AccountRepositoryImpl) UpdateLastLogin(ctx context.Context, accountID uint, at time.Time) error {
	_, err := r.updateColumns(ctx, map[string]any{"last_login_at": at}, "id = ?", accountID)
	return err
}

// UpdateFlags applies admin flag edits
func (r *AccountRepositoryImpl) UpdateFlags(ctx context.Context, accountID uint, update AccountFlagsUpdate) error {
	updates := map[string]any{"updated_at": utils.UTCNow()}
	if update.IsAdmin != nil {
		updates["is_admin"] = *update.IsAdmin
	}
	if update.IsBanned != nil {
		updates["is_banned"] = *update.IsBanned
	}
	if update.IsPremium != nil {
		updates["is_premium"] = *update.IsPremium
	}
	if update.PremiumUntil != nil {
		updates["premium_until"] = *update.PremiumUntil
	} else if update.ClearPremiumUntil {
		updates["premium_until"] = nil
	}

	affected, err := r.updateColumns(ctx, updates, "id = ?", accountID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("account %d not found", accountID)
	}
	return nil
}

// Delete removes an account. Its payment attempts are kept.
func (r *AccountRepositoryImpl) Delete(ctx context.Context, accountID uint) error {
	db := r.getDB(ctx)
	if err := db.Delete(&models.Account{}, accountID).Error; err != nil {
		return fmt.Errorf("failed to delete account %d: %w", accountID, err)
	}
	return nil
}

// ByFilter retrieves accounts based on filter criteria
func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)

	var accounts []*models.Account
	query := r.applyFilter(db.Model(&models.Account{}), filter)
	query = paginate(query, orderBy, limit, offset)

	if err := query.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to find accounts by filter: %w", err)
	}
	return accounts, nil
}

// Count returns the number of accounts matching the filter
func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := r.applyFilter(db.Model(&models.Account{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// Exists checks if any account matching the filter exists
func (r *AccountRepositoryImpl) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AccountRepositoryImpl) applyFilter(query *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", utils.NormalizeEmail(*filter.Email))
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.IsPremium != nil {
		query = query.Where("is_premium = ?", *filter.IsPremium)
	}
	if filter.IsAdmin != nil {
		query = query.Where("is_admin = ?", *filter.IsAdmin)
	}
	if filter.IsBanned != nil {
		query = query.Where("is_banned = ?", *filter.IsBanned)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
