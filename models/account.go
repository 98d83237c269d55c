// Package models contains domain entities for accounts, payments and their audit trail
package models

import (
	"time"

	"github.com/anchorchat/anchor/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Avatar is the display animal an anonymous account chats as
type Avatar string

const (
	AvatarFox      Avatar = "fox"
	AvatarBear     Avatar = "bear"
	AvatarOwl      Avatar = "owl"
	AvatarLion     Avatar = "lion"
	AvatarTiger    Avatar = "tiger"
	AvatarPanda    Avatar = "panda"
	AvatarWolf     Avatar = "wolf"
	AvatarElephant Avatar = "elephant"
	AvatarDog      Avatar = "dog"
	AvatarCat      Avatar = "cat"
)

// Avatars lists every selectable avatar in display order
var Avatars = []Avatar{
	AvatarFox, AvatarBear, AvatarOwl, AvatarLion, AvatarTiger,
	AvatarPanda, AvatarWolf, AvatarElephant, AvatarDog, AvatarCat,
}

// IsValidAvatar reports whether a is one of the enumerated avatars
func IsValidAvatar(a string) bool {
	for _, v := range Avatars {
		if string(v) == a {
			return true
		}
	}
	return false
}

// AccountPlan is the tier requested at signup
type AccountPlan string

const (
	AccountPlanFree    AccountPlan = "free"    // activation fee only
	AccountPlanPremium AccountPlan = "premium" // activation grants a premium window too
)

// Account is the entitlement record: activation gate, premium window and role flags
type Account struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_accounts_uuid" json:"uuid"`
	Email        string      `gorm:"size:255;not null;uniqueIndex:uk_accounts_email" json:"email"`
	PasswordHash string      `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	Avatar       Avatar      `gorm:"size:20;not null;default:'fox'" json:"avatar"`
	Plan         AccountPlan `gorm:"size:20;not null;default:'free'" json:"plan"`

	IsAdmin  *bool `gorm:"default:false" json:"is_admin"`
	IsBanned *bool `gorm:"default:false;index:idx_accounts_is_banned" json:"is_banned"`

	// Entitlement
	IsActive     *bool      `gorm:"default:false;index:idx_accounts_is_active" json:"is_active"`
	IsPremium    *bool      `gorm:"default:false;index:idx_accounts_is_premium" json:"is_premium"`
	PremiumUntil *time.Time `gorm:"index:idx_accounts_premium_until" json:"premium_until,omitempty"` // nil while premium means unbounded
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`

	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate assigns the public UUID
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// PremiumExpired reports whether the stored premium flag is stale at now
func (a *Account) PremiumExpired(now time.Time) bool {
	return utils.IsTrue(a.IsPremium) && utils.IsExpiredAt(a.PremiumUntil, now)
}

// EffectivePremium is the premium state every reader must use
func (a *Account) EffectivePremium(now time.Time) bool {
	return utils.IsTrue(a.IsPremium) && !utils.IsExpiredAt(a.PremiumUntil, now)
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	IsActive      *bool
	IsPremium     *bool
	IsAdmin       *bool
	IsBanned      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
