package dto

import "time"

// AccountDTO is the full account view returned to its owner
type AccountDTO struct {
	ID           string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email        string     `json:"email"`
	Avatar       string     `json:"avatar" example:"fox"`
	Plan         string     `json:"plan" example:"premium"`
	IsActive     bool       `json:"isActive"`
	IsPremium    bool       `json:"isPremium"`
	PremiumUntil *time.Time `json:"premiumUntil"`
	IsAdmin      bool       `json:"isAdmin"`
	ActivatedAt  *time.Time `json:"activatedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ActivationStatusResponse is the only data the unauthenticated polling surface exposes
type ActivationStatusResponse struct {
	IsActive     bool       `json:"isActive"`
	IsPremium    bool       `json:"isPremium"`
	PremiumUntil *time.Time `json:"premiumUntil"`
}
