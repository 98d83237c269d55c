package dto

import "time"

// SignupRequest represents the signup form data
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"anon@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,max=32" example:"owl"`
	Plan     string `json:"plan,omitempty" validate:"omitempty,oneof=free premium" example:"free"`

	// Rotate captcha answer, required when captcha is enforced
	CaptchaID    string   `json:"captchaId,omitempty" validate:"omitempty,max=64"`
	CaptchaAngle *float64 `json:"captchaAngle,omitempty" validate:"omitempty,min=0,max=360"`
}

// SignupResponse is returned after the pending account is created
type SignupResponse struct {
	Message      string     `json:"message" example:"User created (pending pay)"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	Account      AccountDTO `json:"account"`
	AmountDue    uint64     `json:"amountDue" example:"50"`
	Currency     string     `json:"currency" example:"KES"`
	Purpose      string     `json:"purpose" example:"activation"`
}

// LoginRequest represents the request payload for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"anon@example.com"`
	Password string `json:"password" validate:"required,min=1,max=100" example:"SecurePass123!"`
}

// LoginResponse carries the issued tokens and the lazily expired account view
type LoginResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	TokenType    string     `json:"tokenType" example:"Bearer"`
	ExpiresIn    int        `json:"expiresIn" example:"2592000"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Account      AccountDTO `json:"account"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// CaptchaResponse is a rotate captcha challenge for the signup form
type CaptchaResponse struct {
	ChallengeID       string    `json:"challengeId"`
	MasterImageBase64 string    `json:"masterImageBase64"`
	ThumbImageBase64  string    `json:"thumbImageBase64"`
	ExpiresAt         time.Time `json:"expiresAt"`
}
