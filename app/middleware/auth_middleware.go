// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by Authenticate
const (
	AccountIDKey   = "account_id"
	TokenIDKey     = "token_id"
	TokenClaimsKey = "token_claims"
	AccessTokenKey = "access_token"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	accountRepo  repository.AccountRepository
}

// NewAuthMiddleware creates a new authentication middleware. accountRepo backs the
// admin re-check; the admin guard refuses every request when it is nil.
func NewAuthMiddleware(tokenService services.TokenService, accountRepo repository.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		accountRepo:  accountRepo,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
	}
	return token, nil
}

// validateAccessToken runs the token checks and stores the claims in Locals.
// It returns false when a response has already been written.
func (m *AuthMiddleware) validateAccessToken(c fiber.Ctx) (bool, error) {
	token, err := bearerToken(c)
	if token == "" {
		return false, err
	}

	// Validate the token (this already checks for revocation)
	claims, err := m.tokenService.ValidateToken(token)
	if err != nil {
		var errorCode string
		var message string

		switch {
		case errors.Is(err, services.ErrTokenExpired):
			errorCode = "TOKEN_EXPIRED"
			message = "Access token has expired"
		case errors.Is(err, services.ErrTokenRevoked):
			errorCode = "TOKEN_REVOKED"
			message = "Access token has been revoked"
		case errors.Is(err, services.ErrTokenInvalid):
			errorCode = "TOKEN_INVALID"
			message = "Invalid access token"
		default:
			errorCode = "TOKEN_VALIDATION_FAILED"
			message = "Token validation failed"
		}
		return false, unauthorized(c, message, errorCode)
	}
	if claims.TokenType != "access" {
		return false, unauthorized(c, "Refresh tokens cannot be used to access the API", "TOKEN_INVALID")
	}

	// Store account information in context for downstream handlers
	c.Locals(AccountIDKey, claims.AccountID)
	c.Locals(TokenIDKey, claims.TokenID)
	c.Locals(TokenClaimsKey, claims)
	c.Locals(AccessTokenKey, token)

	return true, nil
}

// Authenticate is the middleware function that validates JWT tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		ok, err := m.validateAccessToken(c)
		if !ok {
			return err
		}
		return c.Next()
	}
}

// AdminAuthenticate validates the token and re-reads the account so a demoted or
// banned admin loses access before the token expires.
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		ok, err := m.validateAccessToken(c)
		if !ok {
			return err
		}

		accountID, _ := c.Locals(AccountIDKey).(uint)
		if m.accountRepo == nil {
			return forbiddenAdmin(c)
		}

		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		account, err := m.accountRepo.ByID(ctx, accountID)
		if err != nil {
			log.Printf("admin check failed for account %d: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Failed to verify admin access",
				Error:   dto.ErrorDetail{Code: "ADMIN_CHECK_FAILED"},
			})
		}
		if account == nil || !utils.IsTrue(account.IsAdmin) || utils.IsTrue(account.IsBanned) {
			return forbiddenAdmin(c)
		}

		return c.Next()
	}
}

func forbiddenAdmin(c fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
		Success: false,
		Message: "Admin access required",
		Error:   dto.ErrorDetail{Code: "ADMIN_ACCESS_REQUIRED"},
	})
}

// GetAccountIDFromContext extracts the account ID set by Authenticate
func GetAccountIDFromContext(c fiber.Ctx) (uint, bool) {
	accountID, ok := c.Locals(AccountIDKey).(uint)
	return accountID, ok
}

// GetTokenClaimsFromContext extracts the token claims set by Authenticate
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(TokenClaimsKey).(*services.TokenClaims)
	return claims, ok
}

// GetAccessTokenFromContext returns the raw bearer token, used by logout
func GetAccessTokenFromContext(c fiber.Ctx) (string, bool) {
	token, ok := c.Locals(AccessTokenKey).(string)
	return token, ok && token != ""
}
