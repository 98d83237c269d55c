package handlers

import (
	"log"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/middleware"
	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Signup(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	RefreshToken(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Captcha(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	signupFlow businessflow.SignupFlow
	loginFlow  businessflow.LoginFlow
	validator  *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(signupFlow businessflow.SignupFlow, loginFlow businessflow.LoginFlow) *AuthHandler {
	return &AuthHandler{
		signupFlow: signupFlow,
		loginFlow:  loginFlow,
		validator:  NewValidator(),
	}
}

// Signup creates a pending account
// @Summary Sign up
// @Description Create an account that stays inactive until the activation payment is confirmed
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup data"
// @Success 201 {object} dto.APIResponse{data=dto.SignupResponse} "User created (pending pay)"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already exists"
// @Failure 429 {object} dto.APIResponse "Too many signups"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.signupFlow.Signup(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_ALREADY_EXISTS", nil)
		}
		if businessflow.IsCaptchaError(err) {
			return ErrorResponse(c, fiber.StatusBadRequest, "Captcha verification failed", "CAPTCHA_FAILED", nil)
		}
		if businessflow.IsInvalidInput(err) {
			return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}

		log.Println("Signup failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Signup failed", "SIGNUP_FAILED", nil)
	}

	return SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// Login authenticates an account
// @Summary Login
// @Description Authenticate with email and password. Inactive and banned accounts are refused after the password check.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account inactive or banned"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.loginFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCredentials(err) {
			return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsAccountBanned(err) {
			return ErrorResponse(c, fiber.StatusForbidden, "Account is banned", "ACCOUNT_BANNED", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return ErrorResponse(c, fiber.StatusForbidden, "Account is not activated. Complete the activation payment first", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Login failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// RefreshToken exchanges a refresh token for a new pair
// @Summary Refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Token refreshed"
// @Failure 401 {object} dto.APIResponse "Invalid refresh token"
// @Failure 403 {object} dto.APIResponse "Account banned"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.loginFlow.RefreshToken(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountBanned(err) {
			return ErrorResponse(c, fiber.StatusForbidden, "Account is banned", "ACCOUNT_BANNED", nil)
		}
		code := businessErrorCode(err, "TOKEN_REFRESH_FAILED")
		if code == "INVALID_REFRESH_TOKEN" {
			return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired refresh token", code, nil)
		}

		log.Println("Token refresh failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to refresh token", code, nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "Token refreshed", result)
}

// Logout revokes the caller's access token
// @Summary Logout
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token, ok := middleware.GetAccessTokenFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.loginFlow.Logout(ctx, token); err != nil {
		log.Println("Logout failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Logout failed", "LOGOUT_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// Captcha issues a rotate captcha challenge for the signup form
// @Summary Signup captcha
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaResponse} "Captcha challenge"
// @Failure 503 {object} dto.APIResponse "Captcha unavailable"
// @Router /api/v1/auth/captcha [get]
func (h *AuthHandler) Captcha(c fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.signupFlow.Captcha(ctx)
	if err != nil {
		code := businessErrorCode(err, "CAPTCHA_GENERATION_FAILED")
		if code == "CAPTCHA_UNAVAILABLE" {
			return ErrorResponse(c, fiber.StatusServiceUnavailable, "Captcha is not available", code, nil)
		}
		log.Println("Captcha generation failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate captcha", code, nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Captcha generated", result)
}
