package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
)

const signupPendingMessage = "User created (pending pay)"

// SignupFlow handles account creation. A new account is pending until its activation fee is paid.
type SignupFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	Captcha(ctx context.Context) (*dto.CaptchaResponse, error)
}

// SignupFlowConfig holds the signup policy knobs
type SignupFlowConfig struct {
	Pricing        Pricing
	BcryptCost     int
	RequireCaptcha bool
}

// SignupFlowImpl implements the signup business flow
type SignupFlowImpl struct {
	accountRepo  repository.AccountRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	captcha      services.CaptchaService
	cfg          SignupFlowConfig

	now func() time.Time
}

// NewSignupFlow creates a new signup flow instance
func NewSignupFlow(
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	captcha services.CaptchaService,
	cfg SignupFlowConfig,
) SignupFlow {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &SignupFlowImpl{
		accountRepo:  accountRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		captcha:      captcha,
		cfg:          cfg,
		now:          utils.UTCNow,
	}
}

// Signup creates a pending account and issues its tokens
func (s *SignupFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	if err := s.validateSignupRequest(ctx, req); err != nil {
		errMsg := fmt.Sprintf("Signup rejected for %s: %v", utils.NormalizeEmail(req.Email), err)
		_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionSignupFailed, errMsg, false, &errMsg, metadata)

		if IsEmailAlreadyExists(err) {
			return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "Email already registered", err)
		}
		if IsCaptchaError(err) {
			return nil, NewBusinessError("CAPTCHA_FAILED", "Captcha verification failed", err)
		}
		return nil, NewBusinessError("SIGNUP_VALIDATION_FAILED", "Signup validation failed", err)
	}

	account, err := s.createAccount(ctx, req)
	if err != nil {
		errMsg := fmt.Sprintf("Signup failed: %s", err.Error())
		_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionSignupFailed, errMsg, false, &errMsg, metadata)

		// Lost a race against a concurrent signup with the same email
		if existing, lookupErr := s.accountRepo.ByEmail(ctx, utils.NormalizeEmail(req.Email)); lookupErr == nil && existing != nil {
			return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "Email already registered", ErrEmailAlreadyExists)
		}
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	accessToken, refreshToken, err := s.tokenService.GenerateTokens(account.ID, services.RoleMember)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	msg := fmt.Sprintf("Account created pending payment: %d", account.ID)
	_ = createAuditLog(ctx, s.auditRepo, &account.ID, models.AuditActionSignupCompleted, msg, true, nil, metadata)

	purpose := SignupPurpose(account.Plan)
	return &dto.SignupResponse{
		Message:      signupPendingMessage,
		Token:        accessToken,
		RefreshToken: refreshToken,
		Account:      ToAccountDTO(*account, s.now()),
		AmountDue:    s.cfg.Pricing.PriceFor(purpose),
		Currency:     utils.KenyanShillingCurrency,
		Purpose:      string(purpose),
	}, nil
}

// Captcha issues a fresh rotate captcha challenge
func (s *SignupFlowImpl) Captcha(ctx context.Context) (*dto.CaptchaResponse, error) {
	if s.captcha == nil {
		return nil, NewBusinessError("CAPTCHA_UNAVAILABLE", "Captcha is not configured", nil)
	}
	challenge, err := s.captcha.Generate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaResponse{
		ChallengeID:       challenge.ID,
		MasterImageBase64: challenge.MasterImageBase64,
		ThumbImageBase64:  challenge.ThumbImageBase64,
		ExpiresAt:         challenge.ExpiresAt.UTC(),
	}, nil
}

func (s *SignupFlowImpl) validateSignupRequest(ctx context.Context, req *dto.SignupRequest) error {
	req.Avatar = strings.ToLower(strings.TrimSpace(req.Avatar))
	if req.Avatar != "" && !models.IsValidAvatar(req.Avatar) {
		return ErrInvalidAvatar
	}

	if req.CaptchaID != "" || s.cfg.RequireCaptcha {
		if req.CaptchaID == "" || req.CaptchaAngle == nil {
			return ErrCaptchaRequired
		}
		if s.captcha == nil || !s.captcha.Verify(ctx, req.CaptchaID, *req.CaptchaAngle) {
			return ErrCaptchaInvalid
		}
	}

	existing, err := s.accountRepo.ByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailAlreadyExists
	}

	return nil
}

func (s *SignupFlowImpl) createAccount(ctx context.Context, req *dto.SignupRequest) (*models.Account, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	avatar := models.AvatarFox
	if req.Avatar != "" {
		avatar = models.Avatar(req.Avatar)
	}
	plan := models.AccountPlanFree
	if req.Plan == string(models.AccountPlanPremium) {
		plan = models.AccountPlanPremium
	}

	now := s.now()
	account := &models.Account{
		Email:        utils.NormalizeEmail(req.Email),
		PasswordHash: string(hashedPassword),
		Avatar:       avatar,
		Plan:         plan,
		IsAdmin:      utils.ToPtr(false),
		IsBanned:     utils.ToPtr(false),
		IsActive:     utils.ToPtr(false),
		IsPremium:    utils.ToPtr(false),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
