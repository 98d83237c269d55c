package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/anchorchat/anchor/repository"
	"github.com/anchorchat/anchor/utils"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow handles authentication and token lifecycle
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	accountRepo    repository.AccountRepository
	auditRepo      repository.AuditLogRepository
	entitlements   EntitlementFlow
	tokenService   services.TokenService
	accessTokenTTL time.Duration

	now func() time.Time
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	entitlements EntitlementFlow,
	tokenService services.TokenService,
	accessTokenTTL time.Duration,
) LoginFlow {
	if accessTokenTTL <= 0 {
		accessTokenTTL = utils.AccessTokenTTL
	}
	return &LoginFlowImpl{
		accountRepo:    accountRepo,
		auditRepo:      auditRepo,
		entitlements:   entitlements,
		tokenService:   tokenService,
		accessTokenTTL: accessTokenTTL,
		now:            utils.UTCNow,
	}
}

// Login authenticates an account by email and password.
// Credentials are checked first, so a pending account only learns it is inactive
// once it has proven its password.
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	account, err := lf.authenticate(ctx, request)
	if err != nil {
		var accountID *uint
		if account != nil {
			accountID = &account.ID
		}
		errMsg := fmt.Sprintf("Login failed for %s: %s", utils.NormalizeEmail(request.Email), err.Error())
		_ = createAuditLog(ctx, lf.auditRepo, accountID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		switch {
		case IsInvalidCredentials(err):
			return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", err)
		case IsAccountBanned(err):
			return nil, NewBusinessError("ACCOUNT_BANNED", "Account is banned", err)
		case IsAccountInactive(err):
			return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is not activated. Complete the activation payment first.", err)
		}
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	account, err = lf.entitlements.CheckAndLazilyExpire(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	now := lf.now()
	if err := lf.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	account.LastLoginAt = &now

	resp, err := lf.issueTokens(account)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Account logged in successfully: %d", account.ID)
	_ = createAuditLog(ctx, lf.auditRepo, &account.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return resp, nil
}

// RefreshToken rotates a refresh token. The account is re-read so a ban or a
// revoked admin flag takes effect on the next refresh.
func (lf *LoginFlowImpl) RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	claims, err := lf.tokenService.ValidateToken(request.RefreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid or expired refresh token", services.ErrTokenInvalid)
	}

	account, err := lf.entitlements.CheckAndLazilyExpire(ctx, claims.AccountID)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, NewBusinessError("INVALID_REFRESH_TOKEN", "Invalid or expired refresh token", err)
		}
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Failed to refresh token", err)
	}
	if utils.IsTrue(account.IsBanned) {
		return nil, NewBusinessError("ACCOUNT_BANNED", "Account is banned", ErrAccountBanned)
	}

	if err := lf.tokenService.RevokeToken(request.RefreshToken); err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Failed to refresh token", err)
	}

	return lf.issueTokens(account)
}

// Logout revokes the presented access token
func (lf *LoginFlowImpl) Logout(ctx context.Context, accessToken string) error {
	if err := lf.tokenService.RevokeToken(accessToken); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Failed to revoke token", err)
	}
	return nil
}

func (lf *LoginFlowImpl) authenticate(ctx context.Context, request *dto.LoginRequest) (*models.Account, error) {
	account, err := lf.accountRepo.ByEmail(ctx, utils.NormalizeEmail(request.Email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(request.Password)); err != nil {
		return account, ErrInvalidCredentials
	}
	if utils.IsTrue(account.IsBanned) {
		return account, ErrAccountBanned
	}
	if !utils.IsTrue(account.IsActive) {
		return account, ErrAccountInactive
	}

	return account, nil
}

func (lf *LoginFlowImpl) issueTokens(account *models.Account) (*dto.LoginResponse, error) {
	role := services.RoleMember
	if utils.IsTrue(account.IsAdmin) {
		role = services.RoleAdmin
	}

	accessToken, refreshToken, err := lf.tokenService.GenerateTokens(account.ID, role)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	now := lf.now()
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(lf.accessTokenTTL.Seconds()),
		ExpiresAt:    now.Add(lf.accessTokenTTL),
		Account:      ToAccountDTO(*account, now),
	}, nil
}
