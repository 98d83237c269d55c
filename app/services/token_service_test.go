package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		"test-secret-key-for-jwt-signing-32-chars", // secretKey
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		secretKey   string
		expectError bool
	}{
		{name: "valid symmetric key configuration", secretKey: "test-secret-key-for-jwt-signing-32-chars"},
		{name: "missing secret key", expectError: true},
		{name: "rsa without keys", useRSAKeys: true, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Minute, time.Hour, "iss", "aud", tt.useRSAKeys, "", "", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []struct {
		name      string
		accountID uint
		role      string
		wantRole  string
	}{
		{"member", 123, RoleMember, RoleMember},
		{"admin", 7, RoleAdmin, RoleAdmin},
		{"empty role defaults to member", 9, "", RoleMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, refresh, err := service.GenerateTokens(tt.accountID, tt.role)
			require.NoError(t, err)
			assert.NotEqual(t, access, refresh)

			claims, err := service.ValidateToken(access)
			require.NoError(t, err)
			assert.Equal(t, tt.accountID, claims.AccountID)
			assert.Equal(t, tt.wantRole, claims.Role)
			assert.Equal(t, "access", claims.TokenType)
			assert.NotEmpty(t, claims.TokenID)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)

			refreshClaims, err := service.ValidateToken(refresh)
			require.NoError(t, err)
			assert.Equal(t, "refresh", refreshClaims.TokenType)
		})
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	other, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "another-secret-key-for-signing-32-chars")
	require.NoError(t, err)
	foreign, _, err := other.GenerateTokens(1, RoleMember)
	require.NoError(t, err)

	wrongAudience, err := NewTokenService(15*time.Minute, time.Hour, "test-issuer", "elsewhere", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	misdirected, _, err := wrongAudience.GenerateTokens(1, RoleMember)
	require.NoError(t, err)

	expiredSvc, err := NewTokenService(-time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	expired, _, err := expiredSvc.GenerateTokens(1, RoleMember)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrTokenInvalid},
		{"garbage", "not.a.jwt", ErrTokenInvalid},
		{"signed with another key", foreign, ErrTokenInvalid},
		{"wrong audience", misdirected, ErrTokenInvalid},
		{"expired", expired, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
		})
	}
}

func TestRefreshToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	access, refresh, err := service.GenerateTokens(42, RoleMember)
	require.NoError(t, err)

	_, _, err = service.RefreshToken(access)
	assert.Error(t, err, "access tokens cannot refresh")

	newAccess, newRefresh, err := service.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	claims, err := service.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.AccountID)

	_, _, err = service.RefreshToken(refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked, "refresh tokens are single use")
}

func TestRevokeToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	access, _, err := service.GenerateTokens(5, RoleMember)
	require.NoError(t, err)
	claims, err := service.ValidateToken(access)
	require.NoError(t, err)

	require.NoError(t, service.RevokeToken(access))
	assert.True(t, service.IsTokenRevoked(claims.TokenID))

	_, err = service.ValidateToken(access)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	assert.Error(t, service.RevokeToken("invalid"))
}

func TestTokenSecurity(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	access, _, err := service.GenerateTokens(1, RoleMember)
	require.NoError(t, err)

	parts := strings.Split(access, ".")
	require.Len(t, parts, 3)

	// alter the payload without re-signing
	tampered := parts[0] + "." + parts[1] + "x" + "." + parts[2]
	_, err = service.ValidateToken(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	tokens := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			access, _, err := service.GenerateTokens(id, RoleMember)
			assert.NoError(t, err)
			tokens <- access
		}(uint(i + 1))
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for tok := range tokens {
		assert.False(t, seen[tok], "tokens must be unique")
		seen[tok] = true
		_, err := service.ValidateToken(tok)
		assert.NoError(t, err)
	}
}
