package models

import (
	"testing"
	"time"

	"github.com/anchorchat/anchor/utils"
	"github.com/stretchr/testify/assert"
)

func TestAccountPremiumState(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name          string
		isPremium     *bool
		premiumUntil  *time.Time
		wantExpired   bool
		wantEffective bool
	}{
		{"not premium", utils.ToPtr(false), nil, false, false},
		{"nil flag", nil, &future, false, false},
		{"premium unbounded", utils.ToPtr(true), nil, false, true},
		{"premium in window", utils.ToPtr(true), &future, false, true},
		{"premium lapsed", utils.ToPtr(true), &past, true, false},
		{"stale window without flag", utils.ToPtr(false), &past, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{IsPremium: tt.isPremium, PremiumUntil: tt.premiumUntil}
			assert.Equal(t, tt.wantExpired, a.PremiumExpired(now))
			assert.Equal(t, tt.wantEffective, a.EffectivePremium(now))
		})
	}
}

func TestPaymentAttemptStatus(t *testing.T) {
	tests := []struct {
		status   PaymentAttemptStatus
		terminal bool
	}{
		{PaymentAttemptStatusPending, false},
		{PaymentAttemptStatusSuccess, true},
		{PaymentAttemptStatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			pa := &PaymentAttempt{Status: tt.status}
			assert.Equal(t, tt.terminal, pa.IsTerminal())
			assert.Equal(t, !tt.terminal, pa.IsPending())
		})
	}
}

func TestIsValidAvatar(t *testing.T) {
	assert.True(t, IsValidAvatar("fox"))
	assert.True(t, IsValidAvatar("elephant"))
	assert.False(t, IsValidAvatar("dragon"))
	assert.False(t, IsValidAvatar(""))
}

func TestIsValidPaymentPurpose(t *testing.T) {
	assert.True(t, IsValidPaymentPurpose("activation"))
	assert.True(t, IsValidPaymentPurpose("premium"))
	assert.False(t, IsValidPaymentPurpose("signup"))
}
