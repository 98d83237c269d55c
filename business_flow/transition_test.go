package businessflow

import (
	"testing"
	"time"

	"github.com/anchorchat/anchor/app/services"
	"github.com/anchorchat/anchor/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTransition(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	window := 30 * 24 * time.Hour

	pending := func(grantsPremium bool) *models.PaymentAttempt {
		return &models.PaymentAttempt{
			ID:               7,
			AccountID:        3,
			CorrelationToken: "ws_CO_1",
			GrantsPremium:    grantsPremium,
			Amount:           300,
			Status:           models.PaymentAttemptStatusPending,
		}
	}

	tests := []struct {
		name         string
		attempt      *models.PaymentAttempt
		notification *services.CallbackNotification
		wantErr      error
		check        func(t *testing.T, tr *AttemptTransition, m *AccountMutation)
	}{
		{
			name:         "nil notification",
			attempt:      pending(false),
			notification: nil,
			wantErr:      ErrInvalidCallback,
		},
		{
			name:         "unknown correlation token",
			attempt:      nil,
			notification: successFor("ws_CO_404", "R1"),
			wantErr:      ErrUnknownCorrelation,
		},
		{
			name:         "token mismatch",
			attempt:      pending(false),
			notification: successFor("ws_CO_2", "R1"),
			wantErr:      ErrInvalidCallback,
		},
		{
			name: "already resolved",
			attempt: func() *models.PaymentAttempt {
				a := pending(false)
				a.Status = models.PaymentAttemptStatusSuccess
				return a
			}(),
			notification: successFor("ws_CO_1", "R2"),
			wantErr:      ErrAlreadyResolved,
		},
		{
			name:         "interim notification",
			attempt:      pending(false),
			notification: &services.CallbackNotification{CorrelationToken: "ws_CO_1", Outcome: services.CallbackOutcomePending},
			wantErr:      ErrInterimCallback,
		},
		{
			name:         "unknown outcome",
			attempt:      pending(false),
			notification: &services.CallbackNotification{CorrelationToken: "ws_CO_1", Outcome: "maybe"},
			wantErr:      ErrInvalidCallback,
		},
		{
			name:         "activation success activates without premium",
			attempt:      pending(false),
			notification: successFor("ws_CO_1", " R1 "),
			check: func(t *testing.T, tr *AttemptTransition, m *AccountMutation) {
				assert.True(t, tr.Succeeded())
				require.NotNil(t, tr.Resolution.ExternalReceiptID)
				assert.Equal(t, "R1", *tr.Resolution.ExternalReceiptID)
				assert.Nil(t, tr.Resolution.FailureReason)
				assert.Equal(t, now, tr.Resolution.ResolvedAt)

				require.NotNil(t, m)
				assert.True(t, m.Activate)
				assert.False(t, m.GrantPremium)
				assert.Nil(t, m.PremiumUntil)
			},
		},
		{
			name:         "premium success opens a fresh window",
			attempt:      pending(true),
			notification: successFor("ws_CO_1", "R1"),
			check: func(t *testing.T, tr *AttemptTransition, m *AccountMutation) {
				require.NotNil(t, m)
				assert.True(t, m.Activate)
				assert.True(t, m.GrantPremium)
				require.NotNil(t, m.PremiumUntil)
				assert.Equal(t, now.Add(window), *m.PremiumUntil)
			},
		},
		{
			name:         "failure keeps the provider reason",
			attempt:      pending(true),
			notification: failureFor("ws_CO_1", "insufficient funds"),
			check: func(t *testing.T, tr *AttemptTransition, m *AccountMutation) {
				assert.False(t, tr.Succeeded())
				assert.Equal(t, models.PaymentAttemptStatusFailed, tr.Resolution.Status)
				require.NotNil(t, tr.Resolution.FailureReason)
				assert.Equal(t, "insufficient funds", *tr.Resolution.FailureReason)
				assert.Nil(t, tr.Resolution.ExternalReceiptID)
				assert.Nil(t, m)
			},
		},
		{
			name:         "failure without a reason",
			attempt:      pending(false),
			notification: failureFor("ws_CO_1", ""),
			check: func(t *testing.T, tr *AttemptTransition, m *AccountMutation) {
				require.NotNil(t, tr.Resolution.FailureReason)
				assert.Equal(t, defaultFailureReason, *tr.Resolution.FailureReason)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, m, err := ResolveTransition(tt.attempt, tt.notification, now, window)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tr)
			tt.check(t, tr, m)
		})
	}
}

func TestAttemptTransition_ApplyTo(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	attempt := models.PaymentAttempt{ID: 1, CorrelationToken: "ws_CO_1", Status: models.PaymentAttemptStatusPending}

	tr, _, err := ResolveTransition(&attempt, successFor("ws_CO_1", "R1"), now, time.Hour)
	require.NoError(t, err)

	resolved := tr.applyTo(attempt)
	assert.Equal(t, models.PaymentAttemptStatusSuccess, resolved.Status)
	assert.Equal(t, "R1", *resolved.ExternalReceiptID)
	assert.Equal(t, now, *resolved.ResolvedAt)
	assert.Equal(t, models.PaymentAttemptStatusPending, attempt.Status, "original is untouched")
}

func TestAmountMismatch(t *testing.T) {
	attempt := &models.PaymentAttempt{Amount: 50}
	low, exact := 49.0, 50.0

	assert.False(t, amountMismatch(attempt, &services.CallbackNotification{}))
	assert.False(t, amountMismatch(attempt, &services.CallbackNotification{Amount: &exact}))
	assert.True(t, amountMismatch(attempt, &services.CallbackNotification{Amount: &low}))
}
