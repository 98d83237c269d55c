package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/anchorchat/anchor/models"
	testutil "github.com/anchorchat/anchor/testing"
	"github.com/anchorchat/anchor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndLazilyExpire(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	t.Run("lapsed window is persisted as expired", func(t *testing.T) {
		account, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(-time.Hour)))
		require.NoError(t, err)

		got, err := env.entitlements.CheckAndLazilyExpire(ctx, account.ID)
		require.NoError(t, err)
		assert.False(t, utils.IsTrue(got.IsPremium))
		assert.Nil(t, got.PremiumUntil)

		stored := env.reloadAccount(t, account.ID)
		assert.False(t, utils.IsTrue(stored.IsPremium))
		assert.Nil(t, stored.PremiumUntil)
		assert.True(t, utils.IsTrue(stored.IsActive), "expiry never deactivates")

		audits, err := env.auditRepo.ListByAccount(ctx, account.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		assert.Equal(t, models.AuditActionPremiumExpired, audits[0].Action)
	})

	t.Run("running window is left alone", func(t *testing.T) {
		until := env.now.Add(time.Hour)
		account, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(until))
		require.NoError(t, err)

		got, err := env.entitlements.CheckAndLazilyExpire(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, utils.IsTrue(got.IsPremium))
		assert.True(t, got.EffectivePremium(env.now))
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := env.entitlements.CheckAndLazilyExpire(ctx, 424242)
		assert.True(t, IsAccountNotFound(err))
	})
}

func TestPollActivation(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	pending, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	status, err := env.entitlements.PollActivation(ctx, pending.UUID.String())
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.False(t, status.IsPremium)
	assert.Nil(t, status.PremiumUntil)

	lapsed, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(-time.Minute)))
	require.NoError(t, err)
	status, err = env.entitlements.PollActivation(ctx, lapsed.UUID.String())
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.False(t, status.IsPremium)
	assert.Nil(t, status.PremiumUntil)

	_, err = env.entitlements.PollActivation(ctx, "5f0c6a55-0000-4000-8000-000000000000")
	assert.True(t, IsAccountNotFound(err))
}

func TestPollActivation_AfterCallback(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_poll")
	require.NoError(t, err)

	before, err := env.entitlements.PollActivation(ctx, account.UUID.String())
	require.NoError(t, err)
	assert.False(t, before.IsActive)

	_, err = env.payments.ResolveCallback(ctx, "stub", successFor("ws_CO_poll", "RP"))
	require.NoError(t, err)

	after, err := env.entitlements.PollActivation(ctx, account.UUID.String())
	require.NoError(t, err)
	assert.True(t, after.IsActive)
	assert.False(t, after.IsPremium)
}

func TestMe_HidesLapsedWindow(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(time.Hour)))
	require.NoError(t, err)

	me, err := env.entitlements.Me(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, me.IsPremium)
	require.NotNil(t, me.PremiumUntil)

	env.advance(2 * time.Hour)
	me, err = env.entitlements.Me(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, me.IsPremium)
	assert.Nil(t, me.PremiumUntil)
}

func TestExpireLapsedPremium(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	lapsed1, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(-time.Hour)))
	require.NoError(t, err)
	lapsed2, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(-48*time.Hour)))
	require.NoError(t, err)
	running, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithPremiumUntil(env.now.Add(time.Hour)))
	require.NoError(t, err)

	n, err := env.entitlements.ExpireLapsedPremium(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.False(t, utils.IsTrue(env.reloadAccount(t, lapsed1.ID).IsPremium))
	assert.False(t, utils.IsTrue(env.reloadAccount(t, lapsed2.ID).IsPremium))
	assert.True(t, utils.IsTrue(env.reloadAccount(t, running.ID).IsPremium))
}

func TestReportStalePending_DoesNotFailAttempts(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_stale")
	require.NoError(t, err)
	require.NoError(t, env.tdb.DB.Model(&models.PaymentAttempt{}).
		Where("id = ?", attempt.ID).
		Update("created_at", env.now.Add(-time.Hour)).Error)

	stale, err := env.entitlements.ReportStalePending(ctx, 15*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, attempt.ID, stale[0].ID)

	assert.True(t, env.reloadAttempt(t, attempt.ID).IsPending())
}
