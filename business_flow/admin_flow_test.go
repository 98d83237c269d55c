package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/models"
	testutil "github.com/anchorchat/anchor/testing"
	"github.com/anchorchat/anchor/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdmin_LastAdminIsProtected(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	admin, err := env.fx.CreateTestAccount(testutil.WithActive(), testutil.WithAdmin())
	require.NoError(t, err)

	_, err = env.admin.SetAdmin(ctx, admin.ID, admin.UUID.String(), false, nil)
	assert.True(t, IsLastAdminProtected(err))
	_, err = env.admin.SetBanned(ctx, admin.ID, admin.UUID.String(), true, nil)
	assert.True(t, IsLastAdminProtected(err))
	err = env.admin.DeleteAccount(ctx, admin.ID, admin.UUID.String(), nil)
	assert.True(t, IsLastAdminProtected(err))
	assert.True(t, utils.IsTrue(env.reloadAccount(t, admin.ID).IsAdmin))

	second, err := env.fx.CreateTestAccount(testutil.WithActive())
	require.NoError(t, err)
	view, err := env.admin.SetAdmin(ctx, admin.ID, second.UUID.String(), true, nil)
	require.NoError(t, err)
	assert.True(t, view.IsAdmin)

	view, err = env.admin.SetAdmin(ctx, second.ID, admin.UUID.String(), false, nil)
	require.NoError(t, err)
	assert.False(t, view.IsAdmin)
}

func TestAdmin_SetBanned(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	member, err := env.fx.CreateTestAccount(testutil.WithActive())
	require.NoError(t, err)

	view, err := env.admin.SetBanned(ctx, 1, member.UUID.String(), true, nil)
	require.NoError(t, err)
	assert.True(t, view.IsBanned)

	view, err = env.admin.SetBanned(ctx, 1, member.UUID.String(), false, nil)
	require.NoError(t, err)
	assert.False(t, view.IsBanned)

	_, err = env.admin.SetBanned(ctx, 1, "not-a-uuid", true, nil)
	assert.True(t, IsAccountNotFound(err))
}

func TestAdmin_SetPremium(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	member, err := env.fx.CreateTestAccount(testutil.WithActive())
	require.NoError(t, err)

	days := 7
	view, err := env.admin.SetPremium(ctx, 1, member.UUID.String(), &dto.AdminSetPremiumRequest{IsPremium: true, Days: &days}, nil)
	require.NoError(t, err)
	assert.True(t, view.IsPremium)
	require.NotNil(t, view.PremiumUntil)
	assert.WithinDuration(t, env.now.Add(7*24*time.Hour), *view.PremiumUntil, time.Second)

	past := env.now.Add(-time.Hour)
	_, err = env.admin.SetPremium(ctx, 1, member.UUID.String(), &dto.AdminSetPremiumRequest{IsPremium: true, PremiumUntil: &past}, nil)
	assert.True(t, IsInvalidInput(err))

	view, err = env.admin.SetPremium(ctx, 1, member.UUID.String(), &dto.AdminSetPremiumRequest{IsPremium: false}, nil)
	require.NoError(t, err)
	assert.False(t, view.IsPremium)
	assert.Nil(t, env.reloadAccount(t, member.ID).PremiumUntil)
}

func TestAdmin_ListAccounts(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.fx.CreateTestAccount()
		require.NoError(t, err)
	}
	_, err := env.fx.CreateTestAccount(testutil.WithActive())
	require.NoError(t, err)

	resp, err := env.admin.ListAccounts(ctx, &dto.AdminListAccountsRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, uint(4), resp.Pagination.TotalItems)
	assert.Equal(t, uint(2), resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)

	active := true
	resp, err = env.admin.ListAccounts(ctx, &dto.AdminListAccountsRequest{IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}

func TestAdmin_ReconcileRunsTheEngine(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	attempt, err := env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_manual")
	require.NoError(t, err)

	resp, err := env.admin.Reconcile(ctx, 1, attempt.UUID.String(), &dto.AdminReconcileRequest{Outcome: "success", ReceiptID: "QK12345"}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Equal(t, "success", resp.Attempt.Status)
	require.NotNil(t, resp.Attempt.ResultCode)
	assert.Equal(t, "MANUAL", *resp.Attempt.ResultCode)
	require.NotNil(t, resp.Account)
	assert.True(t, resp.Account.IsActive)

	_, err = env.admin.Reconcile(ctx, 1, attempt.UUID.String(), &dto.AdminReconcileRequest{Outcome: "failure"}, nil)
	assert.True(t, IsAlreadyResolved(err))

	audits, err := env.auditRepo.ListByAction(ctx, models.AuditActionPaymentReconciled, 10, 0)
	require.NoError(t, err)
	assert.Len(t, audits, 1)
}

func TestAdmin_ExportAttempts(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_x1")
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_x2")
	require.NoError(t, err)

	data, filename, err := env.admin.ExportAttempts(ctx, &dto.AdminListAttemptsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "payments_20260314_090000.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("payments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "correlation_token", rows[0][10])
	assert.ElementsMatch(t, []string{"ws_CO_x1", "ws_CO_x2"}, []string{rows[1][10], rows[2][10]})
}

func TestAdmin_ListAttemptsByStatus(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	account, err := env.fx.CreateTestAccount()
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposeActivation, "ws_CO_l1")
	require.NoError(t, err)
	_, err = env.fx.CreatePendingAttempt(account, models.PaymentPurposePremium, "ws_CO_l2")
	require.NoError(t, err)
	_, err = env.payments.ResolveCallback(ctx, "stub", failureFor("ws_CO_l1", "cancelled"))
	require.NoError(t, err)

	status := "pending"
	resp, err := env.admin.ListAttempts(ctx, &dto.AdminListAttemptsRequest{Status: &status})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "ws_CO_l2", resp.Items[0].CorrelationToken)
}

func TestAdmin_EnsureAdmin(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	require.NoError(t, env.admin.EnsureAdmin(ctx, "Ops@Example.com", "bootstrap-pass"))
	require.NoError(t, env.admin.EnsureAdmin(ctx, "ops@example.com", "bootstrap-pass"))

	count, err := env.accountRepo.Count(ctx, models.AccountFilter{IsAdmin: utils.ToPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	admin, err := env.accountRepo.ByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.True(t, utils.IsTrue(admin.IsActive))
}
