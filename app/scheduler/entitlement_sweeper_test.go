package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntitlements struct {
	expired    int64
	expireErr  error
	stale      []*models.PaymentAttempt
	olderThan  time.Duration
	expireRuns int
}

func (f *fakeEntitlements) CheckAndLazilyExpire(ctx context.Context, accountID uint) (*models.Account, error) {
	return nil, nil
}

func (f *fakeEntitlements) PollActivation(ctx context.Context, accountUUID string) (*dto.ActivationStatusResponse, error) {
	return nil, nil
}

func (f *fakeEntitlements) Me(ctx context.Context, accountID uint) (*dto.AccountDTO, error) {
	return nil, nil
}

func (f *fakeEntitlements) ExpireLapsedPremium(ctx context.Context) (int64, error) {
	f.expireRuns++
	return f.expired, f.expireErr
}

func (f *fakeEntitlements) ReportStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*models.PaymentAttempt, error) {
	f.olderThan = olderThan
	return f.stale, nil
}

func TestEntitlementSweeper_Jobs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	fake := &fakeEntitlements{
		expired: 3,
		stale: []*models.PaymentAttempt{{
			UUID:             uuid.New(),
			AccountID:        9,
			Provider:         models.PaymentProvider("mpesa"),
			CorrelationToken: "ws_CO_stale",
			CreatedAt:        time.Now().Add(-time.Hour),
		}},
	}
	s := NewEntitlementSweeper(fake, logger, SweeperConfig{StalePendingAfter: 20 * time.Minute})

	s.ExpirePremium()
	assert.Equal(t, 1, fake.expireRuns)
	assert.Contains(t, buf.String(), "cleared 3 lapsed window(s)")

	s.ReportStalePending()
	assert.Equal(t, 20*time.Minute, fake.olderThan)
	assert.Contains(t, buf.String(), "ws_CO_stale")

	fake.expireErr = errors.New("db down")
	s.ExpirePremium()
	assert.Contains(t, buf.String(), "premium expiry sweep failed: db down")
}

func TestEntitlementSweeper_StartRejectsBadSpec(t *testing.T) {
	s := NewEntitlementSweeper(&fakeEntitlements{}, log.New(&bytes.Buffer{}, "", 0), SweeperConfig{ExpirePremiumSpec: "not a spec"})
	_, err := s.Start()
	require.Error(t, err)

	s = NewEntitlementSweeper(&fakeEntitlements{}, log.New(&bytes.Buffer{}, "", 0), SweeperConfig{})
	stop, err := s.Start()
	require.NoError(t, err)
	stop()
}
