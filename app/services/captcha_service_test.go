package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateCaptcha_VerifyConsumesChallenge(t *testing.T) {
	svc := NewRotateCaptchaService(time.Minute, 5, 160).(*rotateCaptchaService)
	ctx := context.Background()

	ch, err := svc.Generate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.MasterImageBase64)
	assert.NotEmpty(t, ch.ThumbImageBase64)

	svc.mu.Lock()
	angle := svc.challenge[ch.ID].angle
	svc.mu.Unlock()

	assert.True(t, svc.Verify(ctx, ch.ID, float64(angle)))
	assert.False(t, svc.Verify(ctx, ch.ID, float64(angle)), "challenges are single use")
	assert.False(t, svc.Verify(ctx, "unknown", 0))
}

func TestRotateCaptcha_Expired(t *testing.T) {
	svc := NewRotateCaptchaService(time.Minute, 5, 160).(*rotateCaptchaService)
	ctx := context.Background()

	ch, err := svc.Generate(ctx)
	require.NoError(t, err)

	svc.mu.Lock()
	angle := svc.challenge[ch.ID].angle
	svc.mu.Unlock()

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.False(t, svc.Verify(ctx, ch.ID, float64(angle)))
}
