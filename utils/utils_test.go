package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKenyanMSISDN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"local safaricom", "0712345678", "254712345678", true},
		{"local airtel 01 prefix", "0110345678", "254110345678", true},
		{"international with plus", "+254712345678", "254712345678", true},
		{"international", "254712345678", "254712345678", true},
		{"with spaces", "0712 345 678", "254712345678", true},
		{"short form", "712345678", "254712345678", true},
		{"landline", "0201234567", "", false},
		{"foreign", "+14155552671", "", false},
		{"letters", "07123456ab", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeKenyanMSISDN(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, IsExpiredAt(nil, now))
	assert.True(t, IsExpiredAt(&past, now))
	assert.False(t, IsExpiredAt(&future, now))
	assert.False(t, IsExpiredAt(&now, now))
}

func TestDarajaTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 21, 5, 9, 0, time.UTC)
	assert.Equal(t, "20260305000509", DarajaTimestamp(ts))
}
