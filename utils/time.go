// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpiredAt reports whether t is set and strictly before now
func IsExpiredAt(t *time.Time, now time.Time) bool {
	if t == nil {
		return false
	}
	return now.After(*t)
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// eat is East Africa Time. Fixed offset so minimal containers without tzdata still work.
var eat = time.FixedZone("EAT", 3*60*60)

// NairobiNow returns the current time in East Africa Time
func NairobiNow() time.Time {
	return time.Now().In(eat)
}

// DarajaTimestamp formats t as the yyyyMMddHHmmss string the M-Pesa API signs requests with
func DarajaTimestamp(t time.Time) string {
	return t.In(eat).Format("20060102150405")
}
