package clientdata

import "time"

// TTL constants, added to time.Now() when storing to calculate expires_at.
const (
	// TTLNAVHistory covers one publication cycle: NAVs are published once per business day
	TTLNAVHistory = 24 * time.Hour

	// TTLNAVHistoryWeekend keeps Friday's history through the weekend
	TTLNAVHistoryWeekend = 72 * time.Hour
)

// NAVHistoryTTL returns the TTL for a history fetched at t when no explicit TTL is configured
func NAVHistoryTTL(t time.Time) time.Duration {
	switch t.Weekday() {
	case time.Friday, time.Saturday:
		return TTLNAVHistoryWeekend
	default:
		return TTLNAVHistory
	}
}
