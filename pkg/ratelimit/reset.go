package ratelimit

import "time"

// NextReset returns the daily quota reset instant that follows now: the
// first 00:00 UTC strictly later than now.
//
// Whether now is before or after today's 12:00 UTC, today's midnight is
// already behind it, so the reset is always the start of the next UTC day.
// At exactly 00:00:00 the reset that just happened does not count and the
// following midnight is returned.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, 1)
}

// UntilReset returns how long a caller at now has to wait for NextReset.
// The result is never negative.
func UntilReset(now time.Time) time.Duration {
	wait := NextReset(now).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
