// Package billingperiod normalizes timestamps onto the monthly billing
// grid used by both the copy cap and payout aggregation.
package billingperiod

import "time"

// Start returns the period key for t: the first instant of t's UTC
// calendar month. Every copy event and payout record is grouped by this
// marker.
func Start(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the period after the one containing t.
func End(t time.Time) time.Time {
	return Start(t).AddDate(0, 1, 0)
}

// Previous returns the period key of the period before the one containing t.
func Previous(t time.Time) time.Time {
	return Start(t).AddDate(0, -1, 0)
}

// IsClosed reports whether the period keyed by period no longer accepts
// writes at instant now. Aggregation must only run on closed periods.
func IsClosed(period, now time.Time) bool {
	return !now.UTC().Before(End(period))
}
