package usage

import "time"

// PeriodKey scopes usage counters to a UTC calendar month.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextReset returns the first instant of the following period.
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
