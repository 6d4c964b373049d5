package domain

import "time"

// ExpiryRule selects which listed expiry a leg trades.
type ExpiryRule string

const (
	ExpiryWeekly      ExpiryRule = "WEEKLY"
	ExpiryNextWeekly  ExpiryRule = "NEXT_WEEKLY"
	ExpiryMonthly     ExpiryRule = "MONTHLY"
	ExpiryNextMonthly ExpiryRule = "NEXT_MONTHLY"
)

// String returns the string representation of ExpiryRule.
func (r ExpiryRule) String() string {
	return string(r)
}

// IsValid checks if the rule is a valid value.
func (r ExpiryRule) IsValid() bool {
	switch r {
	case ExpiryWeekly, ExpiryNextWeekly, ExpiryMonthly, ExpiryNextMonthly:
		return true
	}
	return false
}

// weeklyExpirySwitch is the date the exchange moved weekly index expiry
// from Thursday to Tuesday.
var weeklyExpirySwitch = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

// weeklyExpiryWeekday returns the weekly expiry weekday in effect on d.
func weeklyExpiryWeekday(d time.Time) time.Weekday {
	if civil(d).Before(weeklyExpirySwitch) {
		return time.Thursday
	}
	return time.Tuesday
}

// civil truncates a timestamp to its date in UTC, keeping expiry math
// independent of the tick feed's location.
func civil(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ResolveExpiry maps an expiry rule to a concrete expiry date as seen
// from the evaluation moment. The evaluation day itself counts as a
// valid weekly expiry.
func ResolveExpiry(rule ExpiryRule, at time.Time) time.Time {
	switch rule {
	case ExpiryWeekly:
		return nextWeeklyExpiry(civil(at))
	case ExpiryNextWeekly:
		return nextWeeklyExpiry(nextWeeklyExpiry(civil(at)).AddDate(0, 0, 1))
	case ExpiryMonthly:
		return monthlyExpiry(civil(at))
	case ExpiryNextMonthly:
		m := monthlyExpiry(civil(at))
		return lastExpiryOfMonth(m.Year(), m.Month()+1)
	}
	return nextWeeklyExpiry(civil(at))
}

// nextWeeklyExpiry scans forward from d (inclusive) to the first date
// whose weekday matches the expiry weekday in effect on that date.
func nextWeeklyExpiry(d time.Time) time.Time {
	for i := 0; i < 8; i++ {
		c := d.AddDate(0, 0, i)
		if c.Weekday() == weeklyExpiryWeekday(c) {
			return c
		}
	}
	return d
}

// monthlyExpiry returns the last weekly expiry of d's month, rolling to
// the next month when d is already past it.
func monthlyExpiry(d time.Time) time.Time {
	e := lastExpiryOfMonth(d.Year(), d.Month())
	if e.Before(d) {
		return lastExpiryOfMonth(d.Year(), d.Month()+1)
	}
	return e
}

// lastExpiryOfMonth scans backward from the month's final day to the
// last date matching that date's expiry weekday.
func lastExpiryOfMonth(year int, month time.Month) time.Time {
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for i := 0; i < 8; i++ {
		c := last.AddDate(0, 0, -i)
		if c.Weekday() == weeklyExpiryWeekday(c) {
			return c
		}
	}
	return last
}
