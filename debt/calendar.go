package debt

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (UTC)
// =============================================================================

// Date is a calendar date with no time-of-day component. All ledger dates
// and due dates are day-granular; timestamps (CreatedAt) stay time.Time.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic. AddMonths uses time.AddDate normalization (Jan 31 + 1 month =
// Mar 3); schedule and due-date math must use AddOneMonthClamped instead.
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// LastDayOfMonth returns 28..31 for the given month.
func LastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month; time.Date normalizes month overflow.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// CLAMPED MONTH ARITHMETIC - Billing-day stability across month lengths
// =============================================================================

// BillingDate returns the billing date within the given month: the anchor
// day clamped to that month's length.
func BillingDate(year int, month time.Month, anchorDay int) Date {
	day := anchorDay
	if day < 1 {
		day = 1
	}
	if last := LastDayOfMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// AddOneMonthClamped advances to the following month and sets the day to
// min(anchorDay, length of that month). A loan anchored on the 31st lands
// on Feb 28 (29 in leap years) and from then on STAYS on the 28th/29th:
// once a short month has clamped the day down, later months keep the
// clamped day rather than creeping back toward the original anchor
// (Jan 31 -> Feb 28 -> Mar 28, not Mar 31).
//
// The target month is computed from day 1 before the day is applied, so
// the result never overflows into the month after.
func (d Date) AddOneMonthClamped(anchorDay int) Date {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	day := anchorDay
	if day < 1 {
		day = 1
	}
	// No creep back: a day already clamped below the anchor stays put.
	if d.Day() < day {
		day = d.Day()
	}
	if last := LastDayOfMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// NextDueDate determines when the next monthly accrual is due.
//
// Subsequent accruals: exactly one calendar month after the last applied
// accrual, clamped to the anchor's day-of-month.
//
// First-ever accrual (lastAccrual nil): the current month's billing date
// (anchor day clamped to this month's length) when today is on or after
// it, otherwise next month's billing date. The special case keeps a loan
// created mid-cycle from skipping its very first payment; afterwards the
// uniform one-month advance takes over.
func NextDueDate(anchor Date, lastAccrual *Date, today Date) Date {
	if lastAccrual != nil {
		return lastAccrual.AddOneMonthClamped(anchor.Day())
	}

	billing := BillingDate(today.Year(), today.Month(), anchor.Day())
	if today.AfterOrEqual(billing) {
		return billing
	}
	return billing.AddOneMonthClamped(anchor.Day())
}
