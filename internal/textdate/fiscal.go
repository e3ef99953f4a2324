package textdate

import "time"

// FiscalPeriod is a quarter of the federal fiscal year. FY n runs from
// Oct 1 of year n-1 through Sep 30 of year n.
type FiscalPeriod struct {
	Year    int
	Quarter int
}

// End returns the last day of the fiscal quarter: Q1 ends Dec 31 of the
// preceding calendar year, Q2 Mar 31, Q3 Jun 30, Q4 Sep 30. Returns the
// zero time for a quarter outside 1-4.
func (p FiscalPeriod) End() time.Time {
	switch p.Quarter {
	case 1:
		return time.Date(p.Year-1, time.December, 31, 0, 0, 0, 0, time.UTC)
	case 2:
		return time.Date(p.Year, time.March, 31, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(p.Year, time.June, 30, 0, 0, 0, 0, time.UTC)
	case 4:
		return time.Date(p.Year, time.September, 30, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// FiscalYearEnd returns Sep 30 of the given fiscal year, the date
// disclosure files labeled only "FY2024" are attributed to.
func FiscalYearEnd(year int) time.Time {
	return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
}
