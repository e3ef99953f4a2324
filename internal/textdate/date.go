package textdate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// matcher recognizes one date notation in lowercased text. Matchers either
// produce a date or fall through to the next, looser notation.
type matcher func(text string) (time.Time, bool)

// matchers in precedence order: most specific first. The first match wins,
// so a month name is never shadowed by the bare-year fallback.
var matchers = []matcher{
	matchMonthName,
	matchYearMonth,
	matchFiscalQuarter,
	matchCalendarQuarter,
	matchBareYear,
}

// Extract recognizes a calendar date embedded in text: link labels,
// filenames, URL paths. Returns the zero time and false when no notation
// matches; callers must treat that as "undated", never as "today".
func Extract(text string) (time.Time, bool) {
	lower := strings.ToLower(text)
	for _, m := range matchers {
		if t, ok := m(lower); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// monthTokens in lookup order. Long names come before their abbreviations
// so "february 2026" is claimed by "february", not "feb". The order is part
// of the extraction contract: when a text contains several month-year pairs,
// the earliest token in this list wins, not the earliest in the string.
var monthTokens = []struct {
	name  string
	month time.Month
}{
	{"january", time.January}, {"jan", time.January},
	{"february", time.February}, {"feb", time.February},
	{"march", time.March}, {"mar", time.March},
	{"april", time.April}, {"apr", time.April},
	{"may", time.May},
	{"june", time.June}, {"jun", time.June},
	{"july", time.July}, {"jul", time.July},
	{"august", time.August}, {"aug", time.August},
	{"september", time.September}, {"sep", time.September},
	{"october", time.October}, {"oct", time.October},
	{"november", time.November}, {"nov", time.November},
	{"december", time.December}, {"dec", time.December},
}

var monthNameRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(monthTokens))
	for i, tok := range monthTokens {
		res[i] = regexp.MustCompile(`\b` + tok.name + `[-\s]?(\d{4})\b`)
	}
	return res
}()

// matchMonthName handles "february 2026", "feb-2026", "february2026".
func matchMonthName(text string) (time.Time, bool) {
	for i, tok := range monthTokens {
		m := monthNameRes[i].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, tok.month, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

var yearMonthRe = regexp.MustCompile(`\b(\d{4})[-_](\d{1,2})\b`)

// matchYearMonth handles "2026-02" and "2026_02". A numeric pair outside
// the plausible ranges (month 1-12, year 2000-2100) falls through rather
// than failing, so "2026-13" still resolves via the bare-year fallback.
func matchYearMonth(text string) (time.Time, bool) {
	m := yearMonthRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || year < 2000 || year > 2100 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

var (
	fyThenQuarterRe = regexp.MustCompile(`(?:fy|fiscal\s*year)\s*(\d{4}).*?q(\d)`)
	quarterThenFyRe = regexp.MustCompile(`q(\d).*?(?:fy|fiscal\s*year)\s*(\d{4})`)
)

// matchFiscalQuarter handles "fy2025_q3", "fiscal year 2025 q3" and the
// reversed "q3 fy2025". Fiscal disclosures are dated by period end, so the
// result is the quarter's end date, not its start. When the fiscal-year-
// first form matches, the reversed form is not consulted; a quarter digit
// outside 1-4 falls through to the calendar-quarter notation.
func matchFiscalQuarter(text string) (time.Time, bool) {
	var year, quarter int
	if m := fyThenQuarterRe.FindStringSubmatch(text); m != nil {
		year, _ = strconv.Atoi(m[1])
		quarter, _ = strconv.Atoi(m[2])
	} else if m := quarterThenFyRe.FindStringSubmatch(text); m != nil {
		quarter, _ = strconv.Atoi(m[1])
		year, _ = strconv.Atoi(m[2])
	} else {
		return time.Time{}, false
	}

	if quarter < 1 || quarter > 4 {
		return time.Time{}, false
	}
	return FiscalPeriod{Year: year, Quarter: quarter}.End(), true
}

var calendarQuarterRe = regexp.MustCompile(`\b(\d{4})[-_]?q(\d)\b`)

// matchCalendarQuarter handles "2026q2" and "2026-q2" without a fiscal
// marker: plain calendar quarters starting January, April, July, October.
func matchCalendarQuarter(text string) (time.Time, bool) {
	m := calendarQuarterRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	quarter, _ := strconv.Atoi(m[2])
	if quarter < 1 || quarter > 4 {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month := time.Month((quarter-1)*3 + 1)
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

var bareYearRe = regexp.MustCompile(`\b(20\d{2})\b`)

// matchBareYear is the lowest-confidence fallback: any standalone year
// 2000-2099 resolves to January 1 of that year.
func matchBareYear(text string) (time.Time, bool) {
	m := bareYearRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
}
