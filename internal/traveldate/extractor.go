// Package traveldate extracts trip start/end dates from free-text
// reimbursement reasons such as "出差 2024-03-04 到 2024-03-20" or "3.4-3.24".
//
// Nine grammars are tried in a fixed priority order; the first grammar whose
// matched dates both survive calendar validation wins. The order is
// load-bearing: ambiguous inputs like "1-2" deliberately fall to the last
// grammar only when nothing richer matched. The accepted pair is anchored to
// the morning (上午) of each calendar day, so no half-day arithmetic applies.
package traveldate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Result carries the extracted pair; empty strings mean no extraction
type Result struct {
	StartDate string
	EndDate   string
}

const sep = `\s*(?:到|至|-|~)\s*`

type grammar struct {
	re *regexp.Regexp
	// build turns the submatches into two candidate dates; ok=false falls
	// through to the next grammar
	build func(m []string, today time.Time) (start, end candidate, ok bool)
}

type candidate struct {
	year, month, day int
}

var grammars = []grammar{
	// 2024-1-15 到 2024-1-20
	{
		re: regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})` + sep + `(\d{4})-(\d{1,2})-(\d{1,2})`),
		build: func(m []string, _ time.Time) (candidate, candidate, bool) {
			return cand(m[1], m[2], m[3]), cand(m[4], m[5], m[6]), true
		},
	},
	// 2024/1/15 到 2024/1/20
	{
		re: regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})` + sep + `(\d{4})/(\d{1,2})/(\d{1,2})`),
		build: func(m []string, _ time.Time) (candidate, candidate, bool) {
			return cand(m[1], m[2], m[3]), cand(m[4], m[5], m[6]), true
		},
	},
	// 2024年1月15日 到 2024年1月20日
	{
		re: regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日` + sep + `(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`),
		build: func(m []string, _ time.Time) (candidate, candidate, bool) {
			return cand(m[1], m[2], m[3]), cand(m[4], m[5], m[6]), true
		},
	},
	// 1月15日 到 1月20日, current year assumed
	{
		re: regexp.MustCompile(`(\d{1,2})月\s*(\d{1,2})日` + sep + `(\d{1,2})月\s*(\d{1,2})日`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			y := strconv.Itoa(today.Year())
			return cand(y, m[1], m[2]), cand(y, m[3], m[4]), true
		},
	},
	// 1月15日上午 到 1月20日下午, period tokens discarded, current year
	{
		re: regexp.MustCompile(`(\d{1,2})月\s*(\d{1,2})日\s*(?:上午|下午)?` + sep + `(\d{1,2})月\s*(\d{1,2})日\s*(?:上午|下午)?`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			y := strconv.Itoa(today.Year())
			return cand(y, m[1], m[2]), cand(y, m[3], m[4]), true
		},
	},
	// 3.4-3.24, month.day pairs; months are validated, and a start month
	// later than the current one means the trip was last year
	{
		re: regexp.MustCompile(`(?:^|[^\d.])(\d{1,2})\.(\d{1,2})` + sep + `(\d{1,2})\.(\d{1,2})(?:[^\d.]|$)`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			startMonth, endMonth := atoi(m[1]), atoi(m[3])
			if startMonth < 1 || startMonth > 12 || endMonth < 1 || endMonth > 12 {
				return candidate{}, candidate{}, false
			}
			year := today.Year()
			if startMonth > int(today.Month()) {
				year--
			}
			y := strconv.Itoa(year)
			return cand(y, m[1], m[2]), cand(y, m[3], m[4]), true
		},
	},
	// 25.11.1-12.1, two-digit year expands to 20YY and must land within
	// [1900, currentYear+1]
	{
		re: regexp.MustCompile(`(?:^|[^\d.])(\d{2,4})\.(\d{1,2})\.(\d{1,2})` + sep + `(\d{1,2})\.(\d{1,2})`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			yearStr := m[1]
			if len(yearStr) == 2 {
				yearStr = "20" + yearStr
			}
			year := atoi(yearStr)
			if year < 1900 || year > today.Year()+1 {
				return candidate{}, candidate{}, false
			}
			y := strconv.Itoa(year)
			return cand(y, m[2], m[3]), cand(y, m[4], m[5]), true
		},
	},
	// 15日 到 20日, current month; a start day later than today rolls back
	// one month
	{
		re: regexp.MustCompile(`(?:^|[^\d])(\d{1,2})日` + sep + `(\d{1,2})日`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			return bareDayPair(m[1], m[2], today)
		},
	},
	// 15 到 20, bare day pair, same rollback rule
	{
		re: regexp.MustCompile(`(?:^|[^\d.-])(\d{1,2})` + sep + `(\d{1,2})(?:[^\d.-]|$)`),
		build: func(m []string, today time.Time) (candidate, candidate, bool) {
			return bareDayPair(m[1], m[2], today)
		},
	},
}

// Extract parses reason against the grammar family using the current day as
// the reference point.
func Extract(reason string) Result {
	return ExtractAt(reason, time.Now())
}

// ExtractAt is Extract with an explicit "today". It is pure: the same reason
// and reference day always produce the same result, and nothing is mutated.
func ExtractAt(reason string, today time.Time) Result {
	if reason == "" {
		return Result{}
	}

	for _, g := range grammars {
		m := g.re.FindStringSubmatch(reason)
		if m == nil {
			continue
		}
		start, end, ok := g.build(m, today)
		if !ok {
			continue
		}
		startDate, okStart := normalize(start)
		endDate, okEnd := normalize(end)
		if okStart && okEnd {
			return Result{StartDate: startDate, EndDate: endDate}
		}
	}
	return Result{}
}

// bareDayPair resolves day-only inputs against the reference day
func bareDayPair(startDay, endDay string, today time.Time) (candidate, candidate, bool) {
	year := today.Year()
	month := int(today.Month())
	if atoi(startDay) > today.Day() {
		month--
		if month == 0 {
			month = 12
			year--
		}
	}
	y, mo := strconv.Itoa(year), strconv.Itoa(month)
	return cand(y, mo, startDay), cand(y, mo, endDay), true
}

func cand(year, month, day string) candidate {
	return candidate{year: atoi(year), month: atoi(month), day: atoi(day)}
}

// normalize rejects impossible calendar dates (2024-02-30) by requiring the
// constructed date to round-trip, then renders zero-padded ISO form.
func normalize(c candidate) (string, bool) {
	date := time.Date(c.year, time.Month(c.month), c.day, 0, 0, 0, 0, time.Local)
	if date.Year() != c.year || int(date.Month()) != c.month || date.Day() != c.day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", c.year, c.month, c.day), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
