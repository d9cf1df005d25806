package schedule

import (
	"regexp"
	"strconv"
	"time"
)

var periodRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\s*[-~]\s*(\d{1,2})/(\d{1,2})$`)

// WithinPeriod reports whether ref falls inside an "MM/DD-MM/DD" period
// token, inclusive on both ends. The token carries no year, so one is
// inferred from ref: when the end month is numerically smaller than the
// start month the range crosses a year boundary, and whether the start gets
// last year or the end gets next year depends on which side of the boundary
// ref sits (January and February count as the far side). This is a known
// approximation; notices are only ever looked up within weeks of posting.
func WithinPeriod(period string, ref time.Time) bool {
	m := periodRe.FindStringSubmatch(period)
	if m == nil {
		return false
	}
	startMonth, _ := strconv.Atoi(m[1])
	startDay, _ := strconv.Atoi(m[2])
	endMonth, _ := strconv.Atoi(m[3])
	endDay, _ := strconv.Atoi(m[4])
	if startMonth < 1 || startMonth > 12 || endMonth < 1 || endMonth > 12 {
		return false
	}

	startYear := ref.Year()
	endYear := ref.Year()
	if endMonth < startMonth {
		if ref.Month() <= time.February {
			startYear--
		} else {
			endYear++
		}
	}

	loc := ref.Location()
	start := time.Date(startYear, time.Month(startMonth), startDay, 0, 0, 0, 0, loc)
	end := time.Date(endYear, time.Month(endMonth), endDay, 23, 59, 59, 0, loc)
	return !ref.Before(start) && !ref.After(end)
}
