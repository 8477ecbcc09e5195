package plate

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	expiryPattern       = regexp.MustCompile(`^(\d{1,2})[-/](\d{2})$`)
	strictExpiryPattern = regexp.MustCompile(`^(\d{2})-(\d{2})$`)
)

// RemainingDaysFromExpiry returns the number of days from the start of the
// day of now until the last day of the month named by an "MM-YY" token.
// The count is negative once the plate has expired. ok is false when the
// token does not have the MM-YY (or MM/YY) shape.
func RemainingDaysFromExpiry(token string, now time.Time) (days int, ok bool) {
	m := expiryPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}

	month, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	month = min(max(month, 1), 12)
	year := 2000 + yy

	loc := now.Location()
	endOfMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	diff := float64(endOfMonth.Sub(startOfDay)) / float64(24*time.Hour)
	return int(math.Ceil(diff)), true
}

// ExpiryToDate converts a strict "MM-YY" token to the first day of that
// month, which is how expiry dates are stored.
func ExpiryToDate(token string) (time.Time, bool) {
	m := strictExpiryPattern.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(2000+yy, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}
