package statement

import (
	"regexp"
	"time"
)

// dateRe matches Colombian statement dates: DD/MM/YYYY or DD-MM-YYYY, with
// one- or two-digit day and month and two- or four-digit year.
var dateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDate converts a source date to an ISO calendar date (YYYY-MM-DD).
// Accepted inputs: DD/MM/YYYY, DD-MM-YYYY (two-digit years are read as 20YY)
// and already-ISO dates, which pass through after validation.
func NormalizeDate(s string) (string, bool) {
	if isoDateRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "", false
		}
		return s, true
	}

	m := dateRe.FindStringSubmatch(s)
	if m == nil || len(m[0]) != len(s) {
		return "", false
	}
	day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; reject anything that
	// moved (e.g. 31/02).
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
