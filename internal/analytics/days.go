package analytics

import (
	"strconv"
	"strings"
)

const DefaultDays = 30

// ParseDays reads the days query parameter. Missing, malformed and non-positive
// values fall back to DefaultDays; values above max are capped.
func ParseDays(raw string, max int) int {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days <= 0 {
		days = DefaultDays
	}
	if max > 0 && days > max {
		days = max
	}
	return days
}
