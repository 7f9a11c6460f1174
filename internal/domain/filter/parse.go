package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the wire format for date bounds.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD bound. An empty string yields nil (open bound).
func ParseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// ParseTriState parses "true"/"false"; an empty string yields nil.
func ParseTriState(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
	return &b, nil
}

// SplitList splits a comma-separated query value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
