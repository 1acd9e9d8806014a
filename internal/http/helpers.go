package http

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crm/internal/core"
)

const (
	dateLayout          = "2006-01-02"
	datetimeLocalLayout = "2006-01-02T15:04"
)

// formatChange renders a change as a signed percentage with one decimal,
// e.g. "+12.5%" or "-3.0%".
func formatChange(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if v >= 0 && !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s + "%"
}

// formatPercent renders a rate with one decimal, e.g. "42.9%".
func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// formatDollars renders an amount with thousands separators and only the
// cents that are needed: 12345 -> "$12,345", 1234.5 -> "$1,234.5".
func formatDollars(d float64) string {
	cents := int64(math.Round(d * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}

	s := "$" + groupThousands(cents/100)
	if frac := cents % 100; frac != 0 {
		f := strconv.FormatInt(frac+100, 10)[1:]
		s += "." + strings.TrimRight(f, "0")
	}
	if neg {
		return "-" + s
	}
	return s
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// queryInt reads a positive integer parameter, falling back to def when it
// is missing or malformed and capping it at max when max > 0.
func queryInt(q url.Values, key string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil || v < 1 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func queryID(q url.Values, key string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(q.Get(key)), 10, 64)
	if err != nil || id < 1 {
		return 0
	}
	return id
}

// parseTime accepts RFC 3339, a datetime-local value or a bare date. Values
// without an offset are read in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(datetimeLocalLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, errBadRequest("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// parseOptionalTime returns nil for an empty or absent value.
func parseOptionalTime(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseTime(*s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// totalPages rounds up; an empty listing has zero pages.
func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// dollarsPtr converts an optional amount for JSON output.
func dollarsPtr(m *core.Money) *float64 {
	if m == nil {
		return nil
	}
	d := m.Dollars()
	return &d
}
