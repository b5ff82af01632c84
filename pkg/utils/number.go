package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var humanNumberPattern = regexp.MustCompile(`(?i)^(-?[0-9]*\.?[0-9]+)\s*([KMBT])?$`)

var magnitudeSuffixes = map[string]float64{
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
	"T": 1e12,
}

// ParseHumanNumber converts a human-readable magnitude such as "1.2B",
// "950.4M" or "12,345" into a float. Thousands separators are stripped and
// the K/M/B/T suffix is case-insensitive. The second return value is false
// when the input is not a number of that shape.
func ParseHumanNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}

	m := humanNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		v *= magnitudeSuffixes[strings.ToUpper(m[2])]
	}
	return v, true
}

// ParsePercent parses a value like "12.34%" into 12.34.
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// FormatCompact formats a large number with a K/M/B/T suffix, e.g. 1.2B.
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
