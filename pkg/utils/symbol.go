package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSymbol is returned when a ticker symbol fails validation.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,15}$`)

// NormalizeSymbol trims and uppercases a user-supplied ticker and validates it.
// Accepted symbols are 1-15 characters of A-Z, 0-9, '.' and '-', e.g. "AAPL",
// "BRK.B" or "BF-B".
func NormalizeSymbol(raw string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return sym, nil
}

// IsValidSymbol reports whether raw normalizes to a valid symbol.
func IsValidSymbol(raw string) bool {
	_, err := NormalizeSymbol(raw)
	return err == nil
}
