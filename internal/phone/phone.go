// Package phone normalizes Russian mobile numbers to the +7XXXXXXXXXX form
// stored on customer and seller profiles.
package phone

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	countryPrefix = "+7"
	trunkDigit    = "8"
	normalizedLen = 12
)

// isSeparator reports runes dropped before normalization: unicode whitespace
// (no-break spaces included), 0x1c-0x1f and the characters "-()".
func isSeparator(r rune) bool {
	switch {
	case r == '-', r == '(', r == ')':
		return true
	case r >= 0x1c && r <= 0x1f:
		return true
	}
	return unicode.IsSpace(r)
}

func stripSeparators(raw string) string {
	return strings.Map(func(r rune) rune {
		if isSeparator(r) {
			return -1
		}
		return r
	}, raw)
}

type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid phone number %q: %s", e.Value, e.Reason)
}

// Normalize strips separators and rewrites the leading trunk digit to the
// country prefix. The result is not validated.
func Normalize(raw string) string {
	s := stripSeparators(raw)
	switch {
	case strings.HasPrefix(s, trunkDigit):
		return countryPrefix + s[1:]
	case strings.HasPrefix(s, countryPrefix):
		return s
	default:
		return countryPrefix + s
	}
}

// Validate checks an already normalized number.
func Validate(normalized string) error {
	if utf8.RuneCountInString(normalized) != normalizedLen {
		return &ValidationError{Value: normalized, Reason: fmt.Sprintf("must contain %d characters", normalizedLen)}
	}
	if !strings.HasPrefix(normalized, countryPrefix) {
		return &ValidationError{Value: normalized, Reason: "must start with " + countryPrefix}
	}
	for _, r := range normalized[len(countryPrefix):] {
		if r < '0' || r > '9' {
			return &ValidationError{Value: normalized, Reason: "must contain only digits after the country code"}
		}
	}
	return nil
}

// Clean normalizes raw and validates the result.
func Clean(raw string) (string, error) {
	normalized := Normalize(raw)
	if err := Validate(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
