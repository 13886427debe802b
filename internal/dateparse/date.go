// Package dateparse implements the warranty date input grammar: two literal
// textual forms, D{1,2}.M{1,2}.YY and D{1,2}.M{1,2}.YYYY, normalized to a
// strict DD.MM.YYYY before calendar validation. All arithmetic is date-only;
// time of day never participates.
package dateparse

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Layout is the normalized textual date form.
const Layout = "02.01.2006"

var (
	shortYearRe = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2}$`)
	longYearRe  = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)
	strictRe    = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
)

var (
	// ErrBadFormat reports input that does not match the grammar or does
	// not name a real calendar date.
	ErrBadFormat = errors.New("date must use the DD.MM.YY or DD.MM.YYYY format")

	// ErrNotFuture reports a well-formed date that is not strictly after
	// the current date.
	ErrNotFuture = errors.New("date must be in the future")
)

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Normalize converts grammar-conforming input to the strict DD.MM.YYYY form,
// zero-padding single-digit day and month. Two-digit years are expanded by
// prefixing "20"; the 21st-century assumption is fixed, not configurable.
// Returns ok=false for input outside the grammar.
func Normalize(s string) (string, bool) {
	switch {
	case shortYearRe.MatchString(s):
		parts := strings.Split(s, ".")
		return pad2(parts[0]) + "." + pad2(parts[1]) + ".20" + parts[2], true
	case longYearRe.MatchString(s):
		parts := strings.Split(s, ".")
		return pad2(parts[0]) + "." + pad2(parts[1]) + "." + parts[2], true
	default:
		return "", false
	}
}

// ParseFuture parses user input into a calendar date that is strictly after
// today. Rejections are ErrBadFormat (grammar mismatch or impossible date)
// or ErrNotFuture (today or earlier).
func ParseFuture(s string, today time.Time) (time.Time, error) {
	normalized, ok := Normalize(s)
	if !ok {
		return time.Time{}, ErrBadFormat
	}
	if !strictRe.MatchString(normalized) {
		return time.Time{}, ErrBadFormat
	}

	d, err := time.Parse(Layout, normalized)
	if err != nil {
		return time.Time{}, ErrBadFormat
	}

	if !d.After(DateOnly(today)) {
		return time.Time{}, ErrNotFuture
	}
	return d, nil
}

// DateOnly truncates t to its calendar date in UTC, the common ground for
// comparisons against dates produced by ParseFuture.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the whole-day distance from today to d. Negative when d
// is already past.
func DaysUntil(d, today time.Time) int {
	return int(DateOnly(d).Sub(DateOnly(today)) / (24 * time.Hour))
}

// Format renders a date in the normalized DD.MM.YYYY form.
func Format(d time.Time) string {
	return d.Format(Layout)
}
