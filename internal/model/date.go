package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Symbolic date tokens stored in place of a concrete timestamp.
const (
	TokenToday    = "Today"
	TokenTomorrow = "Tomorrow"
	TokenNextWeek = "Next week"
)

// ErrInvalidDate is returned when a due date or reminder cannot be resolved.
var ErrInvalidDate = errors.New("invalid date")

var tokenOffsets = []struct {
	token string
	days  int
}{
	// Longest first so "Today" never shadows a longer token.
	{TokenNextWeek, 7},
	{TokenTomorrow, 1},
	{TokenToday, 0},
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM", "15:04"}

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ResolveDate turns a stored due date or reminder value into a concrete
// instant relative to now. It reports false when the value cannot be parsed;
// callers treat that as "no timestamp".
//
// Tokens may carry a clock suffix ("Tomorrow, 9:00 AM") which pins the time
// of day on the resolved calendar day.
func ResolveDate(raw string, now time.Time) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	for _, tok := range tokenOffsets {
		if len(value) < len(tok.token) || !strings.EqualFold(value[:len(tok.token)], tok.token) {
			continue
		}
		base := now.AddDate(0, 0, tok.days)
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value[len(tok.token):]), ","))
		if rest == "" {
			return base, true
		}
		clock, ok := parseClock(rest)
		if !ok {
			return time.Time{}, false
		}
		return time.Date(base.Year(), base.Month(), base.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location()), true
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateDate returns ErrInvalidDate when raw cannot be resolved.
func ValidateDate(raw string) error {
	if _, ok := ResolveDate(raw, time.Now()); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return nil
}

// IsToken reports whether raw is a bare symbolic token.
func IsToken(raw string) bool {
	value := strings.TrimSpace(raw)
	for _, tok := range tokenOffsets {
		if strings.EqualFold(value, tok.token) {
			return true
		}
	}
	return false
}

// NormalizeDate canonicalises a user-supplied value for storage. Symbolic
// values are kept verbatim so they keep resolving against the current time;
// absolute values are stored as RFC 3339.
func NormalizeDate(raw string, now time.Time) (string, error) {
	value := strings.TrimSpace(raw)
	t, ok := ResolveDate(value, now)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	for _, tok := range tokenOffsets {
		if len(value) >= len(tok.token) && strings.EqualFold(value[:len(tok.token)], tok.token) {
			return value, nil
		}
	}
	return FormatTimestamp(t), nil
}

func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatDue renders the due-date label shown in the detail view.
func FormatDue(raw *string, now time.Time) string {
	if raw == nil {
		return "Add due date"
	}
	value := strings.TrimSpace(*raw)
	for _, tok := range tokenOffsets {
		if strings.EqualFold(value, tok.token) {
			return "Due: " + tok.token
		}
	}
	t, ok := ResolveDate(value, now)
	if !ok {
		return "Due: " + value
	}
	switch {
	case SameDay(t, now):
		return "Due: Today"
	case SameDay(t, now.AddDate(0, 0, 1)):
		return "Due: Tomorrow"
	default:
		return "Due: " + t.In(now.Location()).Format("2006-01-02")
	}
}

// CreatedLabel renders the "created N ago" footer.
func CreatedLabel(createdAt, now time.Time) string {
	minutes := int(now.Sub(createdAt).Minutes())
	switch {
	case minutes < 1:
		return "Created just now"
	case minutes < 60:
		return fmt.Sprintf("Created %d minute%s ago", minutes, plural(minutes))
	case minutes < 24*60:
		hours := minutes / 60
		return fmt.Sprintf("Created %d hour%s ago", hours, plural(hours))
	default:
		return "Created on " + createdAt.In(now.Location()).Format("2006-01-02")
	}
}

func parseClock(value string) (time.Time, bool) {
	upper := strings.ToUpper(value)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
