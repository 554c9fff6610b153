package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

func TestResolveDateTokens(t *testing.T) {
	cases := map[string]time.Time{
		"Today":     refNow,
		"today":     refNow,
		"Tomorrow":  refNow.AddDate(0, 0, 1),
		"Next week": refNow.AddDate(0, 0, 7),
	}
	for raw, want := range cases {
		got, ok := ResolveDate(raw, refNow)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), "%s: want %s got %s", raw, want, got)
	}
}

func TestResolveDateTokenWithClock(t *testing.T) {
	got, ok := ResolveDate("Tomorrow, 9:00 AM", refNow)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC), got)

	got, ok = ResolveDate("Today, 7:00 PM", refNow)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 14, 19, 0, 0, 0, time.UTC), got)

	_, ok = ResolveDate("Today, whenever", refNow)
	assert.False(t, ok)
}

func TestResolveDateAbsolute(t *testing.T) {
	got, ok := ResolveDate("2024-05-01T08:15:00Z", refNow)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.May, 1, 8, 15, 0, 0, time.UTC), got.UTC())

	got, ok = ResolveDate("2024-05-01", refNow)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), got)

	got, ok = ResolveDate("15/12/2024", refNow)
	require.True(t, ok)
	assert.Equal(t, time.December, got.Month())
	assert.Equal(t, 15, got.Day())
}

func TestResolveDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "someday", "2024-13-45", "Yesterday"} {
		_, ok := ResolveDate(raw, refNow)
		assert.False(t, ok, raw)
	}
	assert.ErrorIs(t, ValidateDate("someday"), ErrInvalidDate)
	assert.NoError(t, ValidateDate("Next week"))
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate("Tomorrow", refNow)
	require.NoError(t, err)
	assert.Equal(t, "Tomorrow", got)

	got, err = NormalizeDate("2024-05-01 08:15", refNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T08:15:00Z", got)

	_, err = NormalizeDate("not a date", refNow)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFormatDue(t *testing.T) {
	assert.Equal(t, "Add due date", FormatDue(nil, refNow))

	token := "Next week"
	assert.Equal(t, "Due: Next week", FormatDue(&token, refNow))

	today := FormatTimestamp(refNow.Add(2 * time.Hour))
	assert.Equal(t, "Due: Today", FormatDue(&today, refNow))

	tomorrow := FormatTimestamp(refNow.AddDate(0, 0, 1))
	assert.Equal(t, "Due: Tomorrow", FormatDue(&tomorrow, refNow))

	later := "2024-04-02"
	assert.Equal(t, "Due: 2024-04-02", FormatDue(&later, refNow))

	garbage := "whenever"
	assert.Equal(t, "Due: whenever", FormatDue(&garbage, refNow))
}

func TestCreatedLabel(t *testing.T) {
	assert.Equal(t, "Created just now", CreatedLabel(refNow.Add(-20*time.Second), refNow))
	assert.Equal(t, "Created 1 minute ago", CreatedLabel(refNow.Add(-time.Minute), refNow))
	assert.Equal(t, "Created 5 minutes ago", CreatedLabel(refNow.Add(-5*time.Minute), refNow))
	assert.Equal(t, "Created 3 hours ago", CreatedLabel(refNow.Add(-3*time.Hour), refNow))
	assert.Equal(t, "Created on 2024-03-10", CreatedLabel(refNow.AddDate(0, 0, -4), refNow))
}
