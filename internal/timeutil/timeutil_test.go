package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestRemainingAt(t *testing.T) {
	testCases := []struct {
		name      string
		elapsed   time.Duration
		paused    time.Duration
		total     int
		remaining int
	}{
		{name: "not started", elapsed: 0, total: 90, remaining: 90},
		{name: "partial second rounds up", elapsed: 500 * time.Millisecond, total: 90, remaining: 90},
		{name: "one second", elapsed: time.Second, total: 90, remaining: 89},
		{name: "pause is excluded", elapsed: 70 * time.Second, paused: 30 * time.Second, total: 90, remaining: 50},
		{name: "exact end", elapsed: 90 * time.Second, total: 90, remaining: 0},
		{name: "long overdue", elapsed: 10 * time.Hour, total: 90, remaining: 0},
		{name: "clock skew", elapsed: -5 * time.Second, total: 90, remaining: 90},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := RemainingAt(epoch.Add(tc.elapsed), epoch, tc.total, tc.paused)
			assert.Equal(t, tc.remaining, got)
		})
	}
}

func TestRemainingAtIsNonIncreasing(t *testing.T) {
	prev := RemainingAt(epoch, epoch, 600, 0)

	for ms := 0; ms <= 610_000; ms += 250 {
		got := RemainingAt(epoch.Add(time.Duration(ms)*time.Millisecond), epoch, 600, 0)
		require.LessOrEqual(t, got, prev)

		prev = got
	}

	assert.Zero(t, prev)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "00:01:30", FormatClock(90))
	assert.Equal(t, "01:00:01", FormatClock(3601))
	assert.Equal(t, "100:00:00", FormatClock(360000))
	assert.Equal(t, "00:00:00", FormatClock(-4))
}

func TestParseSpan(t *testing.T) {
	testCases := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "80", want: 4800},
		{input: "1h20m", want: 4800},
		{input: "90s", want: 90},
		{input: "01:20:00", want: 4800},
		{input: "80:00", want: 4800},
		{input: "00:45", want: 45},
		{input: "1:60", wantErr: true},
		{input: "0", wantErr: true},
		{input: "00:00", wantErr: true},
		{input: "soon", wantErr: true},
		{input: "1:2:3:4", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseSpan(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, errInvalidSpan)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRespawnAt(t *testing.T) {
	now := time.Date(2024, time.March, 1, 20, 0, 0, 0, time.UTC)

	secs, err := ParseRespawnAt("21:30", now)
	require.NoError(t, err)
	assert.Equal(t, 90*60, secs)

	_, err = ParseRespawnAt("not a time at all", now)
	assert.Error(t, err)
}
