// Package timeutil provides utility functions for countdown arithmetic and
// for parsing user supplied durations and wall times.
package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"

	"github.com/ayoisaiah/respawn/internal/apperr"
)

const (
	secondsInAMinute = 60
	secondsInAnHour  = 3600
)

var (
	errInvalidSpan = &apperr.Error{
		Message: "invalid duration %q: use a value like 1h20m, 80 (minutes), 01:20:00 or 80:00",
	}

	errInvalidRespawnAt = &apperr.Error{
		Message: "unable to parse %q as a respawn time",
	}

	errRespawnInPast = &apperr.Error{
		Message: "respawn time %s is not in the future",
	}
)

// RemainingAt returns the whole seconds left on a countdown of totalSeconds
// that started at startedAt and has spent pausedFor in a paused state, as
// observed at now. The result is rounded up and never negative, so a timer
// reaches zero only once its full duration has elapsed.
func RemainingAt(
	now, startedAt time.Time,
	totalSeconds int,
	pausedFor time.Duration,
) int {
	elapsed := now.Sub(startedAt) - pausedFor
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := time.Duration(totalSeconds)*time.Second - elapsed
	if remaining <= 0 {
		return 0
	}

	return int((remaining + time.Second - 1) / time.Second)
}

// SecsToHoursMinsSecs splits a seconds value into hours, minutes and seconds.
func SecsToHoursMinsSecs(val int) (hrs, mins, secs int) {
	hrs = val / secondsInAnHour
	mins = (val % secondsInAnHour) / secondsInAMinute
	secs = val % secondsInAMinute

	return
}

// FormatClock renders seconds as HH:MM:SS. Negative values render as zero.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	h, m, s := SecsToHoursMinsSecs(seconds)

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseSpan parses a countdown length into seconds. It accepts Go duration
// strings (1h20m), a bare number of minutes (80), HH:MM:SS and MM:SS.
func ParseSpan(s string) (int, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, ":") {
		return parseClockSpan(s)
	}

	if mins, err := strconv.Atoi(s); err == nil {
		if mins < 1 {
			return 0, errInvalidSpan.Fmt(s)
		}

		return mins * secondsInAMinute, nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, errInvalidSpan.Fmt(s).Wrap(err)
	}

	secs := int(math.Ceil(dur.Seconds()))
	if secs < 1 {
		return 0, errInvalidSpan.Fmt(s)
	}

	return secs, nil
}

func parseClockSpan(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errInvalidSpan.Fmt(s)
	}

	values := make([]int, len(parts))

	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, errInvalidSpan.Fmt(s)
		}

		// only the leading component may exceed 59
		if i > 0 && v >= secondsInAMinute {
			return 0, errInvalidSpan.Fmt(s)
		}

		values[i] = v
	}

	var secs int

	if len(values) == 3 {
		secs = values[0]*secondsInAnHour + values[1]*secondsInAMinute + values[2]
	} else {
		secs = values[0]*secondsInAMinute + values[1]
	}

	if secs < 1 {
		return 0, errInvalidSpan.Fmt(s)
	}

	return secs, nil
}

// ParseRespawnAt parses a natural language wall time such as "21:30" or
// "in 2 hours" relative to now and returns the seconds until that instant.
// A bare clock time that has already passed today refers to tomorrow.
func ParseRespawnAt(expr string, now time.Time) (int, error) {
	cfg := &dateparser.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dateparser.Future,
	}

	dt, err := dateparser.Parse(cfg, expr)
	if err != nil {
		return 0, errInvalidRespawnAt.Fmt(expr).Wrap(err)
	}

	at := dt.Time
	if !at.After(now) && now.Sub(at) < 24*time.Hour {
		at = at.Add(24 * time.Hour)
	}

	if !at.After(now) {
		return 0, errRespawnInPast.Fmt(at.Format(time.DateTime))
	}

	return int((at.Sub(now) + time.Second - 1) / time.Second), nil
}
