package models

import (
	"fmt"
	"time"

	"github.com/ayoisaiah/respawn/internal/timeutil"
)

type (
	// State is the lifecycle position of a timer.
	State string

	// Origin records whether a timer was created here or mirrors a timer
	// owned by another room participant.
	Origin string
)

const (
	Running  State = "running"
	Paused   State = "paused"
	Finished State = "finished"
)

const (
	Local  Origin = "local"
	Remote Origin = "remote"
)

// LocationKey identifies where a boss respawns.
type LocationKey struct {
	Chapter int `json:"chapter"`
	Map     int `json:"map"`
	Server  int `json:"server"`
}

func (k LocationKey) String() string {
	return fmt.Sprintf("EP%d/%d/%d", k.Chapter, k.Map, k.Server)
}

// Timer is a single respawn countdown.
type Timer struct {
	StartedAt          time.Time   `json:"started_at"`
	PauseStartedAt     *time.Time  `json:"pause_started_at,omitempty"`
	ID                 string      `json:"id"`
	Owner              string      `json:"owner"`
	State              State       `json:"state"`
	Origin             Origin      `json:"origin"`
	Location           LocationKey `json:"location"`
	TotalSeconds       int         `json:"total_seconds"`
	RemainingSeconds   int         `json:"remaining_seconds"`
	AccumulatedPauseMs int64       `json:"accumulated_pause_ms"`
	Seq                uint64      `json:"-"`
	Imminent           bool        `json:"imminent"`
}

// RemainingAt computes the remaining seconds at now from the timer's
// timestamps. A paused timer is evaluated at the instant it was paused.
func (t *Timer) RemainingAt(now time.Time) int {
	if t.State == Finished {
		return 0
	}

	at := now
	if t.PauseStartedAt != nil {
		at = *t.PauseStartedAt
	}

	return timeutil.RemainingAt(
		at,
		t.StartedAt,
		t.TotalSeconds,
		time.Duration(t.AccumulatedPauseMs)*time.Millisecond,
	)
}

// Clone returns a deep copy of the timer.
func (t *Timer) Clone() Timer {
	c := *t

	if t.PauseStartedAt != nil {
		p := *t.PauseStartedAt
		c.PauseStartedAt = &p
	}

	return c
}

// Record is the persisted form of a local timer.
type Record struct {
	StartedAt          time.Time  `json:"started_at"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	ID                 string     `json:"id"`
	Chapter            int        `json:"chapter"`
	Map                int        `json:"map"`
	Server             int        `json:"server"`
	TotalSeconds       int        `json:"total_seconds"`
	RemainingSeconds   int        `json:"remaining_seconds"`
	AccumulatedPauseMs int64      `json:"accumulated_pause_ms"`
}

// ToRecord converts the timer into its persisted form.
func (t *Timer) ToRecord() Record {
	c := t.Clone()

	return Record{
		ID:                 c.ID,
		Chapter:            c.Location.Chapter,
		Map:                c.Location.Map,
		Server:             c.Location.Server,
		TotalSeconds:       c.TotalSeconds,
		RemainingSeconds:   c.RemainingSeconds,
		StartedAt:          c.StartedAt,
		AccumulatedPauseMs: c.AccumulatedPauseMs,
		PausedAt:           c.PauseStartedAt,
	}
}

// Timer rebuilds a local timer from the record. The state is derived: a
// record with a pause instant is Paused, one with nothing left is Finished
// and anything else is Running.
func (r Record) Timer(owner string) Timer {
	t := Timer{
		ID:                 r.ID,
		Owner:              owner,
		Origin:             Local,
		Location:           LocationKey{Chapter: r.Chapter, Map: r.Map, Server: r.Server},
		TotalSeconds:       r.TotalSeconds,
		RemainingSeconds:   r.RemainingSeconds,
		StartedAt:          r.StartedAt,
		AccumulatedPauseMs: r.AccumulatedPauseMs,
		State:              Running,
	}

	switch {
	case r.RemainingSeconds <= 0:
		t.State = Finished
		t.RemainingSeconds = 0
	case r.PausedAt != nil:
		p := *r.PausedAt
		t.PauseStartedAt = &p
		t.State = Paused
	}

	return t
}
