package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestRecordTimer(t *testing.T) {
	started := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	paused := started.Add(time.Minute)

	testCases := []struct {
		name   string
		record Record
		state  State
	}{
		{
			name:   "running",
			record: Record{ID: "a", TotalSeconds: 600, RemainingSeconds: 300, StartedAt: started},
			state:  Running,
		},
		{
			name:   "paused",
			record: Record{ID: "b", TotalSeconds: 600, RemainingSeconds: 540, StartedAt: started, PausedAt: &paused},
			state:  Paused,
		},
		{
			name:   "finished",
			record: Record{ID: "c", TotalSeconds: 600, RemainingSeconds: 0, StartedAt: started, PausedAt: &paused},
			state:  Finished,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			timer := tc.record.Timer("me")

			assert.Equal(t, tc.state, timer.State)
			assert.Equal(t, Local, timer.Origin)
			assert.Equal(t, "me", timer.Owner)

			if tc.state != Finished {
				if diff := cmp.Diff(tc.record, timer.ToRecord()); diff != "" {
					t.Fatalf("record round trip mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestTimerRemainingAtWhilePaused(t *testing.T) {
	started := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	paused := started.Add(100 * time.Second)

	timer := Timer{
		StartedAt:      started,
		PauseStartedAt: &paused,
		TotalSeconds:   600,
		State:          Paused,
	}

	assert.Equal(t, 500, timer.RemainingAt(started.Add(time.Hour)))

	clone := timer.Clone()
	*clone.PauseStartedAt = started

	assert.Equal(t, paused, *timer.PauseStartedAt)
}
