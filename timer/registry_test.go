package timer

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/models"
)

var (
	epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	keyA  = models.LocationKey{Chapter: 2, Map: 1, Server: 3}
	keyB  = models.LocationKey{Chapter: 1, Map: 4, Server: 1}
)

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(epoch)

	return NewRegistry(clock, "me"), clock
}

func TestAddLocal(t *testing.T) {
	r, _ := newTestRegistry(t)

	tm, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	assert.NotEmpty(t, tm.ID)
	assert.Equal(t, models.Running, tm.State)
	assert.Equal(t, models.Local, tm.Origin)
	assert.Equal(t, "me", tm.Owner)
	assert.Equal(t, 600, tm.RemainingSeconds)
	assert.Equal(t, epoch, tm.StartedAt)

	_, err = r.AddLocal(keyB, 0)
	assert.ErrorIs(t, err, errInvalidDuration)
}

func TestAddLocalRejectsDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t)

	first, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	_, err = r.AddLocal(keyA, 300)

	var dup *DuplicateError

	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.Equal(t, 1, r.Len())

	// a paused timer still holds its location
	_, err = r.PauseOrResume(first.ID)
	require.NoError(t, err)

	_, err = r.AddLocal(keyA, 300)
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, r.Len())

	// a finished one does not
	_, ok := r.Finish(first.ID)
	require.True(t, ok)

	_, err = r.AddLocal(keyA, 300)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestPauseOrResume(t *testing.T) {
	r, clock := newTestRegistry(t)

	tm, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	clock.Advance(100 * time.Second)

	paused, err := r.PauseOrResume(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Paused, paused.State)
	assert.Equal(t, 500, paused.RemainingSeconds)
	require.NotNil(t, paused.PauseStartedAt)

	// time spent paused does not count
	clock.Advance(time.Hour)

	res, err := r.Tick(tm.ID, DefaultImminentWithin)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 500, res.Timer.RemainingSeconds)

	resumed, err := r.PauseOrResume(tm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Running, resumed.State)
	assert.Nil(t, resumed.PauseStartedAt)
	assert.Equal(t, time.Hour.Milliseconds(), resumed.AccumulatedPauseMs)

	clock.Advance(10 * time.Second)

	res, err = r.Tick(tm.ID, DefaultImminentWithin)
	require.NoError(t, err)
	assert.Equal(t, 490, res.Timer.RemainingSeconds)

	// a second pause cycle keeps growing the accumulated pause
	_, err = r.PauseOrResume(tm.ID)
	require.NoError(t, err)

	clock.Advance(time.Second)

	again, err := r.PauseOrResume(tm.ID)
	require.NoError(t, err)
	assert.Greater(t, again.AccumulatedPauseMs, resumed.AccumulatedPauseMs)
}

func TestPauseOrResumeErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.PauseOrResume("missing")
	assert.ErrorIs(t, err, ErrTimerNotFound)

	tm, err := r.AddLocal(keyA, 60)
	require.NoError(t, err)

	r.Finish(tm.ID)

	_, err = r.PauseOrResume(tm.ID)
	assert.ErrorIs(t, err, ErrTimerFinished)

	r.ReplaceRemote([]models.Timer{
		{ID: "remote-1", Owner: "host", Location: keyB, TotalSeconds: 60, RemainingSeconds: 60, State: models.Running, StartedAt: epoch},
	})

	_, err = r.PauseOrResume("remote-1")
	assert.ErrorIs(t, err, ErrRemoteTimer)
}

func TestTickFinishesOnce(t *testing.T) {
	r, clock := newTestRegistry(t)

	tm, err := r.AddLocal(keyA, 15)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	res, err := r.Tick(tm.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.BecameImminent)
	assert.True(t, res.Timer.Imminent)

	clock.Advance(time.Second)

	res, err = r.Tick(tm.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.BecameImminent)

	clock.Advance(time.Minute)

	res, err = r.Tick(tm.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.Equal(t, models.Finished, res.Timer.State)
	assert.Zero(t, res.Timer.RemainingSeconds)

	res, err = r.Tick(tm.ID, 10)
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.False(t, res.Changed)
}

func TestReplaceRemote(t *testing.T) {
	r, clock := newTestRegistry(t)

	local, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	running, removed := r.ReplaceRemote([]models.Timer{
		{ID: "r1", Owner: "host", Location: keyA, TotalSeconds: 600, RemainingSeconds: 600, State: models.Running, StartedAt: epoch},
		{ID: "r2", Owner: "host", Location: keyB, TotalSeconds: 600, RemainingSeconds: 600, State: models.Paused, StartedAt: epoch, PauseStartedAt: &epoch},
	})

	assert.Equal(t, []string{"r1"}, running)
	assert.Empty(t, removed)
	assert.Len(t, r.Remote(), 2)
	assert.Len(t, r.Local(), 1)

	// remote finishes locally before the owner publishes it
	clock.Advance(11 * time.Minute)

	res, err := r.Tick("r1", 10)
	require.NoError(t, err)
	require.True(t, res.Finished)

	running, removed = r.ReplaceRemote([]models.Timer{
		{ID: "r1", Owner: "host", Location: keyA, TotalSeconds: 600, RemainingSeconds: 5, State: models.Running, StartedAt: epoch},
	})

	assert.Empty(t, running)
	assert.Equal(t, []string{"r2"}, removed)

	r1, ok := r.Get("r1")
	require.True(t, ok)
	assert.Equal(t, models.Finished, r1.State)

	_, ok = r.Get(local.ID)
	assert.True(t, ok)

	assert.Equal(t, []string{"r1"}, r.ClearRemote())
	assert.Len(t, r.All(), 1)
}

func TestReplaceRemoteKeepsOrder(t *testing.T) {
	r, _ := newTestRegistry(t)

	entries := []models.Timer{
		{ID: "r1", Owner: "host", Location: keyA, TotalSeconds: 600, RemainingSeconds: 300, State: models.Paused, StartedAt: epoch, PauseStartedAt: &epoch},
		{ID: "r2", Owner: "host", Location: keyB, TotalSeconds: 600, RemainingSeconds: 300, State: models.Paused, StartedAt: epoch, PauseStartedAt: &epoch},
	}

	r.ReplaceRemote(entries)
	first := r.Remote()

	r.ReplaceRemote([]models.Timer{entries[1], entries[0]})
	second := r.Remote()

	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Seq, second[0].Seq)
}

func TestListSortedByRemaining(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	b, err := r.AddLocal(keyB, 60)
	require.NoError(t, err)

	c, err := r.AddLocal(models.LocationKey{Chapter: 1, Map: 0, Server: 2}, 600)
	require.NoError(t, err)

	list := r.ListSortedByRemaining()
	require.Len(t, list, 3)

	assert.Equal(t, []string{b.ID, a.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestImportLocal(t *testing.T) {
	r, clock := newTestRegistry(t)

	tm, err := r.ImportLocal(keyA, 600, 300, false)
	require.NoError(t, err)
	assert.Equal(t, 300, tm.RemainingAt(clock.Now()))

	paused, err := r.ImportLocal(keyB, 600, 120, true)
	require.NoError(t, err)
	assert.Equal(t, models.Paused, paused.State)

	clock.Advance(time.Minute)
	assert.Equal(t, 120, paused.RemainingAt(clock.Now()))

	done, err := r.ImportLocal(models.LocationKey{Chapter: 1, Map: 0, Server: 1}, 600, 0, false)
	require.NoError(t, err)
	assert.Equal(t, models.Finished, done.State)

	_, err = r.ImportLocal(models.LocationKey{Chapter: 1, Map: 1, Server: 1}, 600, 601, false)
	assert.ErrorIs(t, err, errInvalidRemaining)
}

func TestRestore(t *testing.T) {
	r, clock := newTestRegistry(t)

	paused := epoch.Add(-time.Minute)

	skipped := r.Restore([]models.Record{
		{ID: "a", Chapter: 2, Map: 1, Server: 3, TotalSeconds: 600, RemainingSeconds: 600, StartedAt: epoch.Add(-2 * time.Minute)},
		{ID: "b", Chapter: 2, Map: 1, Server: 3, TotalSeconds: 600, RemainingSeconds: 600, StartedAt: epoch},
		{ID: "c", Chapter: 1, Map: 4, Server: 1, TotalSeconds: 600, RemainingSeconds: 540, StartedAt: epoch.Add(-2 * time.Minute), PausedAt: &paused},
	})

	require.Len(t, skipped, 1)
	assert.Equal(t, "b", skipped[0].ID)

	res, err := r.Tick("a", 10)
	require.NoError(t, err)
	assert.Equal(t, 480, res.Timer.RemainingSeconds)

	c, ok := r.Get("c")
	require.True(t, ok)
	assert.Equal(t, models.Paused, c.State)
	assert.Equal(t, 540, c.RemainingAt(clock.Now()))
}

func TestRestoreFinishesExpiredTimers(t *testing.T) {
	r, _ := newTestRegistry(t)

	paused := epoch.Add(-90 * time.Minute)

	skipped := r.Restore([]models.Record{
		{ID: "expired", Chapter: keyA.Chapter, Map: keyA.Map, Server: keyA.Server, TotalSeconds: 90, RemainingSeconds: 90, StartedAt: epoch.Add(-2 * time.Hour)},
		{ID: "paused", Chapter: keyB.Chapter, Map: keyB.Map, Server: keyB.Server, TotalSeconds: 3600, RemainingSeconds: 3600, StartedAt: epoch.Add(-2 * time.Hour), PausedAt: &paused},
	})
	require.Empty(t, skipped)

	expired, ok := r.Get("expired")
	require.True(t, ok)
	assert.Equal(t, models.Finished, expired.State)
	assert.Zero(t, expired.RemainingSeconds)
	assert.Nil(t, expired.PauseStartedAt)

	p, ok := r.Get("paused")
	require.True(t, ok)
	assert.Equal(t, models.Paused, p.State)
	assert.Equal(t, 1800, p.RemainingSeconds)

	added, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)
	assert.NotEqual(t, "expired", added.ID)
	assert.Equal(t, 3, r.Len())
}

func TestClearAll(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.AddLocal(keyA, 600)
	require.NoError(t, err)

	r.ReplaceRemote([]models.Timer{
		{ID: "r1", Owner: "host", Location: keyB, TotalSeconds: 60, RemainingSeconds: 60, State: models.Running, StartedAt: epoch},
	})

	assert.Len(t, r.ClearAll(), 2)
	assert.Zero(t, r.Len())
}
