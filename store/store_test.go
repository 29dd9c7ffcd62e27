package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "respawn.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func TestTimers(t *testing.T) {
	c := newTestClient(t)

	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	paused := start.Add(time.Minute)

	records := []models.Record{
		{ID: "b", Chapter: 2, Map: 1, Server: 3, TotalSeconds: 600, RemainingSeconds: 540, StartedAt: start.Add(time.Second), PausedAt: &paused},
		{ID: "a", Chapter: 1, Map: 0, Server: 1, TotalSeconds: 60, RemainingSeconds: 60, StartedAt: start},
	}

	require.NoError(t, c.SaveTimers(records))

	got, err := c.LoadTimers()
	require.NoError(t, err)

	want := []models.Record{records[1], records[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LoadTimers() mismatch (-want +got):\n%s", diff)
	}

	// saving replaces the whole set
	require.NoError(t, c.SaveTimers(records[:1]))

	got, err = c.LoadTimers()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	require.NoError(t, c.SaveTimers(nil))

	got, err = c.LoadTimers()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUserIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respawn.db")

	c, err := NewClient(path)
	require.NoError(t, err)

	first, err := c.UserID()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, c.Close())

	c, err = NewClient(path)
	require.NoError(t, err)

	defer c.Close()

	reopened, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, first, reopened)
}

func TestRoomMembership(t *testing.T) {
	c := newTestClient(t)

	_, ok, err := c.Room()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SaveRoom(RoomMembership{RoomID: "a1b2c3d4e5f6", Role: "host"}))

	m, ok, err := c.Room()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RoomMembership{RoomID: "a1b2c3d4e5f6", Role: "host"}, m)

	require.NoError(t, c.ClearRoom())

	_, ok, err = c.Room()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecondInstanceIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respawn.db")

	c, err := NewClient(path)
	require.NoError(t, err)

	defer c.Close()

	_, err = NewClient(path)
	assert.ErrorIs(t, err, errRespawnRunning)
}
