package natskv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/room"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "a1b2c3.meta", metaKey("a1b2c3"))
	assert.Equal(t, "a1b2c3.status", statusKey("a1b2c3"))
	assert.Equal(t, "a1b2c3.timers.5f0c-77", timerKey("a1b2c3", "5f0c-77"))
	assert.Equal(t, "a1b2c3.user-1", presenceKey("a1b2c3", "user-1"))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, DefaultRoomsBucket, opts.RoomsBucket)
	assert.Equal(t, DefaultPresenceBucket, opts.PresenceBucket)
	assert.Positive(t, opts.PresenceTTL)
	assert.Equal(t, -1, opts.MaxReconnects)
}

func runServer(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns.ClientURL()
}

func connect(t *testing.T, url string, ttl time.Duration) *Store {
	t.Helper()

	opts := DefaultOptions()
	opts.URL = url
	opts.PresenceTTL = ttl
	opts.MaxReconnects = 0

	s, err := Connect(context.Background(), opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	url := runServer(t)

	host := connect(t, url, DefaultPresenceTTL)
	guest := connect(t, url, DefaultPresenceTTL)

	require.NoError(t, host.CreateRoom(ctx, "r1", "host"))
	assert.ErrorIs(t, host.CreateRoom(ctx, "r1", "host"), room.ErrRoomExists)

	ok, err := guest.RoomExists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guest.RoomExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	var (
		mu     sync.Mutex
		latest map[string]room.Entry
		status []room.Status
	)

	timerSub, err := guest.WatchTimers(ctx, "r1", func(entries map[string]room.Entry) {
		mu.Lock()
		defer mu.Unlock()

		latest = entries
	})
	require.NoError(t, err)

	defer timerSub.Close()

	statusSub, err := guest.WatchStatus(ctx, "r1", func(st room.Status) {
		mu.Lock()
		defer mu.Unlock()

		status = append(status, st)
	})
	require.NoError(t, err)

	defer statusSub.Close()

	require.NoError(t, host.PutTimers(ctx, "r1", []room.Entry{
		{ID: "5f0c-77", Owner: "host", Chapter: 2, Map: 1, Server: 3, TotalSeconds: 60, RemainingSeconds: 60},
		{ID: "9a1e-02", Owner: "host", Chapter: 1, Map: 4, Server: 1, TotalSeconds: 600, RemainingSeconds: 300},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(latest) == 2 && latest["5f0c-77"].Server == 3
	}, 5*time.Second, 20*time.Millisecond)

	timers, err := guest.Timers(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, timers, 2)
	assert.Equal(t, 300, timers["9a1e-02"].RemainingSeconds)

	require.NoError(t, host.DeleteTimers(ctx, "r1", []string{"5f0c-77", "missing"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		_, ok := latest["5f0c-77"]

		return len(latest) == 1 && !ok
	}, 5*time.Second, 20*time.Millisecond)

	timers, err = guest.Timers(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, timers, 1)

	sub, err := guest.Join(ctx, "r1", room.Presence{UserID: "guest", Role: room.Guest})
	require.NoError(t, err)

	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, guest.Heartbeat(ctx, "r1", "guest", at))

	presence, err := host.Presence(ctx, "r1")
	require.NoError(t, err)
	require.Contains(t, presence, "guest")
	assert.True(t, presence["guest"].Online)
	assert.Equal(t, room.Guest, presence["guest"].Role)
	assert.True(t, presence["guest"].Heartbeat.Equal(at))

	require.NoError(t, sub.Close())

	presence, err = host.Presence(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, presence["guest"].Online)

	require.NoError(t, host.SetStatus(ctx, "r1", room.Status{Directive: room.Stop, IssuedBy: "host"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(status) == 1 && status[0].Directive == room.Stop
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPresenceExpires(t *testing.T) {
	ctx := context.Background()

	s := connect(t, runServer(t), time.Second)

	require.NoError(t, s.CreateRoom(ctx, "r1", "host"))

	_, err := s.Join(ctx, "r1", room.Presence{UserID: "host", Role: room.Host})
	require.NoError(t, err)

	presence, err := s.Presence(ctx, "r1")
	require.NoError(t, err)
	assert.Contains(t, presence, "host")

	require.Eventually(t, func() bool {
		presence, err := s.Presence(ctx, "r1")
		return err == nil && len(presence) == 0
	}, 10*time.Second, 100*time.Millisecond)
}
