package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/room"
)

func newTestRelay(t *testing.T) (*room.Memory, *httptest.Server) {
	t.Helper()

	mem := room.NewMemory()
	srv := httptest.NewServer(NewServer(mem, DefaultServerConfig()).Handler())

	t.Cleanup(srv.Close)

	return mem, srv
}

func TestHealthz(t *testing.T) {
	s := NewServer(room.NewMemory(), DefaultServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateRoomEndpoint(t *testing.T) {
	s := NewServer(room.NewMemory(), DefaultServerConfig())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		return w
	}

	w := post(`{"room_id":"abc123","host":"h"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = post(`{"room_id":"abc123","host":"h"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(`{"room_id":"sync_x","host":"h"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"host":"h"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp createRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.RoomID, 12)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/missing", http.NoBody)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSocketRequiresUser(t *testing.T) {
	mem := room.NewMemory()
	require.NoError(t, mem.CreateRoom(context.Background(), "r1", "h"))

	s := NewServer(mem, DefaultServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/ws/rooms/r1", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem, srv := newTestRelay(t)

	host, err := NewClient(srv.URL)
	require.NoError(t, err)

	guest, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	require.NoError(t, host.CreateRoom(ctx, "r1", "host"))
	assert.ErrorIs(t, host.CreateRoom(ctx, "r1", "host"), room.ErrRoomExists)

	ok, err := guest.RoomExists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guest.RoomExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = guest.Join(ctx, "nope", room.Presence{UserID: "guest", Role: room.Guest})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	hostSub, err := host.Join(ctx, "r1", room.Presence{UserID: "host", Role: room.Host})
	require.NoError(t, err)

	guestSub, err := guest.Join(ctx, "r1", room.Presence{UserID: "guest", Role: room.Guest})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		latest map[string]room.Entry
		status []room.Status
	)

	_, err = guest.WatchTimers(ctx, "r1", func(entries map[string]room.Entry) {
		mu.Lock()
		defer mu.Unlock()

		latest = entries
	})
	require.NoError(t, err)

	_, err = guest.WatchStatus(ctx, "r1", func(st room.Status) {
		mu.Lock()
		defer mu.Unlock()

		status = append(status, st)
	})
	require.NoError(t, err)

	require.NoError(t, host.PutTimers(ctx, "r1", []room.Entry{
		{ID: "a", Owner: "host", Chapter: 2, Map: 1, Server: 3, TotalSeconds: 60, RemainingSeconds: 60},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return latest["a"].Server == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, host.DeleteTimers(ctx, "r1", []string{"a"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		_, ok := latest["a"]

		return latest != nil && !ok
	}, 2*time.Second, 10*time.Millisecond)

	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, guest.Heartbeat(ctx, "r1", "guest", at))

	require.Eventually(t, func() bool {
		p, err := guest.Presence(ctx, "r1")
		return err == nil && p["guest"].Heartbeat.Equal(at)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, host.SetStatus(ctx, "r1", room.Status{Directive: room.Stop, IssuedBy: "host"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(status) == 1 && status[0].Directive == room.Stop
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, guestSub.Close())

	require.Eventually(t, func() bool {
		snap, err := mem.Snapshot("r1")
		return err == nil && !snap.Presence["guest"].Online
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, guest.PutTimers(ctx, "r1", nil), errNotJoined)

	require.NoError(t, hostSub.Close())
}

func TestDispatchEmptyRoom(t *testing.T) {
	cc := &clientConn{
		roomID:  "r1",
		timerFn: make(map[int]func(map[string]room.Entry)),
		statFn:  make(map[int]func(room.Status)),
	}

	var got []map[string]room.Entry

	cc.watchTimers(func(entries map[string]room.Entry) {
		got = append(got, entries)
	})

	cc.dispatch(Frame{Type: FrameTimers, Timers: map[string]room.Entry{
		"a": {ID: "a", Owner: "host", TotalSeconds: 60, RemainingSeconds: 60},
	}})

	// an empty room drops the timers field from the frame
	cc.dispatch(Frame{Type: FrameTimers})

	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.NotNil(t, got[1])
	assert.Empty(t, got[1])
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	c, err := NewClient("https://relay.example.com/base")
	require.NoError(t, err)

	assert.Equal(
		t,
		"wss://relay.example.com/base/ws/rooms/r1?role=host&user=u1",
		c.socketURL("r1", "u1", room.Host),
	)
}
