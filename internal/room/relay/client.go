package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayoisaiah/respawn/internal/room"
)

var errNotJoined = errors.New("not joined to room")

var _ room.Store = (*Client)(nil)

// Client is a room.Store that talks to a relay server. Writes and watches
// require a prior Join on the same room since they travel over the
// participant socket.
type Client struct {
	http        *http.Client
	dialer      *websocket.Dialer
	conns       map[string]*clientConn
	reconnectFn func()
	base        *url.URL
	mu          sync.Mutex
}

// NewClient returns a client for the relay at baseURL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", baseURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid relay url %q: scheme must be http or https", baseURL)
	}

	return &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		conns:  make(map[string]*clientConn),
	}, nil
}

// OnReconnect registers fn to run after a dropped socket is re-established.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconnectFn = fn
}

func (c *Client) reconnected() {
	c.mu.Lock()
	fn := c.reconnectFn
	c.mu.Unlock()

	if fn != nil {
		go fn()
	}
}

func (c *Client) CreateRoom(ctx context.Context, roomID, host string) error {
	body, err := json.Marshal(createRoomRequest{RoomID: roomID, Host: host})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/rooms"), bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return room.ErrRoomExists
	}

	return fmt.Errorf("create room: unexpected status %s", resp.Status)
}

func (c *Client) RoomExists(ctx context.Context, roomID string) (bool, error) {
	_, err := c.snapshot(ctx, roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (c *Client) Timers(ctx context.Context, roomID string) (map[string]room.Entry, error) {
	snap, err := c.snapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return snap.Timers, nil
}

func (c *Client) Presence(ctx context.Context, roomID string) (map[string]room.Presence, error) {
	snap, err := c.snapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return snap.Presence, nil
}

func (c *Client) PutTimers(_ context.Context, roomID string, entries []room.Entry) error {
	return c.send(roomID, Frame{Type: FramePutTimers, Entries: entries, At: time.Now()})
}

func (c *Client) DeleteTimers(_ context.Context, roomID string, ids []string) error {
	return c.send(roomID, Frame{Type: FrameDeleteTimers, IDs: ids, At: time.Now()})
}

func (c *Client) Heartbeat(_ context.Context, roomID, _ string, at time.Time) error {
	return c.send(roomID, Frame{Type: FrameHeartbeat, At: at})
}

func (c *Client) SetStatus(_ context.Context, roomID string, st room.Status) error {
	return c.send(roomID, Frame{Type: FrameSetStatus, Status: &st, At: time.Now()})
}

func (c *Client) Join(ctx context.Context, roomID string, p room.Presence) (room.Subscription, error) {
	c.mu.Lock()
	if _, ok := c.conns[roomID]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("already joined room %s", roomID)
	}
	c.mu.Unlock()

	cc := &clientConn{
		client:  c,
		roomID:  roomID,
		userID:  p.UserID,
		role:    p.Role,
		timerFn: make(map[int]func(map[string]room.Entry)),
		statFn:  make(map[int]func(room.Status)),
		done:    make(chan struct{}),
	}

	ws, err := cc.dial(ctx)
	if err != nil {
		return nil, err
	}

	cc.ws = ws

	c.mu.Lock()
	c.conns[roomID] = cc
	c.mu.Unlock()

	go cc.readLoop()

	return room.OnClose(func() error {
		c.mu.Lock()
		delete(c.conns, roomID)
		c.mu.Unlock()

		return cc.close()
	}), nil
}

func (c *Client) WatchTimers(
	_ context.Context,
	roomID string,
	fn func(map[string]room.Entry),
) (room.Subscription, error) {
	cc, err := c.conn(roomID)
	if err != nil {
		return nil, err
	}

	return cc.watchTimers(fn), nil
}

func (c *Client) WatchStatus(
	_ context.Context,
	roomID string,
	fn func(room.Status),
) (room.Subscription, error) {
	cc, err := c.conn(roomID)
	if err != nil {
		return nil, err
	}

	return cc.watchStatus(fn), nil
}

func (c *Client) conn(roomID string) (*clientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cc, ok := c.conns[roomID]
	if !ok {
		return nil, errNotJoined
	}

	return cc, nil
}

func (c *Client) send(roomID string, f Frame) error {
	cc, err := c.conn(roomID)
	if err != nil {
		return err
	}

	return cc.write(f)
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path += path

	return u.String()
}

func (c *Client) socketURL(roomID, userID string, role room.Role) string {
	u := *c.base
	u.Path += "/ws/rooms/" + url.PathEscape(roomID)

	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	q := url.Values{}
	q.Set("user", userID)
	q.Set("role", string(role))
	u.RawQuery = q.Encode()

	return u.String()
}

func (c *Client) snapshot(ctx context.Context, roomID string) (room.Snapshot, error) {
	var snap room.Snapshot

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.endpoint("/api/rooms/"+url.PathEscape(roomID)),
		http.NoBody,
	)
	if err != nil {
		return snap, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return snap, room.ErrRoomNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("get room: unexpected status %s", resp.Status)
	}

	err = json.NewDecoder(resp.Body).Decode(&snap)

	return snap, err
}

// clientConn is the participant socket of one room. It caches the last
// pushed state so that late watchers start from it, and redials with
// backoff when the socket drops.
type clientConn struct {
	client  *Client
	ws      *websocket.Conn
	timerFn map[int]func(map[string]room.Entry)
	statFn  map[int]func(room.Status)
	timers  map[string]room.Entry
	status  *room.Status
	done    chan struct{}
	roomID  string
	userID  string
	role    room.Role
	nextID  int
	mu      sync.Mutex
	writeMu sync.Mutex
	once    sync.Once
}

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 15 * time.Second
)

func (cc *clientConn) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, resp, err := cc.client.dialer.DialContext(
		ctx,
		cc.client.socketURL(cc.roomID, cc.userID, cc.role),
		nil,
	)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, room.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	return ws, nil
}

func (cc *clientConn) write(f Frame) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()

	cc.mu.Lock()
	ws := cc.ws
	cc.mu.Unlock()

	if ws == nil {
		return errors.New("relay connection lost")
	}

	_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))

	return ws.WriteJSON(f)
}

func (cc *clientConn) readLoop() {
	for {
		cc.mu.Lock()
		ws := cc.ws
		cc.mu.Unlock()

		for {
			var f Frame

			if err := ws.ReadJSON(&f); err != nil {
				slog.Debug("relay read ended", slog.String("room", cc.roomID), slog.Any("error", err))
				break
			}

			cc.dispatch(f)
		}

		cc.mu.Lock()
		cc.ws = nil
		cc.mu.Unlock()

		if !cc.redial() {
			return
		}

		cc.client.reconnected()
	}
}

// redial reports false once the connection was closed on purpose.
func (cc *clientConn) redial() bool {
	backoff := minBackoff

	for {
		select {
		case <-cc.done:
			return false
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ws, err := cc.dial(ctx)
		cancel()

		if err == nil {
			cc.mu.Lock()
			cc.ws = ws
			cc.mu.Unlock()

			select {
			case <-cc.done:
				ws.Close()
				return false
			default:
			}

			slog.Info("relay reconnected", slog.String("room", cc.roomID))

			return true
		}

		if errors.Is(err, room.ErrRoomNotFound) {
			slog.Warn("room no longer exists on relay", slog.String("room", cc.roomID))
			return false
		}

		slog.Warn(
			"relay reconnect failed",
			slog.String("room", cc.roomID),
			slog.Duration("retry_in", backoff),
			slog.Any("error", err),
		)

		backoff = min(backoff*2, maxBackoff)
	}
}

func (cc *clientConn) dispatch(f Frame) {
	switch f.Type {
	case FrameTimers:
		cc.mu.Lock()
		cc.timers = maps.Clone(f.Timers)
		if cc.timers == nil {
			cc.timers = make(map[string]room.Entry)
		}

		current := cc.timers

		fns := make([]func(map[string]room.Entry), 0, len(cc.timerFn))
		for _, fn := range cc.timerFn {
			fns = append(fns, fn)
		}
		cc.mu.Unlock()

		for _, fn := range fns {
			fn(maps.Clone(current))
		}
	case FrameStatus:
		if f.Status == nil {
			return
		}

		st := *f.Status

		cc.mu.Lock()
		cc.status = &st

		fns := make([]func(room.Status), 0, len(cc.statFn))
		for _, fn := range cc.statFn {
			fns = append(fns, fn)
		}
		cc.mu.Unlock()

		for _, fn := range fns {
			fn(st)
		}
	case FrameError:
		slog.Warn("relay rejected frame", slog.String("room", cc.roomID), slog.String("error", f.Error))
	}
}

func (cc *clientConn) watchTimers(fn func(map[string]room.Entry)) room.Subscription {
	cc.mu.Lock()
	cc.nextID++
	id := cc.nextID
	cc.timerFn[id] = fn

	var current map[string]room.Entry
	if cc.timers != nil {
		current = maps.Clone(cc.timers)
	}
	cc.mu.Unlock()

	if current != nil {
		fn(current)
	}

	return room.OnClose(func() error {
		cc.mu.Lock()
		defer cc.mu.Unlock()

		delete(cc.timerFn, id)

		return nil
	})
}

func (cc *clientConn) watchStatus(fn func(room.Status)) room.Subscription {
	cc.mu.Lock()
	cc.nextID++
	id := cc.nextID
	cc.statFn[id] = fn

	var current *room.Status
	if cc.status != nil {
		st := *cc.status
		current = &st
	}
	cc.mu.Unlock()

	if current != nil {
		fn(*current)
	}

	return room.OnClose(func() error {
		cc.mu.Lock()
		defer cc.mu.Unlock()

		delete(cc.statFn, id)

		return nil
	})
}

func (cc *clientConn) close() error {
	var err error

	cc.once.Do(func() {
		close(cc.done)

		cc.writeMu.Lock()
		defer cc.writeMu.Unlock()

		cc.mu.Lock()
		ws := cc.ws
		cc.mu.Unlock()

		if ws == nil {
			return
		}

		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)

		err = ws.Close()
	})

	return err
}
