// Package natskv implements the room store on NATS JetStream key-value
// buckets.
//
// Room data lives in one bucket under keys of the form
// <room>.meta, <room>.status and <room>.timers.<timer id>. Presence records
// live in a second bucket with a TTL, under <room>.<user id>, so a
// participant that stops sending heartbeats disappears on its own.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ayoisaiah/respawn/internal/room"
)

const (
	DefaultRoomsBucket    = "respawn_rooms"
	DefaultPresenceBucket = "respawn_presence"
	DefaultPresenceTTL    = 30 * time.Second
)

// Options configures the connection and buckets.
type Options struct {
	URL            string
	Name           string
	RoomsBucket    string
	PresenceBucket string
	PresenceTTL    time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultOptions returns options for a local NATS server.
func DefaultOptions() Options {
	return Options{
		URL:            nats.DefaultURL,
		Name:           "respawn",
		RoomsBucket:    DefaultRoomsBucket,
		PresenceBucket: DefaultPresenceBucket,
		PresenceTTL:    DefaultPresenceTTL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

var _ room.Store = (*Store)(nil)

// Store is a room.Store backed by JetStream key-value buckets.
type Store struct {
	nc          *nats.Conn
	rooms       jetstream.KeyValue
	presence    jetstream.KeyValue
	reconnectFn func()
	mu          sync.Mutex
}

// Connect dials NATS and makes sure both buckets exist.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	s := &Store{}

	nc, err := nats.Connect(
		opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
			s.reconnected()
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			slog.Error("NATS error", slog.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s.nc = nc

	s.rooms, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      opts.RoomsBucket,
		Description: "respawn room timers and status",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", opts.RoomsBucket, err)
	}

	s.presence, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      opts.PresenceBucket,
		Description: "respawn room presence",
		History:     1,
		TTL:         opts.PresenceTTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", opts.PresenceBucket, err)
	}

	return s, nil
}

// OnReconnect registers fn to run after the connection is re-established.
func (s *Store) OnReconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnectFn = fn
}

func (s *Store) reconnected() {
	s.mu.Lock()
	fn := s.reconnectFn
	s.mu.Unlock()

	if fn != nil {
		go fn()
	}
}

// Close drains the connection.
func (s *Store) Close() error {
	return s.nc.Drain()
}

func metaKey(roomID string) string { return roomID + ".meta" }
func statusKey(roomID string) string { return roomID + ".status" }
func timersPrefix(roomID string) string { return roomID + ".timers." }
func timerKey(roomID, id string) string { return timersPrefix(roomID) + id }
func presenceKey(roomID, u string) string { return roomID + "." + u }

type meta struct {
	CreatedAt time.Time `json:"created_at"`
	Host      string    `json:"host"`
}

func (s *Store) CreateRoom(ctx context.Context, roomID, host string) error {
	b, err := json.Marshal(meta{Host: host, CreatedAt: time.Now()})
	if err != nil {
		return err
	}

	_, err = s.rooms.Create(ctx, metaKey(roomID), b)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return room.ErrRoomExists
	}

	return err
}

func (s *Store) RoomExists(ctx context.Context, roomID string) (bool, error) {
	_, err := s.rooms.Get(ctx, metaKey(roomID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *Store) PutTimers(ctx context.Context, roomID string, entries []room.Entry) error {
	for i := range entries {
		b, err := json.Marshal(entries[i])
		if err != nil {
			return err
		}

		if _, err := s.rooms.Put(ctx, timerKey(roomID, entries[i].ID), b); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) DeleteTimers(ctx context.Context, roomID string, ids []string) error {
	for _, id := range ids {
		err := s.rooms.Delete(ctx, timerKey(roomID, id))
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return err
		}
	}

	return nil
}

func (s *Store) Timers(ctx context.Context, roomID string) (map[string]room.Entry, error) {
	values, err := collect(ctx, s.rooms, timersPrefix(roomID)+"*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]room.Entry, len(values))

	for key, v := range values {
		var e room.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			slog.Warn("skipping malformed timer entry", slog.String("key", key), slog.Any("error", err))
			continue
		}

		out[strings.TrimPrefix(key, timersPrefix(roomID))] = e
	}

	return out, nil
}

func (s *Store) WatchTimers(
	ctx context.Context,
	roomID string,
	fn func(map[string]room.Entry),
) (room.Subscription, error) {
	prefix := timersPrefix(roomID)

	w, err := s.rooms.Watch(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		entries := make(map[string]room.Entry)
		initialised := false

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case kve, ok := <-w.Updates():
				if !ok {
					return
				}

				if kve == nil {
					initialised = true

					fn(maps.Clone(entries))

					continue
				}

				id := strings.TrimPrefix(kve.Key(), prefix)

				if kve.Operation() == jetstream.KeyValuePut {
					var e room.Entry
					if err := json.Unmarshal(kve.Value(), &e); err != nil {
						slog.Warn("skipping malformed timer entry", slog.String("key", kve.Key()), slog.Any("error", err))
						continue
					}

					entries[id] = e
				} else {
					delete(entries, id)
				}

				if initialised {
					fn(maps.Clone(entries))
				}
			}
		}
	}()

	return room.OnClose(func() error {
		close(done)
		return w.Stop()
	}), nil
}

func (s *Store) Join(ctx context.Context, roomID string, p room.Presence) (room.Subscription, error) {
	p.Online = true

	if err := s.putPresence(ctx, roomID, p); err != nil {
		return nil, err
	}

	return room.OnClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		current, err := s.getPresence(ctx, roomID, p.UserID)
		if err != nil {
			current = p
		}

		current.Online = false

		return s.putPresence(ctx, roomID, current)
	}), nil
}

func (s *Store) Heartbeat(ctx context.Context, roomID, userID string, at time.Time) error {
	p, err := s.getPresence(ctx, roomID, userID)
	if err != nil {
		p = room.Presence{UserID: userID, Role: room.Guest}
	}

	p.Online = true
	p.Heartbeat = at

	return s.putPresence(ctx, roomID, p)
}

func (s *Store) Presence(ctx context.Context, roomID string) (map[string]room.Presence, error) {
	values, err := collect(ctx, s.presence, roomID+".*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]room.Presence, len(values))

	for key, v := range values {
		var p room.Presence
		if err := json.Unmarshal(v, &p); err != nil {
			continue
		}

		out[strings.TrimPrefix(key, roomID+".")] = p
	}

	return out, nil
}

func (s *Store) SetStatus(ctx context.Context, roomID string, st room.Status) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}

	_, err = s.rooms.Put(ctx, statusKey(roomID), b)

	return err
}

func (s *Store) WatchStatus(
	ctx context.Context,
	roomID string,
	fn func(room.Status),
) (room.Subscription, error) {
	w, err := s.rooms.Watch(ctx, statusKey(roomID), jetstream.IgnoreDeletes())
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case kve, ok := <-w.Updates():
				if !ok {
					return
				}

				if kve == nil {
					continue
				}

				var st room.Status
				if err := json.Unmarshal(kve.Value(), &st); err != nil {
					continue
				}

				fn(st)
			}
		}
	}()

	return room.OnClose(func() error {
		close(done)
		return w.Stop()
	}), nil
}

func (s *Store) putPresence(ctx context.Context, roomID string, p room.Presence) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}

	_, err = s.presence.Put(ctx, presenceKey(roomID, p.UserID), b)

	return err
}

func (s *Store) getPresence(ctx context.Context, roomID, userID string) (room.Presence, error) {
	var p room.Presence

	kve, err := s.presence.Get(ctx, presenceKey(roomID, userID))
	if err != nil {
		return p, err
	}

	err = json.Unmarshal(kve.Value(), &p)

	return p, err
}

// collect reads the current value of every key matching pattern.
func collect(ctx context.Context, kv jetstream.KeyValue, pattern string) (map[string][]byte, error) {
	w, err := kv.Watch(ctx, pattern, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = w.Stop()
	}()

	out := make(map[string][]byte)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case kve, ok := <-w.Updates():
			if !ok || kve == nil {
				return out, nil
			}

			out[kve.Key()] = kve.Value()
		}
	}
}
