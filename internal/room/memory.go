package room

import (
	"context"
	"maps"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is a Store held in process memory. Watchers are called on the
// goroutine that made the change, after the store lock is released, and
// one change at a time. A watcher must not write to the store or start a
// new watch before returning.
type Memory struct {
	rooms    map[string]*memRoom
	mu       sync.Mutex
	notifyMu sync.Mutex
	nextID   int
}

type memRoom struct {
	timers         map[string]Entry
	users          map[string]Presence
	timerWatchers  map[int]func(map[string]Entry)
	statusWatchers map[int]func(Status)
	status         *Status
	host           string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*memRoom),
	}
}

func (m *Memory) CreateRoom(_ context.Context, roomID, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; ok {
		return ErrRoomExists
	}

	m.rooms[roomID] = &memRoom{
		host:           host,
		timers:         make(map[string]Entry),
		users:          make(map[string]Presence),
		timerWatchers:  make(map[int]func(map[string]Entry)),
		statusWatchers: make(map[int]func(Status)),
	}

	return nil
}

func (m *Memory) RoomExists(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.rooms[roomID]

	return ok, nil
}

func (m *Memory) PutTimers(_ context.Context, roomID string, entries []Entry) error {
	return m.mutateTimers(roomID, func(r *memRoom) {
		for _, e := range entries {
			r.timers[e.ID] = e
		}
	})
}

func (m *Memory) DeleteTimers(_ context.Context, roomID string, ids []string) error {
	return m.mutateTimers(roomID, func(r *memRoom) {
		for _, id := range ids {
			delete(r.timers, id)
		}
	})
}

func (m *Memory) Timers(_ context.Context, roomID string) (map[string]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return maps.Clone(r.timers), nil
}

func (m *Memory) WatchTimers(
	_ context.Context,
	roomID string,
	fn func(map[string]Entry),
) (Subscription, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()

	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	m.nextID++
	id := m.nextID
	r.timerWatchers[id] = fn
	snapshot := maps.Clone(r.timers)

	m.mu.Unlock()

	fn(snapshot)

	return OnClose(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(r.timerWatchers, id)

		return nil
	}), nil
}

func (m *Memory) Join(_ context.Context, roomID string, p Presence) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	p.Online = true
	r.users[p.UserID] = p

	return OnClose(func() error {
		m.Drop(roomID, p.UserID)
		return nil
	}), nil
}

// Drop marks a participant offline as if its connection was lost.
func (m *Memory) Drop(roomID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return
	}

	if p, ok := r.users[userID]; ok {
		p.Online = false
		r.users[userID] = p
	}
}

func (m *Memory) Heartbeat(_ context.Context, roomID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}

	p, ok := r.users[userID]
	if !ok {
		p = Presence{UserID: userID, Role: Guest}
	}

	p.Online = true
	p.Heartbeat = at
	r.users[userID] = p

	return nil
}

func (m *Memory) Presence(_ context.Context, roomID string) (map[string]Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return maps.Clone(r.users), nil
}

func (m *Memory) SetStatus(_ context.Context, roomID string, s Status) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()

	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return ErrRoomNotFound
	}

	r.status = &s
	watchers := make([]func(Status), 0, len(r.statusWatchers))

	for _, fn := range r.statusWatchers {
		watchers = append(watchers, fn)
	}

	m.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}

	return nil
}

func (m *Memory) WatchStatus(
	_ context.Context,
	roomID string,
	fn func(Status),
) (Subscription, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()

	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	m.nextID++
	id := m.nextID
	r.statusWatchers[id] = fn

	var current *Status

	if r.status != nil {
		s := *r.status
		current = &s
	}

	m.mu.Unlock()

	if current != nil {
		fn(*current)
	}

	return OnClose(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(r.statusWatchers, id)

		return nil
	}), nil
}

// Snapshot is the full state of one room.
type Snapshot struct {
	Timers   map[string]Entry    `json:"timers"`
	Presence map[string]Presence `json:"presence"`
	Status   *Status             `json:"status,omitempty"`
	Host     string              `json:"host"`
}

// Snapshot returns a copy of a room's state.
func (m *Memory) Snapshot(roomID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}

	snap := Snapshot{
		Host:     r.host,
		Timers:   maps.Clone(r.timers),
		Presence: maps.Clone(r.users),
	}

	if r.status != nil {
		s := *r.status
		snap.Status = &s
	}

	return snap, nil
}

func (m *Memory) mutateTimers(roomID string, mutate func(*memRoom)) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()

	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return ErrRoomNotFound
	}

	mutate(r)

	watchers := make([]func(map[string]Entry), 0, len(r.timerWatchers))
	for _, fn := range r.timerWatchers {
		watchers = append(watchers, fn)
	}

	m.mu.Unlock()

	for _, fn := range watchers {
		m.mu.Lock()
		snapshot := maps.Clone(r.timers)
		m.mu.Unlock()

		fn(snapshot)
	}

	return nil
}
