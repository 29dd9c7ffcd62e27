// Package roomsync keeps a session's timers in step with a shared room.
//
// Every participant publishes the timers it owns into the room and mirrors
// the timers of everyone else. Writes are last-writer-wins per timer id, so
// two participants editing the same id concurrently may lose one edit.
package roomsync

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jonboulle/clockwork"

	"github.com/ayoisaiah/respawn/internal/loop"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/room"
)

const (
	DefaultHeartbeatInterval = 3 * time.Second
	DefaultStaleAfter        = 10 * time.Second

	ioTimeout = 10 * time.Second
)

// Sink receives the results of inbound sync. Its methods are called on the
// session loop.
type Sink interface {
	// LocalTimers returns the timers owned by this participant.
	LocalTimers() []models.Timer
	// ApplyRemote replaces the mirrored timers with timers. Timers already
	// mirrored from an owner in keep stay as they are.
	ApplyRemote(timers []models.Timer, keep map[string]bool)
	// RoomClosed reports that the host stopped the room.
	RoomClosed(roomID string)
}

// reconnecter is implemented by backends that can tell when a dropped
// connection comes back.
type reconnecter interface {
	OnReconnect(fn func())
}

// Options configures a Coordinator.
type Options struct {
	Store             room.Store
	Clock             clockwork.Clock
	Dispatcher        loop.Dispatcher
	Sink              Sink
	UserID            string
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
}

// Info describes the current room membership.
type Info struct {
	RoomID       string
	Role         room.Role
	Participants int
	Active       bool
	Degraded     bool
}

// Coordinator manages at most one room membership. Create, Join, Stop,
// Leave and Resync perform remote I/O and must not be called from the
// session loop. Publish never blocks and may be called from anywhere.
type Coordinator struct {
	opts   Options
	active *membership
	mu     sync.Mutex
}

type membership struct {
	published    map[string]struct{}
	pending      *batch
	wake         chan struct{}
	done         chan struct{}
	roomID       string
	role         room.Role
	subs         []room.Subscription
	workers      sync.WaitGroup
	participants int
	degraded     bool
	entered      bool
	stopped      bool
}

type batch struct {
	deletes map[string]struct{}
	puts    []room.Entry
}

// New returns an inactive coordinator.
func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}

	c := &Coordinator{opts: opts}

	if r, ok := opts.Store.(reconnecter); ok {
		r.OnReconnect(c.reconnected)
	}

	return c
}

// Info returns a snapshot of the membership state.
func (c *Coordinator) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.active
	if m == nil {
		return Info{}
	}

	return Info{
		Active:       true,
		RoomID:       m.roomID,
		Role:         m.role,
		Participants: m.participants,
		Degraded:     m.degraded,
	}
}

// Degraded reports whether the last exchange with the room failed.
func (c *Coordinator) Degraded() bool {
	return c.Info().Degraded
}

// Create registers a new room and enters it as host. An empty roomID
// generates one.
func (c *Coordinator) Create(ctx context.Context, roomID string) (string, error) {
	if roomID == "" {
		roomID = room.NewID()
	}

	if err := room.ValidateID(roomID); err != nil {
		return "", errInvalidRoomID.Fmt(roomID)
	}

	if info := c.Info(); info.Active {
		return "", ErrAlreadyInRoom.Fmt(info.RoomID)
	}

	err := c.opts.Store.CreateRoom(ctx, roomID, c.opts.UserID)
	if errors.Is(err, room.ErrRoomExists) {
		return "", ErrRoomTaken.Fmt(roomID)
	}

	if err != nil {
		return "", &RoomConnectivityError{Op: "create", RoomID: roomID, Err: err}
	}

	if err := c.enter(ctx, roomID, room.Host); err != nil {
		return "", err
	}

	return roomID, nil
}

// Join enters an existing room as a guest.
func (c *Coordinator) Join(ctx context.Context, roomID string) error {
	return c.Resume(ctx, roomID, room.Guest)
}

// Resume enters an existing room with the given role. It is used to rejoin
// the room a previous run of the session was in.
func (c *Coordinator) Resume(ctx context.Context, roomID string, role room.Role) error {
	if err := room.ValidateID(roomID); err != nil {
		return errInvalidRoomID.Fmt(roomID)
	}

	if info := c.Info(); info.Active {
		return ErrAlreadyInRoom.Fmt(info.RoomID)
	}

	ok, err := c.opts.Store.RoomExists(ctx, roomID)
	if err != nil {
		return &RoomConnectivityError{Op: "lookup", RoomID: roomID, Err: err}
	}

	if !ok {
		return ErrRoomNotFound.Fmt(roomID)
	}

	return c.enter(ctx, roomID, role)
}

func (c *Coordinator) enter(ctx context.Context, roomID string, role room.Role) error {
	m := &membership{
		roomID:    roomID,
		role:      role,
		published: make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrAlreadyInRoom.Fmt(c.active.roomID)
	}

	c.active = m
	c.mu.Unlock()

	fail := func(op string, err error) error {
		c.detach(m)
		return &RoomConnectivityError{Op: op, RoomID: roomID, Err: err}
	}

	member, err := c.opts.Store.Join(ctx, roomID, room.Presence{
		UserID:    c.opts.UserID,
		Role:      role,
		Heartbeat: c.opts.Clock.Now(),
	})
	if err != nil {
		return fail("join", err)
	}

	c.track(m, member)

	// watches outlive ctx and end when the subscription is closed
	status, err := c.opts.Store.WatchStatus(context.Background(), roomID, func(st room.Status) {
		c.statusChanged(m, st)
	})
	if err != nil {
		return fail("watch status", err)
	}

	c.track(m, status)

	timers, err := c.opts.Store.WatchTimers(context.Background(), roomID, func(entries map[string]room.Entry) {
		c.timersChanged(m, entries)
	})
	if err != nil {
		return fail("watch timers", err)
	}

	c.track(m, timers)

	c.mu.Lock()
	stopped := m.stopped || c.active != m
	m.entered = true

	if !stopped {
		m.workers.Add(2)
	}
	c.mu.Unlock()

	if stopped {
		c.detach(m)
		return ErrRoomClosed.Fmt(roomID)
	}

	go func() {
		defer m.workers.Done()
		c.heartbeat(m)
	}()

	go func() {
		defer m.workers.Done()
		c.publisher(m)
	}()

	slog.Info(
		"entered room",
		slog.String("room", roomID),
		slog.String("role", string(role)),
	)

	local, err := c.localTimers(ctx)
	if err != nil {
		return err
	}

	c.Publish(local)

	return nil
}

// track adds sub to the membership, or closes it right away when the
// membership already ended.
func (c *Coordinator) track(m *membership, sub room.Subscription) {
	c.mu.Lock()
	if c.active == m {
		m.subs = append(m.subs, sub)
		c.mu.Unlock()

		return
	}
	c.mu.Unlock()

	_ = sub.Close()
}

func (c *Coordinator) isCurrent(m *membership) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active == m
}

func (c *Coordinator) current() *membership {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// detach ends m and releases its subscriptions. It reports false when m
// was no longer the active membership.
func (c *Coordinator) detach(m *membership) bool {
	c.mu.Lock()
	if c.active != m {
		c.mu.Unlock()
		return false
	}

	c.active = nil
	subs := m.subs
	m.subs = nil
	close(m.done)
	c.mu.Unlock()

	// no heartbeat or publish may land after the presence is withdrawn
	m.workers.Wait()

	for i := len(subs) - 1; i >= 0; i-- {
		if err := subs[i].Close(); err != nil {
			slog.Warn("closing room subscription failed", slog.String("room", m.roomID), slog.Any("error", err))
		}
	}

	return true
}

// Stop ends the room for every participant. Only the host may stop it.
func (c *Coordinator) Stop(ctx context.Context) error {
	m := c.current()
	if m == nil {
		return ErrNotInRoom
	}

	if m.role != room.Host {
		return ErrNotHost
	}

	err := c.opts.Store.SetStatus(ctx, m.roomID, room.Status{
		Directive: room.Stop,
		IssuedBy:  c.opts.UserID,
		IssuedAt:  c.opts.Clock.Now(),
	})
	if err != nil {
		return c.degrade(m, "stop", err)
	}

	c.detach(m)

	slog.Info("stopped room", slog.String("room", m.roomID))

	return nil
}

// Leave exits the room and withdraws this participant's timers from it.
// The room itself stays open for the others.
func (c *Coordinator) Leave(ctx context.Context) error {
	m := c.current()
	if m == nil {
		return ErrNotInRoom
	}

	c.mu.Lock()
	ids := slices.Sorted(maps.Keys(m.published))
	c.mu.Unlock()

	if !c.detach(m) {
		return ErrNotInRoom
	}

	if len(ids) > 0 {
		if err := c.opts.Store.DeleteTimers(ctx, m.roomID, ids); err != nil {
			slog.Warn("withdrawing timers from room failed", slog.String("room", m.roomID), slog.Any("error", err))
		}
	}

	slog.Info("left room", slog.String("room", m.roomID))

	return nil
}

// Disconnect ends the membership without touching the room. Other
// participants see this one go offline and keep its timers, and a later
// Resume picks the membership up again.
func (c *Coordinator) Disconnect() {
	m := c.current()
	if m == nil {
		return
	}

	c.mu.Lock()
	b := m.pending
	m.pending = nil
	c.mu.Unlock()

	if b != nil {
		if err := c.flush(m, b); err != nil {
			slog.Warn("publishing timers before disconnect failed", slog.String("room", m.roomID), slog.Any("error", err))
		}
	}

	if c.detach(m) {
		slog.Info("disconnected from room", slog.String("room", m.roomID))
	}
}

// Publish queues the full set of local timers for the room. Entries for
// ids published before but missing from local are deleted. Consecutive
// calls coalesce so that only the latest set is written.
func (c *Coordinator) Publish(local []models.Timer) {
	now := c.opts.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.active
	if m == nil {
		return
	}

	ids := make(map[string]struct{}, len(local))
	puts := make([]room.Entry, 0, len(local))

	for i := range local {
		if local[i].Origin != models.Local {
			continue
		}

		ids[local[i].ID] = struct{}{}
		puts = append(puts, room.EntryFromTimer(local[i], now))
	}

	deletes := make(map[string]struct{})

	if m.pending != nil {
		maps.Copy(deletes, m.pending.deletes)
	}

	for id := range m.published {
		deletes[id] = struct{}{}
	}

	for id := range ids {
		delete(deletes, id)
	}

	m.published = ids
	m.pending = &batch{puts: puts, deletes: deletes}

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) publisher(m *membership) {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		c.mu.Lock()
		b := m.pending
		m.pending = nil
		c.mu.Unlock()

		if b == nil {
			continue
		}

		if err := c.flush(m, b); err != nil {
			_ = c.degrade(m, "publish", err)
		}
	}
}

func (c *Coordinator) flush(m *membership, b *batch) error {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if len(b.puts) > 0 {
		if err := c.opts.Store.PutTimers(ctx, m.roomID, b.puts); err != nil {
			return err
		}
	}

	if len(b.deletes) > 0 {
		ids := slices.Sorted(maps.Keys(b.deletes))
		if err := c.opts.Store.DeleteTimers(ctx, m.roomID, ids); err != nil {
			return err
		}
	}

	return nil
}

func (c *Coordinator) heartbeat(m *membership) {
	ticker := c.opts.Clock.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	c.beat(m)

	for {
		select {
		case <-m.done:
			return
		case <-ticker.Chan():
			c.beat(m)
		}
	}
}

func (c *Coordinator) beat(m *membership) {
	select {
	case <-m.done:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	now := c.opts.Clock.Now()

	if err := c.opts.Store.Heartbeat(ctx, m.roomID, c.opts.UserID, now); err != nil {
		_ = c.degrade(m, "heartbeat", err)
		return
	}

	presence, err := c.opts.Store.Presence(ctx, m.roomID)
	if err != nil {
		_ = c.degrade(m, "presence", err)
		return
	}

	c.countParticipants(m, presence, now)
}

func (c *Coordinator) countParticipants(m *membership, presence map[string]room.Presence, now time.Time) {
	n := 0

	for _, p := range presence {
		if c.live(p, true, now) {
			n++
		}
	}

	c.mu.Lock()
	m.participants = n
	c.mu.Unlock()
}

func (c *Coordinator) live(p room.Presence, known bool, now time.Time) bool {
	return known && p.Online && now.Sub(p.Heartbeat) <= c.opts.StaleAfter
}

// timersChanged turns a room snapshot into mirrored timers. Entries whose
// owner went silent are left out and the owner is reported in keep, so
// the session holds on to what it last saw from them.
func (c *Coordinator) timersChanged(m *membership, entries map[string]room.Entry) {
	if !c.isCurrent(m) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	now := c.opts.Clock.Now()

	presence, err := c.opts.Store.Presence(ctx, m.roomID)
	if err != nil {
		_ = c.degrade(m, "presence", err)
	} else {
		c.countParticipants(m, presence, now)
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug(
			"room snapshot",
			slog.String("room", m.roomID),
			slog.String("entries", spew.Sdump(entries)),
		)
	}

	timers := make([]models.Timer, 0, len(entries))
	keep := make(map[string]bool)

	for _, e := range entries {
		if e.Owner == c.opts.UserID {
			continue
		}

		if presence != nil {
			p, ok := presence[e.Owner]
			if !c.live(p, ok, now) {
				keep[e.Owner] = true
				continue
			}
		}

		timers = append(timers, e.Timer())
	}

	slices.SortFunc(timers, func(a, b models.Timer) int {
		return cmp.Compare(a.ID, b.ID)
	})

	c.opts.Dispatcher.Dispatch(func() {
		if c.isCurrent(m) {
			c.opts.Sink.ApplyRemote(timers, keep)
		}
	})
}

func (c *Coordinator) statusChanged(m *membership, st room.Status) {
	if st.Directive != room.Stop || m.role == room.Host {
		return
	}

	c.mu.Lock()
	if c.active != m || m.stopped {
		c.mu.Unlock()
		return
	}

	m.stopped = true
	entered := m.entered
	c.mu.Unlock()

	// enter reports the closed room itself
	if !entered {
		return
	}

	slog.Info(
		"host stopped the room",
		slog.String("room", m.roomID),
		slog.String("host", st.IssuedBy),
	)

	// the backend may be delivering this from inside a store call
	go func() {
		if c.detach(m) {
			c.opts.Dispatcher.Dispatch(func() {
				c.opts.Sink.RoomClosed(m.roomID)
			})
		}
	}()
}

// degrade records a failed exchange. The membership stays in place and
// the next Resync repairs it.
func (c *Coordinator) degrade(m *membership, op string, err error) error {
	cerr := &RoomConnectivityError{Op: op, RoomID: m.roomID, Err: err}

	slog.Warn("room sync degraded to local only", slog.Any("error", cerr))

	c.mu.Lock()
	if c.active == m {
		m.degraded = true
	}
	c.mu.Unlock()

	return cerr
}

func (c *Coordinator) localTimers(ctx context.Context) ([]models.Timer, error) {
	var local []models.Timer

	err := c.opts.Dispatcher.Do(ctx, func() error {
		local = c.opts.Sink.LocalTimers()
		return nil
	})

	return local, err
}

// Resync re-announces this participant, rewrites every local timer into
// the room, deletes entries this participant owns that no longer exist
// locally, and reapplies the room's current timers.
func (c *Coordinator) Resync(ctx context.Context) error {
	m := c.current()
	if m == nil {
		return ErrNotInRoom
	}

	local, err := c.localTimers(ctx)
	if err != nil {
		return err
	}

	if err := c.opts.Store.Heartbeat(ctx, m.roomID, c.opts.UserID, c.opts.Clock.Now()); err != nil {
		return c.degrade(m, "heartbeat", err)
	}

	entries, err := c.opts.Store.Timers(ctx, m.roomID)
	if err != nil {
		return c.degrade(m, "fetch timers", err)
	}

	now := c.opts.Clock.Now()
	ids := make(map[string]struct{}, len(local))
	b := &batch{deletes: make(map[string]struct{})}

	for i := range local {
		if local[i].Origin != models.Local {
			continue
		}

		ids[local[i].ID] = struct{}{}
		b.puts = append(b.puts, room.EntryFromTimer(local[i], now))
	}

	for id, e := range entries {
		if _, ok := ids[id]; !ok && e.Owner == c.opts.UserID {
			b.deletes[id] = struct{}{}
		}
	}

	if err := c.flush(m, b); err != nil {
		return c.degrade(m, "publish", err)
	}

	c.mu.Lock()
	if c.active == m {
		m.published = ids
		m.degraded = false
	}
	c.mu.Unlock()

	entries, err = c.opts.Store.Timers(ctx, m.roomID)
	if err != nil {
		return c.degrade(m, "fetch timers", err)
	}

	c.timersChanged(m, entries)

	slog.Info("room resynced", slog.String("room", m.roomID))

	return nil
}

func (c *Coordinator) reconnected() {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	err := c.Resync(ctx)
	if err != nil && !errors.Is(err, ErrNotInRoom) {
		slog.Warn("resync after reconnect failed", slog.Any("error", err))
	}
}
