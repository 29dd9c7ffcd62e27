// Package session ties the timer registry, the tick scheduler, the local
// store and the room coordinator together behind typed command handlers.
//
// All registry access happens on the session loop. Handlers are called
// from outside the loop and hop onto it with Dispatcher.Do, while remote
// room I/O stays off the loop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayoisaiah/respawn/codec"
	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/loop"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/notify"
	"github.com/ayoisaiah/respawn/internal/room"
	"github.com/ayoisaiah/respawn/roomsync"
	"github.com/ayoisaiah/respawn/store"
	"github.com/ayoisaiah/respawn/timer"
)

// Notifier announces finished timers. *notify.Notifier implements it.
type Notifier interface {
	Notify(msg string)
	Wait()
}

// Options configures a Session.
type Options struct {
	Config   *config.Config
	Store    store.DB
	Clock    clockwork.Clock
	Loop     loop.Dispatcher
	Notifier Notifier
	// Rooms is the shared room backend. Without one the session is local
	// only and room commands fail with ErrNoBackend.
	Rooms room.Store
}

// Session is the state of one respawn process.
type Session struct {
	clock     clockwork.Clock
	loop      loop.Dispatcher
	db        store.DB
	notifier  Notifier
	registry  *timer.Registry
	scheduler *timer.Scheduler
	coord     *roomsync.Coordinator
	catalog   *catalog.Catalog
	cfg       *config.Config
	userID    string
	listeners []func()
	codec     codec.Codec
	mu        sync.Mutex
}

var (
	_ roomsync.Sink = (*Session)(nil)
	_ Notifier      = (*notify.Notifier)(nil)
)

// New builds a session. Call Restore afterwards to load the saved timers.
func New(opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	cat, err := catalog.New(opts.Config.Catalog)
	if err != nil {
		return nil, err
	}

	userID, err := opts.Store.UserID()
	if err != nil {
		return nil, errIdentity.Wrap(err)
	}

	s := &Session{
		clock:    opts.Clock,
		loop:     opts.Loop,
		db:       opts.Store,
		notifier: opts.Notifier,
		catalog:  cat,
		cfg:      opts.Config,
		userID:   userID,
		codec:    codec.New(opts.Config.Share.BaseChapter),
	}

	s.registry = timer.NewRegistry(opts.Clock, userID)

	s.scheduler = timer.NewScheduler(opts.Clock, s.registry, opts.Loop, timer.SchedulerOptions{
		Interval:       opts.Config.Tick.Interval,
		ImminentWithin: opts.Config.ImminentSeconds(),
		OnChange:       s.ticked,
		OnFinish:       s.finished,
	})

	if opts.Rooms != nil {
		s.coord = roomsync.New(roomsync.Options{
			Store:             opts.Rooms,
			Clock:             opts.Clock,
			Dispatcher:        opts.Loop,
			Sink:              s,
			UserID:            userID,
			HeartbeatInterval: opts.Config.Sync.HeartbeatInterval,
			StaleAfter:        opts.Config.Sync.StaleAfter,
		})
	}

	return s, nil
}

// UserID returns this participant's id.
func (s *Session) UserID() string {
	return s.userID
}

// Now returns the current time of the session clock.
func (s *Session) Now() time.Time {
	return s.clock.Now()
}

// Catalog returns the map catalog the session validates against.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Subscribe registers fn to run on the loop after every change to the
// timers. It returns a function that removes the subscription.
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.listeners)
	s.listeners = append(s.listeners, fn)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.listeners[id] = nil
	}
}

func (s *Session) changed() {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		if fn != nil {
			fn()
		}
	}
}

// Restore loads the saved local timers and schedules the running ones. If
// the previous run was in a room, the membership is resumed; a room that
// can no longer be entered is forgotten.
func (s *Session) Restore(ctx context.Context) error {
	records, err := s.db.LoadTimers()
	if err != nil {
		return errLoadTimers.Wrap(err)
	}

	err = s.loop.Do(ctx, func() error {
		skipped := s.registry.Restore(records)

		for i := range skipped {
			slog.Warn(
				"skipped saved timer",
				slog.String("id", skipped[i].ID),
				slog.Int("chapter", skipped[i].Chapter),
				slog.Int("map", skipped[i].Map),
				slog.Int("server", skipped[i].Server),
			)
		}

		for _, t := range s.registry.Local() {
			if t.State == models.Running {
				s.scheduler.Schedule(t.ID)
			}
		}

		s.changed()

		return nil
	})
	if err != nil {
		return err
	}

	membership, ok, err := s.db.Room()
	if err != nil || !ok || s.coord == nil {
		return err
	}

	err = s.coord.Resume(ctx, membership.RoomID, membership.Role)
	if err == nil {
		return nil
	}

	var cerr *roomsync.RoomConnectivityError
	if errors.As(err, &cerr) {
		// keep the membership so a later run can try again
		slog.Warn("unable to rejoin room", slog.Any("error", err))
		return nil
	}

	slog.Info(
		"forgetting saved room",
		slog.String("room", membership.RoomID),
		slog.Any("reason", err),
	)

	return s.db.ClearRoom()
}

// Close stops every ticker and disconnects from the room without
// withdrawing this participant's timers.
func (s *Session) Close() {
	if s.coord != nil {
		s.coord.Disconnect()
	}

	s.scheduler.CancelAll()

	if s.notifier != nil {
		s.notifier.Wait()
	}
}

// LocalTimers implements roomsync.Sink.
func (s *Session) LocalTimers() []models.Timer {
	return s.registry.Local()
}

// ApplyRemote implements roomsync.Sink. Remote timers of owners listed in
// keep survive the swap.
func (s *Session) ApplyRemote(timers []models.Timer, keep map[string]bool) {
	incoming := make(map[string]struct{}, len(timers))
	for i := range timers {
		incoming[timers[i].ID] = struct{}{}
	}

	for _, t := range s.registry.Remote() {
		if _, ok := incoming[t.ID]; ok || !keep[t.Owner] {
			continue
		}

		timers = append(timers, t)
	}

	running, removed := s.registry.ReplaceRemote(timers)

	for _, id := range removed {
		s.scheduler.Cancel(id)
	}

	for _, id := range running {
		s.scheduler.Schedule(id)
	}

	s.changed()
}

// RoomClosed implements roomsync.Sink.
func (s *Session) RoomClosed(roomID string) {
	for _, id := range s.registry.ClearRemote() {
		s.scheduler.Cancel(id)
	}

	if err := s.db.ClearRoom(); err != nil {
		slog.Warn("unable to forget room", slog.String("room", roomID), slog.Any("error", err))
	}

	s.changed()
}

// ticked runs on the loop for every evaluation that moved a timer.
func (s *Session) ticked(res timer.TickResult) {
	if res.Finished && res.Timer.Origin == models.Local {
		s.localChanged()
	}

	s.changed()
}

func (s *Session) finished(t models.Timer) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(notify.Message(
		s.catalog.Label(t.Location.Chapter),
		s.catalog.MapName(t.Location.Chapter, t.Location.Map),
		t.Location.Server,
	))
}

// localChanged saves and publishes the local timers. It must run on the
// loop after every local lifecycle change.
func (s *Session) localChanged() {
	local := s.registry.Local()

	records := make([]models.Record, 0, len(local))
	for i := range local {
		records = append(records, local[i].ToRecord())
	}

	if err := s.db.SaveTimers(records); err != nil {
		slog.Warn("unable to save timers", slog.Any("error", err))
	}

	if s.coord != nil {
		s.coord.Publish(local)
	}
}

// retrySync repairs a degraded room after a user action. Failures leave
// the session local only until the next attempt.
func (s *Session) retrySync(ctx context.Context) {
	if s.coord == nil || !s.coord.Degraded() {
		return
	}

	if err := s.coord.Resync(ctx); err != nil {
		slog.Warn("room resync failed", slog.Any("error", err))
		return
	}

	slog.Info("room resync succeeded")
}
