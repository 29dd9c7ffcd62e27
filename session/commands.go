package session

import (
	"context"
	"strings"

	"github.com/ayoisaiah/respawn/codec"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/room"
	"github.com/ayoisaiah/respawn/roomsync"
	"github.com/ayoisaiah/respawn/store"
	"github.com/ayoisaiah/respawn/timer"
)

// AddInput describes a new countdown.
type AddInput struct {
	Location     models.LocationKey
	TotalSeconds int
}

// Add starts a local countdown.
func (s *Session) Add(ctx context.Context, in AddInput) (models.Timer, error) {
	if err := s.catalog.Validate(in.Location); err != nil {
		return models.Timer{}, err
	}

	var t models.Timer

	err := s.loop.Do(ctx, func() error {
		var err error

		t, err = s.registry.AddLocal(in.Location, in.TotalSeconds)
		if err != nil {
			return err
		}

		s.scheduler.Schedule(t.ID)
		s.localChanged()
		s.changed()

		return nil
	})
	if err != nil {
		return models.Timer{}, err
	}

	s.retrySync(ctx)

	return t, nil
}

// PauseOrResume toggles a local timer. id may be a unique prefix.
func (s *Session) PauseOrResume(ctx context.Context, id string) (models.Timer, error) {
	var t models.Timer

	err := s.loop.Do(ctx, func() error {
		full, err := s.resolve(id)
		if err != nil {
			return err
		}

		t, err = s.registry.PauseOrResume(full)
		if err != nil {
			return err
		}

		if t.State == models.Running {
			s.scheduler.Schedule(t.ID)
		} else {
			s.scheduler.Cancel(t.ID)
		}

		s.localChanged()
		s.changed()

		return nil
	})
	if err != nil {
		return t, err
	}

	s.retrySync(ctx)

	return t, nil
}

// Remove deletes a timer. Removing a remote timer only hides it until the
// room sends it again. id may be a unique prefix.
func (s *Session) Remove(ctx context.Context, id string) (models.Timer, error) {
	var t models.Timer

	err := s.loop.Do(ctx, func() error {
		full, err := s.resolve(id)
		if err != nil {
			return err
		}

		t, err = s.registry.Remove(full)
		if err != nil {
			return err
		}

		s.scheduler.Cancel(t.ID)

		if t.Origin == models.Local {
			s.localChanged()
		}

		s.changed()

		return nil
	})
	if err != nil {
		return t, err
	}

	s.retrySync(ctx)

	return t, nil
}

// Clear removes every timer and returns how many were removed.
func (s *Session) Clear(ctx context.Context) (int, error) {
	var n int

	err := s.loop.Do(ctx, func() error {
		s.scheduler.CancelAll()

		n = len(s.registry.ClearAll())

		s.localChanged()
		s.changed()

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.retrySync(ctx)

	return n, nil
}

// Timers returns every timer, soonest respawn first.
func (s *Session) Timers(ctx context.Context) ([]models.Timer, error) {
	var timers []models.Timer

	err := s.loop.Do(ctx, func() error {
		timers = s.registry.ListSortedByRemaining()
		return nil
	})

	return timers, err
}

// resolve maps an id or a unique id prefix to a timer id.
func (s *Session) resolve(id string) (string, error) {
	id = strings.TrimSpace(id)

	if _, ok := s.registry.Get(id); ok {
		return id, nil
	}

	var match string

	for _, t := range s.registry.All() {
		if id == "" || !strings.HasPrefix(t.ID, id) {
			continue
		}

		if match != "" {
			return "", errAmbiguousID.Fmt(id)
		}

		match = t.ID
	}

	if match == "" {
		return "", timer.ErrTimerNotFound
	}

	return match, nil
}

// ImportFailure is a shared timer that could not be imported.
type ImportFailure struct {
	Err      error
	Snapshot codec.Snapshot
}

// ImportResult reports what Import did.
type ImportResult struct {
	// RoomID is set when the input pointed at a room.
	RoomID  string
	Added   []models.Timer
	Skipped []ImportFailure
	// Joined is true when the room was entered instead of copying timers.
	Joined bool
	Tier   codec.Tier
}

// Import accepts a share link or a bare token. Room links join the room.
// Sync tokens join their room when a backend is configured and are copied
// as local timers otherwise. Timers that clash with a running local timer
// at the same location are skipped.
func (s *Session) Import(ctx context.Context, input string) (ImportResult, error) {
	var res ImportResult

	token := strings.TrimSpace(input)

	if isLink(token) {
		link, err := codec.ParseLink(token)
		if err != nil {
			return res, err
		}

		if link.Kind == codec.LinkRoom {
			res.RoomID = link.Value

			if err := s.JoinRoom(ctx, link.Value); err != nil {
				return res, err
			}

			res.Joined = true

			return res, nil
		}

		token = link.Value
	}

	payload, err := s.codec.Decode(token)
	if err != nil {
		return res, err
	}

	res.RoomID = payload.RoomID
	res.Tier = payload.Tier

	if payload.RoomID != "" && s.coord != nil {
		if err := s.JoinRoom(ctx, payload.RoomID); err != nil {
			return res, err
		}

		res.Joined = true

		return res, nil
	}

	if len(payload.Snapshots) == 0 {
		return res, errEmptyImport
	}

	err = s.loop.Do(ctx, func() error {
		for _, snap := range payload.Snapshots {
			key := models.LocationKey{
				Chapter: snap.Chapter,
				Map:     snap.MapIndex,
				Server:  snap.Server,
			}

			if err := s.catalog.Validate(key); err != nil {
				res.Skipped = append(res.Skipped, ImportFailure{Snapshot: snap, Err: err})
				continue
			}

			t, err := s.registry.ImportLocal(
				key,
				snap.TotalSeconds,
				snap.RemainingSeconds,
				snap.Paused,
			)
			if err != nil {
				res.Skipped = append(res.Skipped, ImportFailure{Snapshot: snap, Err: err})
				continue
			}

			if t.State == models.Running {
				s.scheduler.Schedule(t.ID)
			}

			res.Added = append(res.Added, t)
		}

		if len(res.Added) > 0 {
			s.localChanged()
			s.changed()
		}

		return nil
	})
	if err != nil {
		return res, err
	}

	s.retrySync(ctx)

	return res, nil
}

// isLink tells links and query strings apart from bare tokens, which may
// end in Base64 padding.
func isLink(s string) bool {
	if strings.Contains(s, "?") || strings.Contains(s, "://") {
		return true
	}

	for _, p := range []string{"room=", "t=", "share="} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

// Share is the shareable form of the current timers.
type Share struct {
	Token string
	Link  string
	// RoomLink joins the active room. It is empty outside a room.
	RoomLink string
	Tier     codec.Tier
}

// Share encodes every unfinished timer. Inside a room the token carries
// the room id as well.
func (s *Session) Share(ctx context.Context) (Share, error) {
	var snaps []codec.Snapshot

	err := s.loop.Do(ctx, func() error {
		now := s.clock.Now()

		for _, t := range s.registry.ListSortedByRemaining() {
			if t.State == models.Finished {
				continue
			}

			snaps = append(snaps, codec.Snapshot{
				Chapter:          t.Location.Chapter,
				MapIndex:         t.Location.Map,
				Server:           t.Location.Server,
				TotalSeconds:     t.TotalSeconds,
				RemainingSeconds: t.RemainingAt(now),
				Paused:           t.State == models.Paused,
			})
		}

		return nil
	})
	if err != nil {
		return Share{}, err
	}

	info := s.RoomInfo()

	var sh Share

	if info.Active {
		sh.RoomLink = codec.RoomLink(s.cfg.Share.BaseURL, info.RoomID)
	}

	if len(snaps) == 0 {
		if !info.Active {
			return Share{}, ErrNothingToShare
		}

		return sh, nil
	}

	sh.Token, sh.Tier, err = s.codec.Encode(snaps)
	if err != nil {
		return Share{}, err
	}

	sh.Link = codec.Link{Kind: codec.LinkCompact, Value: sh.Token}.String(s.cfg.Share.BaseURL)

	if info.Active {
		sh.Token, err = s.codec.EncodeSync(info.RoomID, snaps)
		if err != nil {
			return Share{}, err
		}
	}

	return sh, nil
}

// RoomInfo describes the current room membership.
func (s *Session) RoomInfo() roomsync.Info {
	if s.coord == nil {
		return roomsync.Info{}
	}

	return s.coord.Info()
}

// CreateRoom opens a new room as host. An empty id generates one.
func (s *Session) CreateRoom(ctx context.Context, id string) (string, error) {
	if s.coord == nil {
		return "", ErrNoBackend
	}

	id, err := s.coord.Create(ctx, id)
	if err != nil {
		return "", err
	}

	if err := s.db.SaveRoom(store.RoomMembership{RoomID: id, Role: room.Host}); err != nil {
		return id, errSaveRoom.Wrap(err)
	}

	return id, nil
}

// JoinRoom enters an existing room as a guest. Joining the room the
// session is already in does nothing.
func (s *Session) JoinRoom(ctx context.Context, id string) error {
	if s.coord == nil {
		return ErrNoBackend
	}

	if info := s.coord.Info(); info.Active && info.RoomID == id {
		return nil
	}

	if err := s.coord.Join(ctx, id); err != nil {
		return err
	}

	if err := s.db.SaveRoom(store.RoomMembership{RoomID: id, Role: room.Guest}); err != nil {
		return errSaveRoom.Wrap(err)
	}

	return nil
}

// LeaveRoom exits the room and withdraws this participant's timers from
// it. Mirrored timers are dropped.
func (s *Session) LeaveRoom(ctx context.Context) error {
	if s.coord == nil {
		return ErrNoBackend
	}

	if err := s.coord.Leave(ctx); err != nil {
		return err
	}

	return s.forgetRoom(ctx)
}

// StopRoom closes the room for everyone. Only the host may stop it.
func (s *Session) StopRoom(ctx context.Context) error {
	if s.coord == nil {
		return ErrNoBackend
	}

	if err := s.coord.Stop(ctx); err != nil {
		return err
	}

	return s.forgetRoom(ctx)
}

func (s *Session) forgetRoom(ctx context.Context) error {
	err := s.loop.Do(ctx, func() error {
		for _, id := range s.registry.ClearRemote() {
			s.scheduler.Cancel(id)
		}

		s.changed()

		return nil
	})
	if err != nil {
		return err
	}

	return s.db.ClearRoom()
}

// Resync repairs the room after connectivity problems.
func (s *Session) Resync(ctx context.Context) error {
	if s.coord == nil {
		return ErrNoBackend
	}

	return s.coord.Resync(ctx)
}
