// Package room defines the shared collection that room participants read
// and write, and an in-memory implementation of it.
//
// A room holds three things: timer entries keyed by timer id, one presence
// record per participant and a status record carrying host directives.
// Writes to a timer entry are last-writer-wins per id.
package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayoisaiah/respawn/internal/models"
)

type (
	// Role is a participant's role in a room.
	Role string

	// Directive is an instruction the host broadcasts to every participant.
	Directive string
)

const (
	Host  Role = "host"
	Guest Role = "guest"
)

// Stop tells guests that the host ended the room.
const Stop Directive = "stop"

const (
	idLength    = 12
	maxIDLength = 64

	// reserved by share links and backend keys
	reservedIDChars = "_./ \t?&#%*>"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrInvalidID    = errors.New("invalid room id")
)

// NewID returns a random room id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// ValidateID checks that id can be used in links and backend keys.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength || strings.ContainsAny(id, reservedIDChars) {
		return ErrInvalidID
	}

	return nil
}

// Entry is a timer as stored in a room.
type Entry struct {
	StartedAt          time.Time    `json:"started_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	PausedAt           *time.Time   `json:"paused_at,omitempty"`
	ID                 string       `json:"id"`
	Owner              string       `json:"owner"`
	State              models.State `json:"state"`
	Chapter            int          `json:"chapter"`
	Map                int          `json:"map"`
	Server             int          `json:"server"`
	TotalSeconds       int          `json:"total_seconds"`
	RemainingSeconds   int          `json:"remaining_seconds"`
	AccumulatedPauseMs int64        `json:"accumulated_pause_ms"`
}

// Presence is a participant's liveness record.
type Presence struct {
	Heartbeat time.Time `json:"heartbeat"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Online    bool      `json:"online"`
}

// Status is the room level control record.
type Status struct {
	IssuedAt  time.Time `json:"issued_at"`
	Directive Directive `json:"directive"`
	IssuedBy  string    `json:"issued_by"`
}

// Subscription ends a watch or a membership when closed. Close may be
// called more than once.
type Subscription interface {
	Close() error
}

// Store is the shared room collection.
type Store interface {
	// CreateRoom registers a new, empty room.
	CreateRoom(ctx context.Context, roomID, host string) error
	// RoomExists reports whether a room was created.
	RoomExists(ctx context.Context, roomID string) (bool, error)
	// PutTimers merges entries into the room by id.
	PutTimers(ctx context.Context, roomID string, entries []Entry) error
	// DeleteTimers removes entries by id.
	DeleteTimers(ctx context.Context, roomID string, ids []string) error
	// Timers returns every entry in the room.
	Timers(ctx context.Context, roomID string) (map[string]Entry, error)
	// WatchTimers calls fn with the full set of entries once on subscribe
	// and again after every change.
	WatchTimers(
		ctx context.Context,
		roomID string,
		fn func(map[string]Entry),
	) (Subscription, error)
	// Join marks a participant online. The backend marks the participant
	// offline when the returned subscription is closed or the connection
	// behind it is lost.
	Join(ctx context.Context, roomID string, p Presence) (Subscription, error)
	// Heartbeat refreshes a participant's liveness timestamp.
	Heartbeat(ctx context.Context, roomID, userID string, at time.Time) error
	// Presence returns every participant record.
	Presence(ctx context.Context, roomID string) (map[string]Presence, error)
	// SetStatus replaces the status record.
	SetStatus(ctx context.Context, roomID string, s Status) error
	// WatchStatus calls fn with the current status on subscribe, when one
	// exists, and after every change.
	WatchStatus(
		ctx context.Context,
		roomID string,
		fn func(Status),
	) (Subscription, error)
}

// EntryFromTimer converts a timer for publishing.
func EntryFromTimer(t models.Timer, now time.Time) Entry {
	c := t.Clone()

	return Entry{
		ID:                 c.ID,
		Owner:              c.Owner,
		State:              c.State,
		Chapter:            c.Location.Chapter,
		Map:                c.Location.Map,
		Server:             c.Location.Server,
		TotalSeconds:       c.TotalSeconds,
		RemainingSeconds:   c.RemainingSeconds,
		StartedAt:          c.StartedAt,
		AccumulatedPauseMs: c.AccumulatedPauseMs,
		PausedAt:           c.PauseStartedAt,
		UpdatedAt:          now,
	}
}

// Timer converts an entry into a remote timer. Missing or inconsistent
// states are derived from the timestamps.
func (e Entry) Timer() models.Timer {
	t := models.Timer{
		ID:                 e.ID,
		Owner:              e.Owner,
		Origin:             models.Remote,
		Location:           models.LocationKey{Chapter: e.Chapter, Map: e.Map, Server: e.Server},
		TotalSeconds:       e.TotalSeconds,
		RemainingSeconds:   e.RemainingSeconds,
		StartedAt:          e.StartedAt,
		AccumulatedPauseMs: e.AccumulatedPauseMs,
		State:              e.State,
	}

	switch {
	case e.State == models.Finished || e.RemainingSeconds <= 0:
		t.State = models.Finished
		t.RemainingSeconds = 0
	case e.PausedAt != nil:
		p := *e.PausedAt
		t.PauseStartedAt = &p
		t.State = models.Paused
	default:
		t.State = models.Running
	}

	return t
}

// OnClose returns a Subscription that runs fn on the first Close.
func OnClose(fn func() error) Subscription {
	return &onceCloser{fn: fn}
}

type onceCloser struct {
	fn   func() error
	err  error
	once sync.Once
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.fn()
	})

	return c.err
}
