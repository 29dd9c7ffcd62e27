package store

import (
	"github.com/ayoisaiah/respawn/internal/models"
)

// DB is the database storage interface.
type DB interface {
	// SaveTimers replaces every stored timer with records
	SaveTimers(records []models.Record) error
	// LoadTimers returns the stored timers, oldest first
	LoadTimers() ([]models.Record, error)
	// UserID returns this installation's participant id, creating it on
	// first use
	UserID() (string, error)
	// SaveRoom remembers the room the session is in so it can be rejoined
	SaveRoom(membership RoomMembership) error
	// Room returns the remembered room, if any
	Room() (RoomMembership, bool, error)
	// ClearRoom forgets the remembered room
	ClearRoom() error
	// Close ends the database connection
	Close() error
}
