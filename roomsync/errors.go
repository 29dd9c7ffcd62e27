package roomsync

import (
	"fmt"

	"github.com/ayoisaiah/respawn/internal/apperr"
)

var (
	ErrNotHost = &apperr.Error{
		Message: "only the host can stop the room",
	}

	ErrAlreadyInRoom = &apperr.Error{
		Message: "already in room %s, leave it first",
	}

	ErrNotInRoom = &apperr.Error{
		Message: "not in a room",
	}

	ErrRoomNotFound = &apperr.Error{
		Message: "room %s does not exist",
	}

	ErrRoomTaken = &apperr.Error{
		Message: "room %s already exists",
	}

	ErrRoomClosed = &apperr.Error{
		Message: "room %s was closed by the host",
	}

	errInvalidRoomID = &apperr.Error{
		Message: "invalid room id %q",
	}
)

// RoomConnectivityError reports a failed exchange with the room backend.
// The session keeps working on local timers and retries on the next action.
type RoomConnectivityError struct {
	Err    error
	Op     string
	RoomID string
}

func (e *RoomConnectivityError) Error() string {
	return fmt.Sprintf("room %s: %s failed: %v", e.RoomID, e.Op, e.Err)
}

func (e *RoomConnectivityError) Unwrap() error {
	return e.Err
}
