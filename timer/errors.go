package timer

import (
	"fmt"

	"github.com/ayoisaiah/respawn/internal/apperr"
	"github.com/ayoisaiah/respawn/internal/models"
)

var (
	ErrTimerNotFound = &apperr.Error{
		Message: "timer not found",
	}

	ErrRemoteTimer = &apperr.Error{
		Message: "timer belongs to another room participant and cannot be changed here",
	}

	ErrTimerFinished = &apperr.Error{
		Message: "timer has already finished",
	}

	errInvalidDuration = &apperr.Error{
		Message: "timer duration must be at least one second, got %d",
	}

	errInvalidRemaining = &apperr.Error{
		Message: "remaining time %d is outside the timer duration of %d seconds",
	}
)

// DuplicateError is returned when a running or paused local timer already
// exists for the requested location.
type DuplicateError struct {
	ExistingID string
	Location   models.LocationKey
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf(
		"a timer for %s is already counting down (id %s)",
		e.Location,
		e.ExistingID,
	)
}
