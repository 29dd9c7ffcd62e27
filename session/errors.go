package session

import "github.com/ayoisaiah/respawn/internal/apperr"

var (
	ErrNoBackend = &apperr.Error{
		Message: "shared rooms are disabled: set sync.backend in the config file or pass --backend",
	}

	ErrNothingToShare = &apperr.Error{
		Message: "there are no timers to share",
	}

	errIdentity = &apperr.Error{
		Message: "unable to load the participant id",
	}

	errLoadTimers = &apperr.Error{
		Message: "unable to load saved timers",
	}

	errSaveRoom = &apperr.Error{
		Message: "unable to remember the room",
	}

	errEmptyImport = &apperr.Error{
		Message: "the link does not contain any timers",
	}

	errAmbiguousID = &apperr.Error{
		Message: "timer id prefix %q matches more than one timer",
	}
)
