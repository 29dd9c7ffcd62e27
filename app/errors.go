package app

import "github.com/ayoisaiah/respawn/internal/apperr"

var (
	errUnknownEpisode = &apperr.Error{
		Message: "episode %d is not in the catalog",
	}

	errMapOutOfRange = &apperr.Error{
		Message: "map %d does not exist: %s has %d maps",
	}

	errUnknownMap = &apperr.Error{
		Message: "no map in %[2]s matches %[1]q",
	}

	errAmbiguousMap = &apperr.Error{
		Message: "%q matches more than one map in %s",
	}

	errMissingLength = &apperr.Error{
		Message: "specify how long until the boss respawns (e.g. 40m) or pass --at",
	}

	errMissingID = &apperr.Error{
		Message: "specify the id of a timer (see 'respawn list')",
	}

	errMissingLink = &apperr.Error{
		Message: "specify a share link or token",
	}

	errMissingRoom = &apperr.Error{
		Message: "specify a room id or room link",
	}

	errNotInRoom = &apperr.Error{
		Message: "you are not in a room",
	}
)
