package config

import "github.com/ayoisaiah/respawn/internal/apperr"

var (
	errInitPaths = &apperr.Error{
		Message: "unable to resolve the config and data directories",
	}

	errConfigOption = &apperr.Error{
		Message: "config option error",
	}

	errConfigValidation = &apperr.Error{
		Message: "config validation error",
	}

	errReadConfig = &apperr.Error{
		Message: "reading config file failed",
	}

	errWriteConfig = &apperr.Error{
		Message: "writing default config failed",
	}

	errDecodeConfig = &apperr.Error{
		Message: "decoding config file failed",
	}

	errPrompt = &apperr.Error{
		Message: "user prompt failed",
	}

	errInvalidInterval = &apperr.Error{
		Message: "%s must be between %v and %v, got %v",
	}

	errStaleBeforeHeartbeat = &apperr.Error{
		Message: "sync.stale_after (%v) must be longer than sync.heartbeat_interval (%v)",
	}

	errUnknownBackend = &apperr.Error{
		Message: "unknown sync backend %q (expected none, relay or nats)",
	}

	errMissingURL = &apperr.Error{
		Message: "%s is required when the %s backend is selected",
	}

	errInvalidURL = &apperr.Error{
		Message: "%s must be an absolute %s url, got %q",
	}

	errInvalidBaseChapter = &apperr.Error{
		Message: "share.base_chapter must be at least 1, got %d",
	}

	errUnknownSort = &apperr.Error{
		Message: "unknown sort mode %q (expected one of %s)",
	}

	errUnknownLogLevel = &apperr.Error{
		Message: "unknown log level %q",
	}

	errInvalidCatalog = &apperr.Error{
		Message: "invalid catalog",
	}
)
