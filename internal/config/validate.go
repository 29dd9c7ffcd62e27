package config

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ayoisaiah/respawn/internal/catalog"
)

// Sort modes for timer lists.
const (
	SortTimeAsc  = "time-asc"
	SortTimeDesc = "time-desc"
	SortEpAsc    = "ep-asc"
	SortEpDesc   = "ep-desc"
)

var (
	minTickInterval = 100 * time.Millisecond
	maxTickInterval = time.Minute

	maxImminentThreshold = time.Hour

	minHeartbeat = 500 * time.Millisecond
	maxHeartbeat = 5 * time.Minute

	sortModes = []string{SortTimeAsc, SortTimeDesc, SortEpAsc, SortEpDesc}
)

// SortModes lists the accepted values of display.sort.
func SortModes() []string {
	return slices.Clone(sortModes)
}

// Validate performs validation checks on the Config struct and its fields.
func (c *Config) Validate() error {
	if err := c.validateTick(); err != nil {
		return err
	}

	if err := c.validateShare(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if !slices.Contains(sortModes, c.Display.Sort) {
		return errUnknownSort.Fmt(c.Display.Sort, strings.Join(sortModes, ", "))
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if _, err := catalog.New(c.Catalog); err != nil {
		return errInvalidCatalog.Wrap(err)
	}

	return nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level

	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return l, errUnknownLogLevel.Fmt(c.Log.Level)
	}

	return l, nil
}

func (c *Config) validateTick() error {
	if c.Tick.Interval < minTickInterval || c.Tick.Interval > maxTickInterval {
		return errInvalidInterval.Fmt(
			keyTickInterval,
			minTickInterval,
			maxTickInterval,
			c.Tick.Interval,
		)
	}

	if c.Tick.ImminentThreshold < 0 ||
		c.Tick.ImminentThreshold > maxImminentThreshold {
		return errInvalidInterval.Fmt(
			keyImminentThreshold,
			time.Duration(0),
			maxImminentThreshold,
			c.Tick.ImminentThreshold,
		)
	}

	return nil
}

func (c *Config) validateShare() error {
	if c.Share.BaseChapter < 1 {
		return errInvalidBaseChapter.Fmt(c.Share.BaseChapter)
	}

	return validateURL(keyShareBaseURL, c.Share.BaseURL, "http", "https")
}

func (c *Config) validateSync() error {
	switch c.Sync.Backend {
	case BackendNone:
	case BackendRelay:
		if c.Sync.RelayURL == "" {
			return errMissingURL.Fmt(keySyncRelayURL, BackendRelay)
		}

		if err := validateURL(keySyncRelayURL, c.Sync.RelayURL, "http", "https"); err != nil {
			return err
		}
	case BackendNATS:
		if c.Sync.NATSURL == "" {
			return errMissingURL.Fmt(keySyncNATSURL, BackendNATS)
		}
	default:
		return errUnknownBackend.Fmt(c.Sync.Backend)
	}

	if c.Sync.HeartbeatInterval < minHeartbeat ||
		c.Sync.HeartbeatInterval > maxHeartbeat {
		return errInvalidInterval.Fmt(
			keySyncHeartbeatInterval,
			minHeartbeat,
			maxHeartbeat,
			c.Sync.HeartbeatInterval,
		)
	}

	if c.Sync.StaleAfter <= c.Sync.HeartbeatInterval {
		return errStaleBeforeHeartbeat.Fmt(
			c.Sync.StaleAfter,
			c.Sync.HeartbeatInterval,
		)
	}

	return nil
}

func validateURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" ||
		!slices.Contains(schemes, u.Scheme) {
		return errInvalidURL.Fmt(key, strings.Join(schemes, "/"), raw)
	}

	return nil
}
