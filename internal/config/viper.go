package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"

	"github.com/ayoisaiah/respawn/internal/catalog"
)

// viperKeys defines the mapping between config keys and their Viper counterparts.
const (
	keyTickInterval          = "tick.interval"
	keyImminentThreshold     = "tick.imminent_threshold"
	keyShareBaseURL          = "share.base_url"
	keyShareBaseChapter      = "share.base_chapter"
	keySyncBackend           = "sync.backend"
	keySyncRelayURL          = "sync.relay_url"
	keySyncNATSURL           = "sync.nats_url"
	keySyncHeartbeatInterval = "sync.heartbeat_interval"
	keySyncStaleAfter        = "sync.stale_after"
	keyNotificationsEnabled  = "notifications.enabled"
	keyNotificationsCmd      = "notifications.cmd"
	keyDisplaySort           = "display.sort"
	keyDarkTheme             = "display.dark_theme"
	keyTwentyFourHour        = "display.twenty_four_hour"
	keyRelayAddr             = "relay.addr"
	keyLogLevel              = "log.level"
	keyCatalog               = "catalog"
)

// WithViperConfig returns an Option that loads configuration from Viper.
// A missing file is created with the defaults.
func WithViperConfig(configPath string) Option {
	return func(c *Config) error {
		v := viper.New()

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		setupViper(v, c)

		err := v.ReadInConfig()
		if err == nil {
			return loadViperConfig(v, c)
		}

		if !errors.Is(err, os.ErrNotExist) {
			return errReadConfig.Wrap(err)
		}

		if err := v.WriteConfig(); err != nil {
			return errWriteConfig.Wrap(err)
		}

		return loadViperConfig(v, c)
	}
}

// setupViper configures Viper with defaults and prompt values.
func setupViper(v *viper.Viper, c *Config) {
	v.SetDefault(keyTickInterval, "1s")
	v.SetDefault(keyImminentThreshold, "30s")
	v.SetDefault(keyShareBaseURL, "https://respawn.example.com/")
	v.SetDefault(keyShareBaseChapter, 1)
	v.SetDefault(keySyncBackend, BackendNone)
	v.SetDefault(keySyncRelayURL, "http://localhost:8787")
	v.SetDefault(keySyncNATSURL, "nats://127.0.0.1:4222")
	v.SetDefault(keySyncHeartbeatInterval, "3s")
	v.SetDefault(keySyncStaleAfter, "10s")
	v.SetDefault(keyNotificationsEnabled, true)
	v.SetDefault(keyNotificationsCmd, "")
	v.SetDefault(keyDisplaySort, SortTimeAsc)
	v.SetDefault(keyDarkTheme, true)
	v.SetDefault(keyTwentyFourHour, true)
	v.SetDefault(keyRelayAddr, ":8787")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyCatalog, catalogDefault())

	if c.prompt == nil {
		return
	}

	v.Set(keySyncBackend, c.prompt.Backend)
	v.Set(keyNotificationsEnabled, c.prompt.Notifications)
	v.Set(keyDisplaySort, c.prompt.Sort)
}

// catalogDefault renders the built-in catalog as plain maps so that the
// written yaml uses the same keys the decoder reads back.
func catalogDefault() []map[string]any {
	chapters := catalog.Default()

	out := make([]map[string]any, 0, len(chapters))

	for _, ch := range chapters {
		out = append(out, map[string]any{
			"chapter": ch.Number,
			"label":   ch.Label,
			"maps":    ch.Maps,
		})
	}

	return out
}

// loadViperConfig loads configuration from Viper into the Config struct.
func loadViperConfig(v *viper.Viper, c *Config) error {
	if err := v.Unmarshal(c); err != nil {
		return errDecodeConfig.Wrap(err)
	}

	return nil
}
