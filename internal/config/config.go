package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/ayoisaiah/respawn/internal/catalog"
)

type (
	// Config holds all configuration settings
	Config struct {
		Sync          SyncConfig         `mapstructure:"sync"`
		Share         ShareConfig        `mapstructure:"share"`
		Notifications NotificationConfig `mapstructure:"notifications"`
		Display       DisplayConfig      `mapstructure:"display"`
		Relay         RelayConfig        `mapstructure:"relay"`
		Log           LogConfig          `mapstructure:"log"`
		System        SystemConfig       `mapstructure:"-"`
		Catalog       []catalog.Chapter  `mapstructure:"catalog"`
		Tick          TickConfig         `mapstructure:"tick"`

		prompt *PromptOptions
	}

	// TickConfig controls how often running timers are re-evaluated
	TickConfig struct {
		Interval          time.Duration `mapstructure:"interval"`
		ImminentThreshold time.Duration `mapstructure:"imminent_threshold"`
	}

	// ShareConfig holds share link settings
	ShareConfig struct {
		BaseURL     string `mapstructure:"base_url"`
		BaseChapter int    `mapstructure:"base_chapter"`
	}

	// SyncConfig selects and tunes the shared room backend
	SyncConfig struct {
		Backend           string        `mapstructure:"backend"`
		RelayURL          string        `mapstructure:"relay_url"`
		NATSURL           string        `mapstructure:"nats_url"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		StaleAfter        time.Duration `mapstructure:"stale_after"`
	}

	// NotificationConfig holds notification settings
	NotificationConfig struct {
		Cmd     string `mapstructure:"cmd"`
		Enabled bool   `mapstructure:"enabled"`
	}

	// DisplayConfig holds display-related settings
	DisplayConfig struct {
		Sort           string `mapstructure:"sort"`
		DarkTheme      bool   `mapstructure:"dark_theme"`
		TwentyFourHour bool   `mapstructure:"twenty_four_hour"`
	}

	// RelayConfig holds settings for `respawn relay`
	RelayConfig struct {
		Addr string `mapstructure:"addr"`
	}

	LogConfig struct {
		Level string `mapstructure:"level"`
	}

	// SystemConfig holds values that are never read from the config file
	SystemConfig struct {
		ConfigPath string
		DBPath     string
		LogPath    string
	}

	// Option is a function that modifies Config
	Option func(*Config) error
)

const Version = "v0.3.0"

// Room backends.
const (
	BackendNone  = "none"
	BackendRelay = "relay"
	BackendNATS  = "nats"
)

var (
	configDir      = "respawn"
	configFileName = "config.yml"
	dbFileName     = "respawn.db"
	logFileName    = "respawn.log"
	dbFilePath     string
	configFilePath string
	logFilePath    string
)

var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func Dir() string {
	return configDir
}

func DBFilePath() string {
	return dbFilePath
}

func LogFilePath() string {
	return logFilePath
}

func ConfigFilePath() string {
	return configFilePath
}

// InitializePaths resolves the config, database and log locations. Setting
// RESPAWN_ENV keeps a separate set of files per environment.
func InitializePaths() error {
	configFileName = "config.yml"
	dbFileName = "respawn.db"
	logFileName = "respawn.log"

	env := strings.TrimSpace(os.Getenv("RESPAWN_ENV"))
	if env != "" {
		configFileName = fmt.Sprintf("config_%s.yml", env)
		dbFileName = fmt.Sprintf("respawn_%s.db", env)
		logFileName = fmt.Sprintf("respawn_%s.log", env)
	}

	var err error

	relPath := filepath.Join(configDir, configFileName)

	configFilePath, err = xdg.ConfigFile(relPath)
	if err != nil {
		return errInitPaths.Wrap(err)
	}

	dataDir, err := xdg.DataFile(configDir)
	if err != nil {
		return errInitPaths.Wrap(err)
	}

	dbFilePath = filepath.Join(dataDir, dbFileName)

	logFilePath = filepath.Join(dataDir, "log", logFileName)

	return nil
}

// New creates a new Config and applies options in order. The result is
// validated before it is returned.
func New(opts ...Option) (*Config, error) {
	cfg := &Config{
		System: SystemConfig{
			ConfigPath: configFilePath,
			DBPath:     dbFilePath,
			LogPath:    logFilePath,
		},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errConfigOption.Wrap(err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errConfigValidation.Wrap(err)
	}

	return cfg, nil
}

// ImminentSeconds returns the imminent threshold in whole seconds.
func (c *Config) ImminentSeconds() int {
	return int(c.Tick.ImminentThreshold / time.Second)
}
