package config

import (
	"strings"

	"github.com/urfave/cli/v2"
)

// CLIOptions represents command-line configuration options.
type CLIOptions struct {
	Backend       string
	RelayURL      string
	NATSURL       string
	Sort          string
	NotifyCmd     string
	LogLevel      string
	RelayAddr     string
	ShareBaseURL  string
	DisableNotify bool
	Debug         bool
}

// WithCLIConfig returns an Option that loads configuration from CLI flags.
// Flags that were not given leave the file values alone.
func WithCLIConfig(ctx *cli.Context) Option {
	return func(c *Config) error {
		opts := CLIOptions{
			Backend:       ctx.String("backend"),
			RelayURL:      ctx.String("relay-url"),
			NATSURL:       ctx.String("nats-url"),
			Sort:          ctx.String("sort"),
			NotifyCmd:     ctx.String("notify-cmd"),
			LogLevel:      ctx.String("log-level"),
			RelayAddr:     ctx.String("addr"),
			ShareBaseURL:  ctx.String("base-url"),
			DisableNotify: ctx.Bool("disable-notification"),
			Debug:         ctx.Bool("debug"),
		}

		applyCLIOptions(c, opts)

		return nil
	}
}

// applyCLIOptions applies CLI options to the config.
func applyCLIOptions(c *Config, opts CLIOptions) {
	if opts.Backend != "" {
		c.Sync.Backend = strings.ToLower(strings.TrimSpace(opts.Backend))
	}

	if opts.RelayURL != "" {
		c.Sync.RelayURL = opts.RelayURL
	}

	if opts.NATSURL != "" {
		c.Sync.NATSURL = opts.NATSURL
	}

	if opts.Sort != "" {
		c.Display.Sort = opts.Sort
	}

	if opts.NotifyCmd != "" {
		c.Notifications.Cmd = opts.NotifyCmd
	}

	if opts.DisableNotify {
		c.Notifications.Enabled = false
	}

	if opts.RelayAddr != "" {
		c.Relay.Addr = opts.RelayAddr
	}

	if opts.ShareBaseURL != "" {
		c.Share.BaseURL = opts.ShareBaseURL
	}

	if opts.LogLevel != "" {
		c.Log.Level = opts.LogLevel
	}

	if opts.Debug {
		c.Log.Level = "debug"
	}
}
