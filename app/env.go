package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/logging"
	"github.com/ayoisaiah/respawn/internal/loop"
	"github.com/ayoisaiah/respawn/internal/notify"
	"github.com/ayoisaiah/respawn/internal/room"
	"github.com/ayoisaiah/respawn/internal/room/natskv"
	"github.com/ayoisaiah/respawn/internal/room/relay"
	"github.com/ayoisaiah/respawn/internal/static"
	"github.com/ayoisaiah/respawn/internal/ui"
	"github.com/ayoisaiah/respawn/session"
	"github.com/ayoisaiah/respawn/store"
)

type roomMode int

const (
	// roomsOff keeps the command local. The saved room is resumed by the
	// next command that connects.
	roomsOff roomMode = iota
	// roomsOptional connects when a backend is configured and falls back to
	// local only when it cannot be reached.
	roomsOptional
	// roomsRequired fails when no backend can be reached.
	roomsRequired
)

type envOptions struct {
	rooms  roomMode
	prompt bool
}

// env is everything a command needs to drive a session.
type env struct {
	cfg      *config.Config
	db       *store.Client
	sess     *session.Session
	closers  []io.Closer
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// loadConfig reads the config file and applies command-line overrides. When
// prompt is set and no config file exists yet, the user is asked for the
// basic settings first.
func loadConfig(ctx *cli.Context, prompt bool) (*config.Config, error) {
	if err := config.InitializePaths(); err != nil {
		return nil, err
	}

	var opts []config.Option

	if prompt {
		opts = append(opts, config.WithPromptConfig(config.ConfigFilePath()))
	}

	opts = append(opts,
		config.WithViperConfig(config.ConfigFilePath()),
		config.WithCLIConfig(ctx),
	)

	return config.New(opts...)
}

// setupLogging sends slog records to the log file.
func setupLogging(cfg *config.Config) io.Closer {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	return logging.Setup(logging.Options{
		Path:  cfg.System.LogPath,
		Level: level,
	})
}

// setupOutput applies the display settings used by plain terminal output.
func setupOutput(cfg *config.Config) {
	ui.DarkTheme = cfg.Display.DarkTheme
}

// openRooms connects to the configured room backend. It returns a nil
// store when rooms are disabled.
func openRooms(ctx context.Context, cfg *config.Config) (room.Store, io.Closer, error) {
	switch cfg.Sync.Backend {
	case config.BackendRelay:
		c, err := relay.NewClient(cfg.Sync.RelayURL)
		if err != nil {
			return nil, nil, err
		}

		return c, nil, nil
	case config.BackendNATS:
		opts := natskv.DefaultOptions()
		opts.URL = cfg.Sync.NATSURL

		s, err := natskv.Connect(ctx, opts)
		if err != nil {
			return nil, nil, err
		}

		return s, s, nil
	}

	return nil, nil, nil
}

// openEnv loads the config, opens the database and restores the session.
// The caller must call close.
func openEnv(ctx *cli.Context, opts envOptions) (*env, error) {
	cfg, err := loadConfig(ctx, opts.prompt)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}

	e.closers = append(e.closers, setupLogging(cfg))

	setupOutput(cfg)

	if err := static.Install(config.Dir()); err != nil {
		slog.Warn("unable to install static files", slog.Any("error", err))
	}

	e.db, err = store.NewClient(cfg.System.DBPath)
	if err != nil {
		e.close()
		return nil, err
	}

	var rooms room.Store

	if opts.rooms != roomsOff {
		var closer io.Closer

		rooms, closer, err = openRooms(ctx.Context, cfg)

		switch {
		case err != nil && opts.rooms == roomsRequired:
			e.close()
			return nil, err
		case err != nil:
			slog.Warn(
				"room backend unavailable, running local only",
				slog.String("backend", cfg.Sync.Backend),
				slog.Any("error", err),
			)
		case closer != nil:
			e.closers = append(e.closers, closer)
		}
	}

	l := loop.New()

	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.loopDone = make(chan struct{})

	go func() {
		defer close(e.loopDone)

		_ = l.Run(loopCtx)
	}()

	e.sess, err = session.New(session.Options{
		Config: cfg,
		Store:  e.db,
		Loop:   l,
		Rooms:  rooms,
		Notifier: notify.New(notify.Options{
			Cmd:      cfg.Notifications.Cmd,
			Enabled:  cfg.Notifications.Enabled,
			IconPath: static.IconPath(config.Dir()),
		}),
	})
	if err != nil {
		e.close()
		return nil, err
	}

	if err := e.sess.Restore(ctx.Context); err != nil {
		e.close()
		return nil, err
	}

	return e, nil
}

// close releases everything in reverse order of acquisition.
func (e *env) close() {
	if e.sess != nil {
		e.sess.Close()
	}

	if e.cancel != nil {
		e.cancel()
		<-e.loopDone
	}

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			slog.Warn("closing database failed", slog.Any("error", err))
		}
	}

	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}
