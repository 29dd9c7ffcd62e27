package app

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ayoisaiah/respawn/internal/config"
)

var (
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Write debug records to the log file",
	}

	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn or error (default: info)",
	}

	disableNotificationFlag = &cli.BoolFlag{
		Name:    "disable-notification",
		Aliases: []string{"d"},
		Usage:   "Disable the system notification that appears when a boss respawns",
	}

	notifyCmdFlag = &cli.StringFlag{
		Name:    "notify-cmd",
		Aliases: []string{"cmd"},
		Usage:   "Execute an arbitrary command whenever a boss respawns. The message is in $RESPAWN_MESSAGE",
	}

	backendFlag = &cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "Room backend: " + strings.Join([]string{config.BackendNone, config.BackendRelay, config.BackendNATS}, ", "),
	}

	relayURLFlag = &cli.StringFlag{
		Name:  "relay-url",
		Usage: "Address of the websocket relay (default: http://localhost:8787)",
	}

	natsURLFlag = &cli.StringFlag{
		Name:  "nats-url",
		Usage: "Address of the NATS server (default: nats://127.0.0.1:4222)",
	}

	baseURLFlag = &cli.StringFlag{
		Name:  "base-url",
		Usage: "Base URL of share links",
	}

	sortFlag = &cli.StringFlag{
		Name:    "sort",
		Aliases: []string{"o"},
		Usage:   "Order of timers: " + strings.Join(config.SortModes(), ", "),
	}

	groupFlag = &cli.BoolFlag{
		Name:    "group",
		Aliases: []string{"g"},
		Usage:   "Group timers by episode and map",
	}

	roomFlag = &cli.StringFlag{
		Name:    "room",
		Aliases: []string{"r"},
		Usage:   "Join a shared room on start. With --host, the id of the room to open",
	}

	hostFlag = &cli.BoolFlag{
		Name:  "host",
		Usage: "Open a new shared room on start",
	}

	linkFlag = &cli.StringFlag{
		Name:    "link",
		Aliases: []string{"l"},
		Usage:   "Import a share link or token on start",
	}

	episodeFlag = &cli.IntFlag{
		Name:    "episode",
		Aliases: []string{"ep", "e"},
		Usage:   "Episode (chapter) number",
	}

	mapFlag = &cli.StringFlag{
		Name:    "map",
		Aliases: []string{"m"},
		Usage:   "Map number within the episode, starting at 1, or part of its name",
	}

	serverFlag = &cli.IntFlag{
		Name:    "server",
		Aliases: []string{"s", "channel"},
		Usage:   "Server (channel) number from 1 to 9",
		Value:   1,
	}

	atFlag = &cli.StringFlag{
		Name:  "at",
		Usage: "Wall time at which the boss respawns (e.g. '21:30' or 'in 2 hours')",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Print the output in JSON format",
	}

	yesFlag = &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}

	addrFlag = &cli.StringFlag{
		Name:  "addr",
		Usage: "Listen address of the relay (default: :8787)",
	}
)

// globalFlags are accepted by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		noColorFlag,
		debugFlag,
		logLevelFlag,
		disableNotificationFlag,
		notifyCmdFlag,
		backendFlag,
		relayURLFlag,
		natsURLFlag,
		baseURLFlag,
	}
}
