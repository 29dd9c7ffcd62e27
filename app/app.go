package app

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/ayoisaiah/respawn/internal/config"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// Get retrieves the respawn app instance.
func Get() *cli.App {
	respawnApp := &cli.App{
		Name: "respawn",
		Usage: `
		Respawn tracks boss respawn countdowns for every episode, map and server
		you care about, and shares them with your party through links or live
		rooms.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              config.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Aliases:   []string{"a"},
				Usage:     "Start a respawn countdown",
				UsageText: "respawn add --ep 2 --map 3 --server 1 40m",
				Flags: []cli.Flag{
					episodeFlag,
					mapFlag,
					serverFlag,
					atFlag,
				},
				Action: addAction,
			},
			{
				Name:      "pause",
				Aliases:   []string{"p", "resume"},
				Usage:     "Pause or resume a countdown",
				UsageText: "respawn pause <id>",
				Action:    pauseAction,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a countdown",
				UsageText: "respawn remove <id>",
				Action:    removeAction,
			},
			{
				Name:   "clear",
				Usage:  "Remove every countdown",
				Flags:  []cli.Flag{yesFlag},
				Action: clearAction,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Print the current countdowns",
				Flags: []cli.Flag{
					jsonFlag,
					groupFlag,
					sortFlag,
					episodeFlag,
				},
				Action: listAction,
			},
			{
				Name:   "share",
				Usage:  "Print a share link for the current countdowns",
				Action: shareAction,
			},
			{
				Name:      "import",
				Usage:     "Import countdowns from a share link or token, or join the room it points at",
				UsageText: "respawn import <link|token>",
				Action:    importAction,
			},
			{
				Name:  "room",
				Usage: "Manage the shared room",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Open a new room as host. The room is resumed by the next 'respawn'",
						UsageText: "respawn room create [id]",
						Action:    roomCreateAction,
					},
					{
						Name:      "join",
						Usage:     "Join a room by id or room link",
						UsageText: "respawn room join <id|link>",
						Action:    roomJoinAction,
					},
					{
						Name:   "leave",
						Usage:  "Leave the room and withdraw your countdowns from it",
						Action: roomLeaveAction,
					},
					{
						Name:   "stop",
						Usage:  "Close the room for everyone (host only)",
						Action: roomStopAction,
					},
					{
						Name:   "info",
						Usage:  "Print the current room membership",
						Action: roomInfoAction,
					},
				},
			},
			{
				Name:   "relay",
				Usage:  "Run a websocket relay that hosts shared rooms",
				Flags:  []cli.Flag{addrFlag},
				Action: relayAction,
			},
			{
				Name:   "edit-config",
				Usage:  "Edit the configuration file",
				Action: editConfigAction,
			},
		},
		Flags: append(globalFlags(),
			sortFlag,
			groupFlag,
			roomFlag,
			hostFlag,
			linkFlag,
		),
		Action: defaultAction,
		Before: beforeAction,
		After:  afterAction,
	}

	return respawnApp
}
