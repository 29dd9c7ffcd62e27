package config

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

const asciiLogo = `
██████╗ ███████╗███████╗██████╗  █████╗ ██╗    ██╗███╗   ██╗
██╔══██╗██╔════╝██╔════╝██╔══██╗██╔══██╗██║    ██║████╗  ██║
██████╔╝█████╗  ███████╗██████╔╝███████║██║ █╗ ██║██╔██╗ ██║
██╔══██╗██╔══╝  ╚════██║██╔═══╝ ██╔══██║██║███╗██║██║╚██╗██║
██║  ██║███████╗███████║██║     ██║  ██║╚███╔███╔╝██║ ╚████║
╚═╝  ╚═╝╚══════╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚══╝╚══╝ ╚═╝  ╚═══╝`

// PromptOptions holds the user's responses to the configuration prompts.
type PromptOptions struct {
	Backend       string
	Sort          string
	Notifications bool
}

// WithPromptConfig returns an Option that asks a few questions the first
// time respawn runs. It does nothing once the config file exists, and must
// come before WithViperConfig so the answers end up in the written file.
func WithPromptConfig(configPath string) Option {
	return func(c *Config) error {
		_, err := os.Stat(configPath)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return err
		}

		opts, err := promptUser()
		if err != nil {
			return errPrompt.Wrap(err)
		}

		c.prompt = &opts

		return nil
	}
}

// promptUser handles the interactive configuration process.
func promptUser() (PromptOptions, error) {
	opts := PromptOptions{
		Notifications: true,
	}

	pterm.Println(asciiLogo)

	_ = putils.BulletListFromString(`Follow the prompts below to configure respawn for the first time.
Select your preferred value, or press ENTER to accept the defaults.
Edit the config file with 'respawn edit-config' to change any settings.`, " ").
		Render()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Shared rooms").
				Options(
					huh.NewOption("Off", BackendNone).Selected(true),
					huh.NewOption("Websocket relay", BackendRelay),
					huh.NewOption("NATS", BackendNATS),
				).
				Value(&opts.Backend),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Timer order").
				Options(
					huh.NewOption("Soonest first", SortTimeAsc).Selected(true),
					huh.NewOption("Latest first", SortTimeDesc),
					huh.NewOption("By episode", SortEpAsc),
					huh.NewOption("By episode, descending", SortEpDesc),
				).
				Value(&opts.Sort),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Desktop notification when a boss respawns?").
				Value(&opts.Notifications),
		),
	)

	if err := form.Run(); err != nil {
		return opts, err
	}

	return opts, nil
}
