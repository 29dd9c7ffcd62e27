package app

import (
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/ui"
)

func TestSetupOutputAppliesDarkTheme(t *testing.T) {
	t.Cleanup(func() {
		ui.DarkTheme = false
	})

	setupOutput(&config.Config{Display: config.DisplayConfig{DarkTheme: true}})

	assert.True(t, ui.DarkTheme)
	assert.Equal(t, pterm.LightGreen("00:01:00"), ui.Green("00:01:00"))

	setupOutput(&config.Config{})

	assert.False(t, ui.DarkTheme)
	assert.Equal(t, pterm.Green("00:01:00"), ui.Green("00:01:00"))
}
