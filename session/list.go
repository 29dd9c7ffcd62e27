package session

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/ui"
)

const (
	noTimersMsg = "No timers yet. Start one with 'respawn add'"
)

// ListOptions controls how List prints views.
type ListOptions struct {
	JSON           bool
	Group          bool
	TwentyFourHour bool
}

// List prints views as a table, one table per map when grouping, or as
// JSON.
func List(w io.Writer, views []View, opts ListOptions) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if opts.Group {
			return enc.Encode(GroupViews(views))
		}

		return enc.Encode(views)
	}

	if len(views) == 0 {
		pterm.Info.WithWriter(w).Println(noTimersMsg)
		return nil
	}

	if !opts.Group {
		printViewsTable(w, views, opts.TwentyFourHour)
		return nil
	}

	for _, g := range GroupViews(views) {
		fmt.Fprintln(w, ui.Highlight(g.Title))
		printViewsTable(w, g.Views, opts.TwentyFourHour)
	}

	return nil
}

// printViewsTable prints a timer table to the command-line.
func printViewsTable(w io.Writer, views []View, twentyFourHour bool) {
	tableBody := make([][]string, 0, len(views)+1)

	tableBody = append(tableBody, []string{
		"ID", "EPISODE", "MAP", "SERVER", "REMAINING", "RESPAWNS AT", "STATUS",
	})

	for i := range views {
		v := views[i]

		tableBody = append(tableBody, []string{
			ShortID(v.ID),
			v.ChapterLabel,
			v.MapName,
			fmt.Sprintf("%d", v.Location.Server),
			colorClock(v),
			respawnAt(v, twentyFourHour),
			statusText(v),
		})
	}

	ui.PrintTable(tableBody, w)
}

// ShortID returns the prefix of a timer id shown to users. Commands accept
// it in place of the full id.
func ShortID(id string) string {
	const n = 8

	if len(id) <= n {
		return id
	}

	return id[:n]
}

func colorClock(v View) string {
	switch v.Urgency {
	case UrgencyDone:
		return ui.Green(v.Clock)
	case UrgencyDanger:
		return ui.Red(v.Clock)
	case UrgencyWarning:
		return ui.Yellow(v.Clock)
	default:
		return v.Clock
	}
}

func respawnAt(v View, twentyFourHour bool) string {
	if v.RespawnAt.IsZero() {
		return ""
	}

	if twentyFourHour {
		return v.RespawnAt.Local().Format("15:04:05")
	}

	return v.RespawnAt.Local().Format("03:04:05 PM")
}

func statusText(v View) string {
	var s string

	switch v.State {
	case models.Finished:
		s = ui.Green("respawned")
	case models.Paused:
		s = ui.Blue("paused")
	default:
		s = ui.Cyan("running")
	}

	if v.Origin == models.Remote {
		s += " " + ui.Magenta("(shared)")
	}

	return s
}
