package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/timeutil"
	"github.com/ayoisaiah/respawn/session"
)

const maxServer = 9

var errServer = fmt.Errorf("server must be a number from 1 to %d", maxServer)

// addForm collects the fields of a new timer.
type addForm struct {
	form    *huh.Form
	now     func() time.Time
	server  string
	length  string
	chapter int
	mapIdx  int
}

func newAddForm(cat *catalog.Catalog, now func() time.Time, last models.LocationKey) *addForm {
	f := &addForm{
		now:     now,
		chapter: last.Chapter,
		mapIdx:  last.Map,
		server:  "1",
	}

	if last.Server > 0 {
		f.server = strconv.Itoa(last.Server)
	}

	chapters := cat.Chapters()

	if _, ok := cat.Chapter(f.chapter); !ok && len(chapters) > 0 {
		f.chapter = chapters[0].Number
		f.mapIdx = 0
	}

	chapterOpts := make([]huh.Option[int], 0, len(chapters))
	for _, ch := range chapters {
		chapterOpts = append(chapterOpts, huh.NewOption(ch.Label, ch.Number))
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Episode").
				Options(chapterOpts...).
				Value(&f.chapter),
			huh.NewSelect[int]().
				Title("Map").
				OptionsFunc(func() []huh.Option[int] {
					ch, _ := cat.Chapter(f.chapter)

					opts := make([]huh.Option[int], 0, len(ch.Maps))
					for i, name := range ch.Maps {
						opts = append(opts, huh.NewOption(name, i))
					}

					return opts
				}, &f.chapter).
				Value(&f.mapIdx),
			huh.NewInput().
				Title("Server").
				Value(&f.server).
				Validate(func(s string) error {
					_, err := parseServer(s)
					return err
				}),
			huh.NewInput().
				Title("Respawns in").
				Description("40m, 1:20:00, 90 (minutes) or @21:30").
				Value(&f.length).
				Validate(func(s string) error {
					_, err := parseLength(s, f.now())
					return err
				}),
		),
	).WithShowHelp(false)

	return f
}

// input converts the completed form into a new timer.
func (f *addForm) input() (session.AddInput, error) {
	server, err := parseServer(f.server)
	if err != nil {
		return session.AddInput{}, err
	}

	secs, err := parseLength(f.length, f.now())
	if err != nil {
		return session.AddInput{}, err
	}

	return session.AddInput{
		Location: models.LocationKey{
			Chapter: f.chapter,
			Map:     f.mapIdx,
			Server:  server,
		},
		TotalSeconds: secs,
	}, nil
}

func parseServer(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > maxServer {
		return 0, errServer
	}

	return n, nil
}

// parseLength accepts a countdown length or, prefixed with @, the wall time
// at which the boss respawns.
func parseLength(s string, now time.Time) (int, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return 0, errors.New("enter how long until the boss respawns")
	}

	if at, ok := strings.CutPrefix(s, "@"); ok {
		return timeutil.ParseRespawnAt(strings.TrimSpace(at), now)
	}

	return timeutil.ParseSpan(s)
}
