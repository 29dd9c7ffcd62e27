package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/maruel/natural"

	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/timeutil"
)

// Urgency classifies how soon a timer finishes.
type Urgency string

const (
	UrgencyNone    Urgency = ""
	UrgencyWarning Urgency = "warning"
	UrgencyDanger  Urgency = "danger"
	UrgencyDone    Urgency = "done"
)

const (
	dangerWithin  = 60
	warningWithin = 300
)

// UrgencyOf classifies remaining seconds.
func UrgencyOf(remaining int) Urgency {
	switch {
	case remaining <= 0:
		return UrgencyDone
	case remaining <= dangerWithin:
		return UrgencyDanger
	case remaining <= warningWithin:
		return UrgencyWarning
	default:
		return UrgencyNone
	}
}

// View is a timer prepared for display.
type View struct {
	RespawnAt    time.Time          `json:"respawn_at"`
	ID           string             `json:"id"`
	ChapterLabel string             `json:"chapter_label"`
	MapName      string             `json:"map_name"`
	Clock        string             `json:"clock"`
	Owner        string             `json:"owner"`
	State        models.State       `json:"state"`
	Origin       models.Origin      `json:"origin"`
	Urgency      Urgency            `json:"urgency,omitempty"`
	Location     models.LocationKey `json:"location"`
	Remaining    int                `json:"remaining_seconds"`
	Total        int                `json:"total_seconds"`
	Seq          uint64             `json:"-"`
	Imminent     bool               `json:"imminent"`
}

// Progress returns the elapsed fraction in [0, 1].
func (v View) Progress() float64 {
	if v.Total <= 0 {
		return 1
	}

	return 1 - float64(v.Remaining)/float64(v.Total)
}

// ViewOptions selects and orders views.
type ViewOptions struct {
	Sort string
	// Chapter keeps only timers of one chapter when non-zero.
	Chapter int
}

// Group is a set of views sharing a chapter and map.
type Group struct {
	Title    string
	Views    []View
	Location models.LocationKey
}

// NewView prepares t for display at now.
func NewView(t models.Timer, cat *catalog.Catalog, now time.Time) View {
	remaining := t.RemainingSeconds
	if t.State == models.Running {
		remaining = t.RemainingAt(now)
	}

	v := View{
		ID:           t.ID,
		ChapterLabel: cat.Label(t.Location.Chapter),
		MapName:      cat.MapName(t.Location.Chapter, t.Location.Map),
		Clock:        timeutil.FormatClock(remaining),
		Owner:        t.Owner,
		State:        t.State,
		Origin:       t.Origin,
		Urgency:      UrgencyOf(remaining),
		Location:     t.Location,
		Remaining:    remaining,
		Total:        t.TotalSeconds,
		Seq:          t.Seq,
		Imminent:     t.Imminent,
	}

	if t.State == models.Running {
		v.RespawnAt = now.Add(time.Duration(remaining) * time.Second)
	}

	return v
}

// BuildViews turns timers into views filtered and ordered by opts.
func BuildViews(
	timers []models.Timer,
	cat *catalog.Catalog,
	now time.Time,
	opts ViewOptions,
) []View {
	views := make([]View, 0, len(timers))

	for i := range timers {
		if opts.Chapter != 0 && timers[i].Location.Chapter != opts.Chapter {
			continue
		}

		views = append(views, NewView(timers[i], cat, now))
	}

	SortViews(views, opts.Sort)

	return views
}

// SortViews orders views in place. Unknown modes fall back to soonest
// first.
func SortViews(views []View, mode string) {
	byTime := func(a, b View) int {
		return cmp.Or(
			cmp.Compare(a.Remaining, b.Remaining),
			cmp.Compare(a.Seq, b.Seq),
		)
	}

	byLocation := func(a, b View) int {
		if a.Location.Chapter != b.Location.Chapter {
			if natural.Less(a.ChapterLabel, b.ChapterLabel) {
				return -1
			}

			if natural.Less(b.ChapterLabel, a.ChapterLabel) {
				return 1
			}

			return cmp.Compare(a.Location.Chapter, b.Location.Chapter)
		}

		return cmp.Or(
			cmp.Compare(a.Location.Map, b.Location.Map),
			cmp.Compare(a.Location.Server, b.Location.Server),
		)
	}

	switch mode {
	case config.SortTimeDesc:
		slices.SortStableFunc(views, func(a, b View) int {
			return cmp.Or(
				cmp.Compare(b.Remaining, a.Remaining),
				cmp.Compare(a.Seq, b.Seq),
			)
		})
	case config.SortEpAsc:
		slices.SortStableFunc(views, func(a, b View) int {
			return cmp.Or(byLocation(a, b), byTime(a, b))
		})
	case config.SortEpDesc:
		slices.SortStableFunc(views, func(a, b View) int {
			return cmp.Or(byLocation(b, a), byTime(a, b))
		})
	default:
		slices.SortStableFunc(views, byTime)
	}
}

// GroupViews collects views by chapter and map, keeping the order in which
// each group first appears.
func GroupViews(views []View) []Group {
	var groups []Group

	index := make(map[[2]int]int)

	for _, v := range views {
		key := [2]int{v.Location.Chapter, v.Location.Map}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i

			groups = append(groups, Group{
				Title:    fmt.Sprintf("%s - %s", v.ChapterLabel, v.MapName),
				Location: models.LocationKey{Chapter: v.Location.Chapter, Map: v.Location.Map},
			})
		}

		groups[i].Views = append(groups[i].Views, v)
	}

	return groups
}

// Views returns the current timers prepared for display.
func (s *Session) Views(ctx context.Context, opts ViewOptions) ([]View, error) {
	if opts.Sort == "" {
		opts.Sort = s.cfg.Display.Sort
	}

	timers, err := s.Timers(ctx)
	if err != nil {
		return nil, err
	}

	return BuildViews(timers, s.catalog, s.clock.Now(), opts), nil
}
