package session

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/models"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.New(testConfig().Catalog)
	require.NoError(t, err)

	return cat
}

func runningTimer(id string, seq uint64, key models.LocationKey, total, elapsed int) models.Timer {
	return models.Timer{
		ID:               id,
		Owner:            "me",
		State:            models.Running,
		Origin:           models.Local,
		Location:         key,
		TotalSeconds:     total,
		RemainingSeconds: total - elapsed,
		StartedAt:        epoch.Add(-time.Duration(elapsed) * time.Second),
		Seq:              seq,
	}
}

func sampleTimers() []models.Timer {
	paused := runningTimer("dddd0000", 4, key(7, 0, 1), 900, 0)
	paused.State = models.Paused
	paused.RemainingSeconds = 200
	at := epoch
	paused.PauseStartedAt = &at

	remote := runningTimer("eeee0000", 5, key(2, 3, 4), 120, 90)
	remote.Origin = models.Remote
	remote.Owner = "them"

	return []models.Timer{
		runningTimer("aaaa0000", 1, key(7, 1, 2), 600, 0),
		runningTimer("bbbb0000", 2, key(1, 4, 1), 600, 0),
		runningTimer("cccc0000", 3, key(7, 1, 1), 1200, 1100),
		paused,
		remote,
	}
}

func ids(views []View) []string {
	out := make([]string, len(views))
	for i := range views {
		out[i] = views[i].ID
	}

	return out
}

func TestUrgencyOf(t *testing.T) {
	cases := map[int]Urgency{
		-5:   UrgencyDone,
		0:    UrgencyDone,
		1:    UrgencyDanger,
		60:   UrgencyDanger,
		61:   UrgencyWarning,
		300:  UrgencyWarning,
		301:  UrgencyNone,
		3600: UrgencyNone,
	}

	for remaining, want := range cases {
		assert.Equal(t, want, UrgencyOf(remaining), "remaining %d", remaining)
	}
}

func TestNewView(t *testing.T) {
	cat := testCatalog(t)
	tm := runningTimer("aaaa0000", 1, key(7, 1, 2), 600, 0)

	v := NewView(tm, cat, epoch.Add(10*time.Minute-45*time.Second))

	assert.Equal(t, "EP7", v.ChapterLabel)
	assert.Equal(t, "Ice Gate", v.MapName)
	assert.Equal(t, 45, v.Remaining)
	assert.Equal(t, "00:00:45", v.Clock)
	assert.Equal(t, UrgencyDanger, v.Urgency)
	assert.Equal(t, epoch.Add(10*time.Minute), v.RespawnAt)
	assert.InDelta(t, 0.925, v.Progress(), 0.0001)

	tm.State = models.Paused
	tm.RemainingSeconds = 300

	v = NewView(tm, cat, epoch.Add(time.Hour))
	assert.Equal(t, 300, v.Remaining)
	assert.True(t, v.RespawnAt.IsZero())
}

func TestBuildViewsSort(t *testing.T) {
	cat := testCatalog(t)

	cases := []struct {
		sort string
		want []string
	}{
		{
			sort: config.SortTimeAsc,
			want: []string{"eeee0000", "cccc0000", "dddd0000", "aaaa0000", "bbbb0000"},
		},
		{
			sort: config.SortTimeDesc,
			want: []string{"aaaa0000", "bbbb0000", "dddd0000", "cccc0000", "eeee0000"},
		},
		{
			sort: config.SortEpAsc,
			want: []string{"bbbb0000", "eeee0000", "dddd0000", "cccc0000", "aaaa0000"},
		},
		{
			sort: config.SortEpDesc,
			want: []string{"aaaa0000", "cccc0000", "dddd0000", "eeee0000", "bbbb0000"},
		},
		{
			sort: "",
			want: []string{"eeee0000", "cccc0000", "dddd0000", "aaaa0000", "bbbb0000"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.sort, func(t *testing.T) {
			views := BuildViews(sampleTimers(), cat, epoch, ViewOptions{Sort: tc.sort})

			if diff := cmp.Diff(tc.want, ids(views)); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildViewsChapterFilter(t *testing.T) {
	views := BuildViews(sampleTimers(), testCatalog(t), epoch, ViewOptions{Chapter: 7})

	assert.Equal(t, []string{"cccc0000", "dddd0000", "aaaa0000"}, ids(views))
}

func TestGroupViews(t *testing.T) {
	views := BuildViews(sampleTimers(), testCatalog(t), epoch, ViewOptions{})

	groups := GroupViews(views)
	require.Len(t, groups, 4)

	assert.Equal(t, "EP2 - 泰內花園", groups[0].Title)
	assert.Equal(t, "EP7 - Ice Gate", groups[1].Title)
	assert.Equal(t, []string{"cccc0000", "aaaa0000"}, ids(groups[1].Views))
	assert.Equal(t, "EP7 - Frost Hall", groups[2].Title)
	assert.Equal(t, "EP1 - 水晶礦山", groups[3].Title)
}

func TestListJSON(t *testing.T) {
	views := BuildViews(sampleTimers(), testCatalog(t), epoch, ViewOptions{})

	var buf bytes.Buffer

	require.NoError(t, List(&buf, views, ListOptions{JSON: true}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 5)

	assert.Equal(t, "eeee0000", got[0]["id"])
	assert.Equal(t, "remote", got[0]["origin"])
	assert.Equal(t, "danger", got[0]["urgency"])
	assert.InDelta(t, 30, got[0]["remaining_seconds"], 0)
	assert.NotContains(t, got[0], "Seq")

	buf.Reset()

	require.NoError(t, List(&buf, views, ListOptions{JSON: true, Group: true}))

	var groups []Group
	require.NoError(t, json.Unmarshal(buf.Bytes(), &groups))
	assert.Len(t, groups, 4)
}

func TestListTable(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	views := BuildViews(sampleTimers(), testCatalog(t), epoch, ViewOptions{})

	var buf bytes.Buffer

	require.NoError(t, List(&buf, views, ListOptions{TwentyFourHour: true}))

	out := buf.String()

	for _, want := range []string{
		"EPISODE", "RESPAWNS AT", "Ice Gate", "00:10:00", "paused", "(shared)",
		"aaaa0000",
	} {
		assert.Contains(t, out, want)
	}

	buf.Reset()

	require.NoError(t, List(&buf, views, ListOptions{Group: true}))
	assert.Contains(t, buf.String(), "EP7 - Frost Hall")

	buf.Reset()

	require.NoError(t, List(&buf, nil, ListOptions{}))
	assert.Contains(t, buf.String(), noTimersMsg)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "01234567", ShortID("0123456789abcdef"))
}
