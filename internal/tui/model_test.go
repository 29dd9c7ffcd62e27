package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/room"
	"github.com/ayoisaiah/respawn/roomsync"
	"github.com/ayoisaiah/respawn/session"
)

var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeSession struct {
	cat      *catalog.Catalog
	listener func()
	timers   map[string]models.Timer
	added    []session.AddInput
	toggled  []string
	removed  []string
	room     roomsync.Info
	mu       sync.Mutex
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()

	cat, err := catalog.New(catalog.Default())
	require.NoError(t, err)

	return &fakeSession{
		cat: cat,
		timers: map[string]models.Timer{
			"aaaa0000": {
				ID:               "aaaa0000",
				State:            models.Running,
				Origin:           models.Local,
				Location:         models.LocationKey{Chapter: 1, Map: 2, Server: 3},
				TotalSeconds:     600,
				RemainingSeconds: 600,
				StartedAt:        now,
			},
			"bbbb0000": {
				ID:               "bbbb0000",
				State:            models.Paused,
				Origin:           models.Remote,
				Location:         models.LocationKey{Chapter: 2, Map: 0, Server: 1},
				TotalSeconds:     900,
				RemainingSeconds: 800,
				StartedAt:        now,
			},
		},
		room: roomsync.Info{Active: true, RoomID: "abc123", Role: room.Host, Participants: 2},
	}
}

func (f *fakeSession) Views(_ context.Context, opts session.ViewOptions) ([]session.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	timers := make([]models.Timer, 0, len(f.timers))
	for _, t := range f.timers {
		timers = append(timers, t)
	}

	return session.BuildViews(timers, f.cat, now, opts), nil
}

func (f *fakeSession) Add(_ context.Context, in session.AddInput) (models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.added = append(f.added, in)

	return models.Timer{Location: in.Location, TotalSeconds: in.TotalSeconds}, nil
}

func (f *fakeSession) PauseOrResume(_ context.Context, id string) (models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.toggled = append(f.toggled, id)

	t, ok := f.timers[id]
	if !ok {
		return models.Timer{}, errors.New("timer not found")
	}

	t.State = models.Paused

	return t, nil
}

func (f *fakeSession) Remove(_ context.Context, id string) (models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, id)

	t := f.timers[id]
	delete(f.timers, id)

	return t, nil
}

func (f *fakeSession) Share(context.Context) (session.Share, error) {
	return session.Share{RoomLink: "https://respawn.example.com/?room=abc123"}, nil
}

func (f *fakeSession) RoomInfo() roomsync.Info {
	return f.room
}

func (f *fakeSession) Subscribe(fn func()) func() {
	f.listener = fn

	return func() { f.listener = nil }
}

func (f *fakeSession) Catalog() *catalog.Catalog {
	return f.cat
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (*Model, *fakeSession) {
	t.Helper()

	sess := newFakeSession(t)

	m := New(context.Background(), sess, Options{
		Clock:          clockwork.NewFakeClockAt(now),
		Sort:           config.SortTimeAsc,
		TwentyFourHour: true,
	})

	m.Update(m.fetch()())

	return m, sess
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()

	require.NotNil(t, cmd)

	m.Update(cmd())
}

func TestModelLoadsViews(t *testing.T) {
	m, _ := newTestModel(t)

	require.Len(t, m.views, 2)
	assert.Equal(t, "aaaa0000", m.views[0].ID)

	out := m.View()

	assert.Contains(t, out, "room abc123 (host, 2 online)")
	assert.Contains(t, out, "EP1 · 蓮帕拉沙池塘 · 3")
	assert.Contains(t, out, "00:10:00")
	assert.Contains(t, out, "until ")
	assert.Contains(t, out, "[Paused]")
	assert.Contains(t, out, "shared")
}

func TestModelToggleAndRemove(t *testing.T) {
	m, sess := newTestModel(t)

	_, cmd := m.Update(keyPress("p"))
	run(t, m, cmd)

	assert.Equal(t, []string{"aaaa0000"}, sess.toggled)
	assert.Equal(t, "Paused EP1 - 蓮帕拉沙池塘 - 3", m.status)

	_, cmd = m.Update(keyPress("j"))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.cursor)

	_, cmd = m.Update(keyPress("x"))
	run(t, m, cmd)

	assert.Equal(t, []string{"bbbb0000"}, sess.removed)

	// the status refresh clamps the cursor to the remaining timer
	_, cmd = m.Update(statusMsg{text: "done"})
	run(t, m, cmd)

	assert.Len(t, m.views, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestModelShare(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyPress("s"))
	run(t, m, cmd)

	assert.Equal(t, "Room link: https://respawn.example.com/?room=abc123", m.status)
	assert.Contains(t, m.View(), "Room link:")
}

func TestModelSortAndGroup(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyPress("o"))
	run(t, m, cmd)

	assert.Equal(t, config.SortTimeDesc, m.sort)
	assert.Equal(t, "bbbb0000", m.views[0].ID)

	m.Update(keyPress("g"))
	assert.True(t, m.group)
	assert.Contains(t, m.View(), "EP2 - 斯拉屋塔斯峽谷")
}

func TestModelStatusError(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(statusMsg{err: errors.New("boom")})
	assert.Contains(t, m.View(), "boom")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.View(), "boom")
}

func TestModelRefreshesOnChange(t *testing.T) {
	m, sess := newTestModel(t)

	require.NotNil(t, sess.listener)

	sess.listener()
	sess.listener()

	msg := m.waitForChange()()
	assert.IsType(t, changedMsg{}, msg)

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.Nil(t, sess.listener)
}

func TestModelAddFormCancel(t *testing.T) {
	m, sess := newTestModel(t)

	m.Update(keyPress("a"))
	require.NotNil(t, m.form)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.form)
	assert.Empty(t, sess.added)
}
