// Package tui renders the live timer board.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/davecgh/go-spew/spew"
	"github.com/jonboulle/clockwork"

	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/roomsync"
	"github.com/ayoisaiah/respawn/session"
)

// Session is the part of *session.Session the board drives.
type Session interface {
	Views(ctx context.Context, opts session.ViewOptions) ([]session.View, error)
	Add(ctx context.Context, in session.AddInput) (models.Timer, error)
	PauseOrResume(ctx context.Context, id string) (models.Timer, error)
	Remove(ctx context.Context, id string) (models.Timer, error)
	Share(ctx context.Context) (session.Share, error)
	RoomInfo() roomsync.Info
	Subscribe(fn func()) (unsubscribe func())
	Catalog() *catalog.Catalog
}

var _ Session = (*session.Session)(nil)

// Options configures the board.
type Options struct {
	Clock          clockwork.Clock
	Sort           string
	Group          bool
	DarkTheme      bool
	TwentyFourHour bool
}

type (
	viewsMsg struct {
		err   error
		views []session.View
		room  roomsync.Info
	}

	changedMsg struct{}

	statusMsg struct {
		err  error
		text string
	}
)

// Model is the bubbletea model of the timer board.
type Model struct {
	ctx            context.Context
	sess           Session
	clock          clockwork.Clock
	form           *addForm
	changes        chan struct{}
	unsubscribe    func()
	style          Style
	help           help.Model
	progress       progress.Model
	status         string
	sort           string
	views          []session.View
	room           roomsync.Info
	statusErr      error
	last           models.LocationKey
	cursor         int
	group          bool
	twentyFourHour bool
}

// New returns a board for sess. Session calls are issued as commands so
// that Update never waits on the session loop.
func New(ctx context.Context, sess Session, opts Options) *Model {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Sort == "" {
		opts.Sort = config.SortTimeAsc
	}

	m := &Model{
		ctx:            ctx,
		sess:           sess,
		clock:          opts.Clock,
		changes:        make(chan struct{}, 1),
		style:          NewStyle(opts.DarkTheme),
		help:           help.New(),
		progress:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		sort:           opts.Sort,
		group:          opts.Group,
		twentyFourHour: opts.TwentyFourHour,
	}

	m.unsubscribe = sess.Subscribe(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})

	return m
}

// Run shows the board until the user quits or ctx is cancelled.
func Run(ctx context.Context, sess Session, opts Options) error {
	m := New(ctx, sess, opts)
	defer m.close()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()

	return err
}

func (m *Model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.waitForChange())
}

func (m *Model) fetch() tea.Cmd {
	opts := session.ViewOptions{Sort: m.sort}

	return func() tea.Msg {
		views, err := m.sess.Views(m.ctx, opts)

		return viewsMsg{views: views, room: m.sess.RoomInfo(), err: err}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// act runs a session command and reports its outcome in the status line.
func (m *Model) act(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		return statusMsg{text: text, err: err}
	}
}

// ordered returns the views in the order they are displayed.
func (m *Model) ordered() []session.View {
	if !m.group {
		return m.views
	}

	var out []session.View
	for _, g := range session.GroupViews(m.views) {
		out = append(out, g.Views...)
	}

	return out
}

func (m *Model) selected() (session.View, bool) {
	views := m.ordered()
	if m.cursor < 0 || m.cursor >= len(views) {
		return session.View{}, false
	}

	return views[m.cursor], true
}

func (m *Model) nextSort() string {
	modes := config.SortModes()

	i := slices.Index(modes, m.sort)

	return modes[(i+1)%len(modes)]
}

func (m *Model) describe(t models.Timer) string {
	cat := m.sess.Catalog()

	return fmt.Sprintf(
		"%s - %s - %d",
		cat.Label(t.Location.Chapter),
		cat.MapName(t.Location.Chapter, t.Location.Map),
		t.Location.Server,
	)
}

func (m *Model) handleForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, defaultKeymap.esc) {
		m.form = nil
		return m, nil
	}

	if slog.Default().Enabled(m.ctx, slog.LevelDebug) {
		slog.Debug("add form message", slog.String("msg", spew.Sdump(msg)))
	}

	form, cmd := m.form.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form.form = f
	}

	switch m.form.form.State {
	case huh.StateAborted:
		m.form = nil
		return m, nil
	case huh.StateCompleted:
		in, err := m.form.input()
		m.form = nil

		if err != nil {
			return m, m.act(func() (string, error) { return "", err })
		}

		m.last = in.Location

		return m, m.act(func() (string, error) {
			t, err := m.sess.Add(m.ctx, in)
			if err != nil {
				return "", err
			}

			return "Started " + m.describe(t), nil
		})
	}

	return m, cmd
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, defaultKeymap.quit):
		m.close()
		return m, tea.Batch(tea.ClearScreen, tea.Quit)

	case key.Matches(msg, defaultKeymap.up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, defaultKeymap.down):
		if m.cursor < len(m.views)-1 {
			m.cursor++
		}

	case key.Matches(msg, defaultKeymap.add):
		m.form = newAddForm(m.sess.Catalog(), m.clock.Now, m.last)
		return m, m.form.form.Init()

	case key.Matches(msg, defaultKeymap.toggle):
		v, ok := m.selected()
		if !ok {
			return m, nil
		}

		return m, m.act(func() (string, error) {
			t, err := m.sess.PauseOrResume(m.ctx, v.ID)
			if err != nil {
				return "", err
			}

			if t.State == models.Paused {
				return "Paused " + m.describe(t), nil
			}

			return "Resumed " + m.describe(t), nil
		})

	case key.Matches(msg, defaultKeymap.remove):
		v, ok := m.selected()
		if !ok {
			return m, nil
		}

		return m, m.act(func() (string, error) {
			t, err := m.sess.Remove(m.ctx, v.ID)
			if err != nil {
				return "", err
			}

			return "Removed " + m.describe(t), nil
		})

	case key.Matches(msg, defaultKeymap.share):
		return m, m.act(func() (string, error) {
			sh, err := m.sess.Share(m.ctx)
			if err != nil {
				return "", err
			}

			if sh.RoomLink != "" {
				return "Room link: " + sh.RoomLink, nil
			}

			return "Share link: " + sh.Link, nil
		})

	case key.Matches(msg, defaultKeymap.sort):
		m.sort = m.nextSort()
		m.cursor = 0

		return m, m.fetch()

	case key.Matches(msg, defaultKeymap.group):
		m.group = !m.group
		m.cursor = 0

	case key.Matches(msg, defaultKeymap.help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, defaultKeymap.esc):
		m.status, m.statusErr = "", nil
	}

	return m, nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m.handleForm(msg)
		}
	}

	switch msg := msg.(type) {
	case viewsMsg:
		if msg.err != nil {
			m.statusErr = msg.err
			return m, nil
		}

		m.views = msg.views
		m.room = msg.room

		if m.cursor >= len(m.views) {
			m.cursor = max(0, len(m.views)-1)
		}

		return m, nil

	case changedMsg:
		return m, tea.Batch(m.fetch(), m.waitForChange())

	case statusMsg:
		m.status, m.statusErr = msg.text, msg.err
		return m, m.fetch()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-padding*2-4, maxWidth)
		m.help.Width = msg.Width

		return m, nil

	// FrameMsg is sent when the progress bar wants to animate itself
	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress, _ = progressModel.(progress.Model)

		return m, cmd
	}

	if m.form != nil {
		return m.handleForm(msg)
	}

	return m, nil
}

func (m *Model) headerView() string {
	var s strings.Builder

	s.WriteString(m.style.Main.Render("RESPAWN"))

	if !m.room.Active {
		s.WriteString(m.style.Hint.Render("  local only"))
		return s.String()
	}

	s.WriteString(m.style.Secondary.Render(fmt.Sprintf(
		"  room %s (%s, %d online)",
		m.room.RoomID,
		m.room.Role,
		m.room.Participants,
	)))

	if m.room.Degraded {
		s.WriteString(m.style.Error.Render("  reconnecting"))
	}

	return s.String()
}

func (m *Model) rowView(v session.View, selected bool) string {
	marker := "  "
	name := fmt.Sprintf("%s · %s · %d", v.ChapterLabel, v.MapName, v.Location.Server)

	if selected {
		marker = m.style.Selected.Render("› ")
		name = m.style.Selected.Render(name)
	}

	row := marker + m.style.clock(v) + "  " + name

	switch v.State {
	case models.Paused:
		row += m.style.Secondary.Render("  [Paused]")
	case models.Finished:
		row += m.style.Done.Render("  [Respawned]")
	case models.Running:
		format := "03:04:05 PM"
		if m.twentyFourHour {
			format = "15:04:05"
		}

		row += m.style.Hint.Render("  until " + v.RespawnAt.Local().Format(format))
	}

	if v.Origin == models.Remote {
		row += m.style.Remote.Render("  shared")
	}

	return row
}

func (m *Model) listView() string {
	if len(m.views) == 0 {
		return m.style.Hint.Render("No timers yet. Press a to add one.")
	}

	var s strings.Builder

	i := 0

	write := func(views []session.View) {
		for _, v := range views {
			s.WriteString(m.rowView(v, i == m.cursor) + "\n")
			i++
		}
	}

	if m.group {
		for _, g := range session.GroupViews(m.views) {
			s.WriteString(m.style.Secondary.Render(g.Title) + "\n")
			write(g.Views)
		}
	} else {
		write(m.views)
	}

	if v, ok := m.selected(); ok {
		s.WriteString("\n" + m.progress.ViewAs(v.Progress()))
	}

	return strings.TrimRight(s.String(), "\n")
}

func (m *Model) statusView() string {
	if m.statusErr != nil {
		return m.style.Error.Render(m.statusErr.Error())
	}

	return m.style.Hint.Render(m.status)
}

func (m *Model) View() string {
	var s strings.Builder

	s.WriteString(m.headerView())
	s.WriteString(m.style.Hint.Render("  sorted " + m.sort))
	s.WriteString("\n\n")

	if m.form != nil {
		s.WriteString(m.form.form.View())
		s.WriteString("\n\n" + m.help.ShortHelpView([]key.Binding{defaultKeymap.esc}))

		return m.style.Base.Render(s.String())
	}

	s.WriteString(m.listView())

	if status := m.statusView(); status != "" {
		s.WriteString("\n\n" + status)
	}

	s.WriteString("\n\n" + m.help.View(defaultKeymap))

	return m.style.Base.Render(s.String())
}
