package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	desktop []string
	cmds    [][]string
	mu      sync.Mutex
}

func newTestNotifier(opts Options, desktopErr error) (*Notifier, *recorder) {
	rec := &recorder{}

	n := New(opts)
	n.desktop = func(_, msg, _ string) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		rec.desktop = append(rec.desktop, msg)

		return desktopErr
	}
	n.run = func(args []string, msg string) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		rec.cmds = append(rec.cmds, append(args, msg))

		return nil
	}

	return n, rec
}

func TestMessage(t *testing.T) {
	assert.Equal(
		t,
		"Boss respawned: EP7 - Frost Hall - 3",
		Message("EP7", "Frost Hall", 3),
	)
}

func TestNotify(t *testing.T) {
	n, rec := newTestNotifier(Options{
		Enabled: true,
		Cmd:     `paplay "/usr/share/sounds/boss up.oga"`,
	}, nil)

	n.Notify("Boss respawned: EP1 - A - 1")
	n.Wait()

	assert.Equal(t, []string{"Boss respawned: EP1 - A - 1"}, rec.desktop)
	assert.Equal(t, [][]string{
		{"paplay", "/usr/share/sounds/boss up.oga", "Boss respawned: EP1 - A - 1"},
	}, rec.cmds)
}

func TestNotifyDisabled(t *testing.T) {
	n, rec := newTestNotifier(Options{Enabled: false, Cmd: "true"}, nil)

	n.Notify("ignored")
	n.Wait()

	assert.Empty(t, rec.desktop)
	assert.Empty(t, rec.cmds)

	var nilNotifier *Notifier

	assert.NotPanics(t, func() {
		nilNotifier.Notify("ignored")
		nilNotifier.Wait()
	})
}

func TestNotifyFailuresAreIgnored(t *testing.T) {
	n, rec := newTestNotifier(Options{
		Enabled: true,
		Cmd:     `echo "unterminated`,
	}, errors.New("no notification daemon"))

	n.Notify("msg")
	n.Wait()

	assert.Len(t, rec.desktop, 1)
	assert.Empty(t, rec.cmds)
}
