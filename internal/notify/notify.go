// Package notify tells the user that a boss has respawned.
package notify

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/kballard/go-shellquote"

	"github.com/ayoisaiah/respawn/internal/apperr"
)

const title = "respawn"

var errParseCmd = &apperr.Error{
	Message: "unable to parse notifications.cmd option",
}

// Message is the text shown when a timer finishes.
func Message(chapterLabel, mapName string, server int) string {
	return fmt.Sprintf("Boss respawned: %s - %s - %d", chapterLabel, mapName, server)
}

// Options configures a Notifier.
type Options struct {
	// Cmd runs after every notification with RESPAWN_MESSAGE set.
	Cmd      string
	IconPath string
	Enabled  bool
}

// Notifier shows desktop notifications and runs the user's notification
// command. Failures are logged and otherwise ignored.
type Notifier struct {
	desktop func(title, msg, icon string) error
	run     func(args []string, msg string) error
	opts    Options
	wg      sync.WaitGroup
}

// New returns a Notifier.
func New(opts Options) *Notifier {
	return &Notifier{
		opts: opts,
		desktop: func(title, msg, icon string) error {
			return beeep.Notify(title, msg, icon)
		},
		run: runCmd,
	}
}

// Notify delivers msg in the background.
func (n *Notifier) Notify(msg string) {
	if n == nil || !n.opts.Enabled {
		return
	}

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		n.deliver(msg)
	}()
}

// Wait blocks until pending notifications have been delivered.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}

	n.wg.Wait()
}

func (n *Notifier) deliver(msg string) {
	if err := n.desktop(title, msg, n.opts.IconPath); err != nil {
		slog.Warn(
			"unable to display notification",
			slog.Any("error", err),
		)
	}

	if n.opts.Cmd == "" {
		return
	}

	args, err := shellquote.Split(n.opts.Cmd)
	if err != nil {
		slog.Warn(
			"notification command skipped",
			slog.Any("error", errParseCmd.Wrap(err)),
		)

		return
	}

	if len(args) == 0 {
		return
	}

	if err := n.run(args, msg); err != nil {
		slog.Warn(
			"notification command failed",
			slog.String("cmd", n.opts.Cmd),
			slog.Any("error", err),
		)
	}
}

func runCmd(args []string, msg string) error {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "RESPAWN_MESSAGE="+msg)

	return cmd.Run()
}
