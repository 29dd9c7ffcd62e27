package app

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/ayoisaiah/respawn/codec"
	"github.com/ayoisaiah/respawn/internal/catalog"
	"github.com/ayoisaiah/respawn/internal/config"
	"github.com/ayoisaiah/respawn/internal/models"
	"github.com/ayoisaiah/respawn/internal/osutil"
	"github.com/ayoisaiah/respawn/internal/room"
	"github.com/ayoisaiah/respawn/internal/room/relay"
	"github.com/ayoisaiah/respawn/internal/timeutil"
	"github.com/ayoisaiah/respawn/internal/tui"
	"github.com/ayoisaiah/respawn/session"
)

const (
	envNoColor        = "NO_COLOR"
	envRespawnNoColor = "RESPAWN_NO_COLOR"
)

// firstNonEmptyString returns its first non-empty argument, or "" if all
// arguments are empty.
func firstNonEmptyString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}

	return ""
}

// describe names where a timer's boss respawns.
func describe(cat *catalog.Catalog, t models.Timer) string {
	return fmt.Sprintf(
		"%s - %s - %d",
		cat.Label(t.Location.Chapter),
		cat.MapName(t.Location.Chapter, t.Location.Map),
		t.Location.Server,
	)
}

// resolveMap turns a 1-based map number or a unique part of a map name into
// a map index of chapter.
func resolveMap(cat *catalog.Catalog, chapter int, arg string) (int, error) {
	ch, ok := cat.Chapter(chapter)
	if !ok {
		return 0, errUnknownEpisode.Fmt(chapter)
	}

	arg = strings.TrimSpace(arg)

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(ch.Maps) {
			return 0, errMapOutOfRange.Fmt(n, ch.Label, len(ch.Maps))
		}

		return n - 1, nil
	}

	match := -1

	for i, name := range ch.Maps {
		if !strings.Contains(strings.ToLower(name), strings.ToLower(arg)) {
			continue
		}

		if match != -1 {
			return 0, errAmbiguousMap.Fmt(arg, ch.Label)
		}

		match = i
	}

	if match == -1 {
		return 0, errUnknownMap.Fmt(arg, ch.Label)
	}

	return match, nil
}

// defaultAction opens the live timer board.
func defaultAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{prompt: true, rooms: roomsOptional})
	if err != nil {
		return err
	}

	defer e.close()

	if link := ctx.String("link"); link != "" {
		res, err := e.sess.Import(ctx.Context, link)
		if err != nil {
			return err
		}

		slog.Info(
			"imported link",
			slog.Int("added", len(res.Added)),
			slog.Int("skipped", len(res.Skipped)),
			slog.Bool("joined", res.Joined),
		)
	}

	switch {
	case ctx.Bool("host"):
		if _, err := e.sess.CreateRoom(ctx.Context, ctx.String("room")); err != nil {
			return err
		}
	case ctx.String("room") != "":
		if err := e.sess.JoinRoom(ctx.Context, ctx.String("room")); err != nil {
			return err
		}
	}

	return tui.Run(ctx.Context, e.sess, tui.Options{
		Sort:           e.cfg.Display.Sort,
		Group:          ctx.Bool("group"),
		DarkTheme:      e.cfg.Display.DarkTheme,
		TwentyFourHour: e.cfg.Display.TwentyFourHour,
	})
}

// addAction starts a countdown from flags and the length argument.
func addAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	cat := e.sess.Catalog()

	chapter := ctx.Int("episode")
	if chapter == 0 {
		chapter = e.cfg.Share.BaseChapter
	}

	mapIdx, err := resolveMap(cat, chapter, firstNonEmptyString(ctx.String("map"), "1"))
	if err != nil {
		return err
	}

	var secs int

	switch {
	case ctx.String("at") != "":
		secs, err = timeutil.ParseRespawnAt(ctx.String("at"), e.sess.Now())
	case ctx.Args().Present():
		secs, err = timeutil.ParseSpan(strings.Join(ctx.Args().Slice(), " "))
	default:
		err = errMissingLength
	}

	if err != nil {
		return err
	}

	t, err := e.sess.Add(ctx.Context, session.AddInput{
		Location: models.LocationKey{
			Chapter: chapter,
			Map:     mapIdx,
			Server:  ctx.Int("server"),
		},
		TotalSeconds: secs,
	})
	if err != nil {
		return err
	}

	pterm.Success.Printfln(
		"Started %s: respawns in %s (id %s)",
		describe(cat, t),
		timeutil.FormatClock(t.TotalSeconds),
		session.ShortID(t.ID),
	)

	return nil
}

func timerID(ctx *cli.Context) (string, error) {
	id := ctx.Args().First()
	if id == "" {
		return "", errMissingID
	}

	return id, nil
}

// pauseAction toggles a countdown between running and paused.
func pauseAction(ctx *cli.Context) error {
	id, err := timerID(ctx)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	t, err := e.sess.PauseOrResume(ctx.Context, id)
	if err != nil {
		return err
	}

	verb := "Resumed"
	if t.State == models.Paused {
		verb = "Paused"
	}

	pterm.Success.Printfln(
		"%s %s with %s left",
		verb,
		describe(e.sess.Catalog(), t),
		timeutil.FormatClock(t.RemainingAt(e.sess.Now())),
	)

	return nil
}

// removeAction deletes a countdown.
func removeAction(ctx *cli.Context) error {
	id, err := timerID(ctx)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	t, err := e.sess.Remove(ctx.Context, id)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Removed %s", describe(e.sess.Catalog(), t))

	return nil
}

// clearAction deletes every countdown after confirmation.
func clearAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	views, err := e.sess.Views(ctx.Context, session.ViewOptions{})
	if err != nil {
		return err
	}

	if len(views) == 0 {
		return session.List(os.Stdout, views, session.ListOptions{})
	}

	if !ctx.Bool("yes") {
		if err := session.List(os.Stdout, views, session.ListOptions{
			TwentyFourHour: e.cfg.Display.TwentyFourHour,
		}); err != nil {
			return err
		}

		warning := pterm.Warning.Sprint(
			"The timers above will be removed. Press ENTER to proceed",
		)

		fmt.Fprint(config.Stdout, warning)

		reader := bufio.NewReader(config.Stdin)

		_, _ = reader.ReadString('\n')
	}

	n, err := e.sess.Clear(ctx.Context)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Removed %d timers", n)

	return nil
}

// listAction prints the countdowns as a table or JSON.
func listAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	views, err := e.sess.Views(ctx.Context, session.ViewOptions{
		Sort:    e.cfg.Display.Sort,
		Chapter: ctx.Int("episode"),
	})
	if err != nil {
		return err
	}

	return session.List(os.Stdout, views, session.ListOptions{
		JSON:           ctx.Bool("json"),
		Group:          ctx.Bool("group"),
		TwentyFourHour: e.cfg.Display.TwentyFourHour,
	})
}

// shareAction prints a share link. The saved room is linked as well, even
// though the command does not connect to it.
func shareAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	membership, inRoom, err := e.db.Room()
	if err != nil {
		return err
	}

	sh, err := e.sess.Share(ctx.Context)

	switch {
	case errors.Is(err, session.ErrNothingToShare) && inRoom:
	case err != nil:
		return err
	default:
		pterm.Info.Printfln("Share link (%s): %s", sh.Tier, sh.Link)
		pterm.Info.Printfln("Token: %s", sh.Token)
	}

	if inRoom {
		pterm.Info.Printfln(
			"Room link: %s",
			codec.RoomLink(e.cfg.Share.BaseURL, membership.RoomID),
		)
	}

	return nil
}

// importAction copies shared countdowns or joins the room a link points
// at.
func importAction(ctx *cli.Context) error {
	input := ctx.Args().First()
	if input == "" {
		return errMissingLink
	}

	e, err := openEnv(ctx, envOptions{rooms: roomsOptional})
	if err != nil {
		return err
	}

	defer e.close()

	res, err := e.sess.Import(ctx.Context, input)
	if err != nil {
		return err
	}

	if res.Joined {
		pterm.Success.Printfln("Joined room %s", res.RoomID)
		return nil
	}

	cat := e.sess.Catalog()

	for _, t := range res.Added {
		pterm.Success.Printfln(
			"Imported %s with %s left",
			describe(cat, t),
			timeutil.FormatClock(t.RemainingSeconds),
		)
	}

	for _, f := range res.Skipped {
		pterm.Warning.Printfln(
			"Skipped EP%d map %d server %d: %s",
			f.Snapshot.Chapter,
			f.Snapshot.MapIndex+1,
			f.Snapshot.Server,
			f.Err,
		)
	}

	return nil
}

// relayAction serves shared rooms until interrupted.
func relayAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx, false)
	if err != nil {
		return err
	}

	defer setupLogging(cfg).Close()

	srvCfg := relay.DefaultServerConfig()
	srvCfg.Addr = cfg.Relay.Addr

	pterm.Info.Printfln("Relay listening on %s", srvCfg.Addr)

	return relay.NewServer(room.NewMemory(), srvCfg).Run(ctx.Context)
}

// editConfigAction handles the edit-config command which opens the respawn
// config file in the user's default text editor.
func editConfigAction(ctx *cli.Context) error {
	defaultEditor := "nano"

	if runtime.GOOS == osutil.Windows {
		defaultEditor = "C:\\Windows\\system32\\notepad.exe"
	}

	editor := firstNonEmptyString(
		os.Getenv("VISUAL"),
		os.Getenv("EDITOR"),
		defaultEditor,
	)

	cfg, err := loadConfig(ctx, false)
	if err != nil {
		return err
	}

	cmd := exec.Command(editor, cfg.System.ConfigPath)

	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	return cmd.Run()
}

func beforeAction(ctx *cli.Context) error {
	// Override the default help template
	cli.AppHelpTemplate = helpText()

	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}

	// Disable colour output if NO_COLOR is set
	if _, exists := os.LookupEnv(envNoColor); exists {
		disableStyling()
	}

	// Disable colour output if RESPAWN_NO_COLOR is set
	if _, exists := os.LookupEnv(envRespawnNoColor); exists {
		disableStyling()
	}

	if ctx.Bool("no-color") {
		disableStyling()
	}

	return nil
}

func afterAction(ctx *cli.Context) error {
	slog.InfoContext(ctx.Context, "exiting respawn")

	return nil
}
