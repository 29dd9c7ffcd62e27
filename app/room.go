package app

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/ayoisaiah/respawn/codec"
)

// roomCreateAction opens a room and remembers it so the next board resumes
// it as host.
func roomCreateAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{rooms: roomsRequired})
	if err != nil {
		return err
	}

	defer e.close()

	id, err := e.sess.CreateRoom(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Opened room %s", id)
	pterm.Info.Printfln("Room link: %s", codec.RoomLink(e.cfg.Share.BaseURL, id))

	return nil
}

// roomJoinAction joins a room by id or room link.
func roomJoinAction(ctx *cli.Context) error {
	arg := strings.TrimSpace(ctx.Args().First())
	if arg == "" {
		return errMissingRoom
	}

	e, err := openEnv(ctx, envOptions{rooms: roomsRequired})
	if err != nil {
		return err
	}

	defer e.close()

	id := arg

	if link, err := codec.ParseLink(arg); err == nil && link.Kind == codec.LinkRoom {
		id = link.Value
	}

	if err := e.sess.JoinRoom(ctx.Context, id); err != nil {
		return err
	}

	pterm.Success.Printfln("Joined room %s", id)

	return nil
}

// roomLeaveAction resumes the saved room only to leave it.
func roomLeaveAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{rooms: roomsRequired})
	if err != nil {
		return err
	}

	defer e.close()

	info := e.sess.RoomInfo()
	if !info.Active {
		return errNotInRoom
	}

	if err := e.sess.LeaveRoom(ctx.Context); err != nil {
		return err
	}

	pterm.Success.Printfln("Left room %s", info.RoomID)

	return nil
}

// roomStopAction closes the saved room for every participant.
func roomStopAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{rooms: roomsRequired})
	if err != nil {
		return err
	}

	defer e.close()

	info := e.sess.RoomInfo()
	if !info.Active {
		return errNotInRoom
	}

	if err := e.sess.StopRoom(ctx.Context); err != nil {
		return err
	}

	pterm.Success.Printfln("Closed room %s", info.RoomID)

	return nil
}

// roomInfoAction prints the saved membership without connecting.
func roomInfoAction(ctx *cli.Context) error {
	e, err := openEnv(ctx, envOptions{})
	if err != nil {
		return err
	}

	defer e.close()

	m, ok, err := e.db.Room()
	if err != nil {
		return err
	}

	if !ok {
		pterm.Info.Println("Not in a room")
		return nil
	}

	pterm.Info.Printfln("Room %s (%s)", m.RoomID, m.Role)
	pterm.Info.Printfln("Room link: %s", codec.RoomLink(e.cfg.Share.BaseURL, m.RoomID))

	return nil
}
