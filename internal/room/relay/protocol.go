// Package relay serves rooms over HTTP and websockets and provides the
// matching client side room store.
//
// A participant holds one websocket per room. The server pushes the full
// timer set and the status record over it whenever they change, and marks
// the participant offline as soon as the socket closes. Writes travel as
// frames on the same socket. Point reads use the JSON snapshot endpoint.
package relay

import (
	"time"

	"github.com/ayoisaiah/respawn/internal/room"
)

// FrameType names the purpose of a websocket frame.
type FrameType string

const (
	// server to client
	FrameTimers FrameType = "timers"
	FrameStatus FrameType = "status"
	FrameError  FrameType = "error"

	// client to server
	FramePutTimers    FrameType = "put_timers"
	FrameDeleteTimers FrameType = "delete_timers"
	FrameHeartbeat    FrameType = "heartbeat"
	FrameSetStatus    FrameType = "set_status"
)

// Frame is the single message shape exchanged over a room socket.
type Frame struct {
	At      time.Time             `json:"at"`
	Timers  map[string]room.Entry `json:"timers,omitempty"`
	Status  *room.Status          `json:"status,omitempty"`
	Type    FrameType             `json:"type"`
	Error   string                `json:"error,omitempty"`
	Entries []room.Entry          `json:"entries,omitempty"`
	IDs     []string              `json:"ids,omitempty"`
}

type createRoomRequest struct {
	RoomID string `json:"room_id"`
	Host   string `json:"host"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}
