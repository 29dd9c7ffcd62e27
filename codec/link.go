package codec

import (
	"net/url"
	"strings"
)

// LinkKind identifies which query parameter a share link carries.
type LinkKind int

const (
	LinkRoom LinkKind = iota + 1
	LinkCompact
	LinkLegacy
)

const (
	paramRoom    = "room"
	paramToken   = "t"
	paramShare   = "share"
	maxRoomIDLen = 64
)

// Link is a parsed share link.
type Link struct {
	Value string
	Kind  LinkKind
}

// ParseLink extracts the share parameter from a full URL, a bare query
// string or a query string starting with "?". When several parameters are
// present, room wins over t, which wins over share.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)

	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}

	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	q, err := url.ParseQuery(raw)
	if err != nil {
		return Link{}, wrapCodecErr(err, "malformed link")
	}

	if room := strings.TrimSpace(q.Get(paramRoom)); room != "" {
		if len(room) > maxRoomIDLen || strings.ContainsAny(room, "_/ ") {
			return Link{}, codecErr("malformed room id %q", room)
		}

		return Link{Kind: LinkRoom, Value: room}, nil
	}

	if t := strings.TrimSpace(q.Get(paramToken)); t != "" {
		return Link{Kind: LinkCompact, Value: t}, nil
	}

	if share := q.Get(paramShare); share != "" {
		// unescaped '+' from standard Base64 arrives as a space
		return Link{
			Kind:  LinkLegacy,
			Value: strings.ReplaceAll(strings.TrimSpace(share), " ", "+"),
		}, nil
	}

	return Link{}, codecErr("link has no room, t or share parameter")
}

// String builds the link on top of base, replacing its query string.
func (l Link) String(base string) string {
	param := paramToken

	switch l.Kind {
	case LinkRoom:
		param = paramRoom
	case LinkLegacy:
		param = paramShare
	}

	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}

	q := url.Values{}
	q.Set(param, l.Value)

	return base + "?" + q.Encode()
}

// RoomLink returns a link that joins roomID.
func RoomLink(base, roomID string) string {
	return Link{Kind: LinkRoom, Value: roomID}.String(base)
}

// ShareLink returns a link carrying the canonical token for snaps.
func (c Codec) ShareLink(base string, snaps []Snapshot) (string, error) {
	token, _, err := c.Encode(snaps)
	if err != nil {
		return "", err
	}

	return Link{Kind: LinkCompact, Value: token}.String(base), nil
}
