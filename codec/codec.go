// Package codec converts lists of timer snapshots to and from the short
// tokens carried in share links.
//
// Three formats exist. The legacy format is percent-encoded JSON wrapped in
// standard Base64. The compact format writes each timer as ten decimal
// digits and repacks the digit bytes through a 64 character URL-safe
// alphabet. The binary format packs each timer into 28 bits and is chosen
// when it is shorter and every timer fits its narrower fields.
package codec

import (
	"slices"
	"strings"
)

// Tier identifies a token format.
type Tier int

const (
	TierLegacy Tier = iota + 1
	TierCompact
	TierBinary
)

func (t Tier) String() string {
	switch t {
	case TierLegacy:
		return "legacy"
	case TierCompact:
		return "compact"
	case TierBinary:
		return "binary"
	}

	return "unknown"
}

const (
	// DefaultBaseChapter is the chapter that maps to mapId 0..9.
	DefaultBaseChapter = 1

	mapsPerChapter = 10
	maxMinutes     = 999

	syncPrefix = "sync_"
)

// Snapshot is the portable view of a timer.
type Snapshot struct {
	Chapter          int
	MapIndex         int
	Server           int
	TotalSeconds     int
	RemainingSeconds int
	Paused           bool
}

// Payload is a decoded token.
type Payload struct {
	// RoomID is set when the token carried a sync room prefix.
	RoomID    string
	Snapshots []Snapshot
	Tier      Tier
}

// Codec encodes and decodes tokens relative to a base chapter.
type Codec struct {
	BaseChapter int
}

// New returns a Codec. A baseChapter below one selects DefaultBaseChapter.
func New(baseChapter int) Codec {
	if baseChapter < 1 {
		baseChapter = DefaultBaseChapter
	}

	return Codec{BaseChapter: baseChapter}
}

// Encode returns the canonical token for snaps: the compact format, or the
// binary format when the compact token is longer than 20 characters, every
// timer fits and the binary token does not also read as a compact one.
func (c Codec) Encode(snaps []Snapshot) (string, Tier, error) {
	compact, err := c.EncodeCompact(snaps)
	if err != nil {
		return "", 0, err
	}

	if len(compact) <= compactMaxLen {
		return compact, TierCompact, nil
	}

	binary, err := c.EncodeBinary(snaps)
	if err != nil || len(binary) > binaryMaxLen || len(binary) >= len(compact) {
		return compact, TierCompact, nil //nolint:nilerr // binary is optional
	}

	if !c.decodesAs(binary, TierBinary, compact) {
		return compact, TierCompact, nil
	}

	return binary, TierBinary, nil
}

// decodesAs reports whether token decodes in tier to the same timers as
// the compact token ref. A binary token can also parse as a compact one.
func (c Codec) decodesAs(token string, tier Tier, ref string) bool {
	want, err := c.DecodeCompact(ref)
	if err != nil {
		return false
	}

	got, err := c.Decode(token)
	if err != nil || got.Tier != tier {
		return false
	}

	return slices.Equal(got.Snapshots, want)
}

// EncodeSync prefixes the canonical token with a sync room id.
func (c Codec) EncodeSync(roomID string, snaps []Snapshot) (string, error) {
	if roomID == "" || strings.Contains(roomID, "_") {
		return "", codecErr("room id %q cannot be embedded in a token", roomID)
	}

	token, _, err := c.Encode(snaps)
	if err != nil {
		return "", err
	}

	return syncPrefix + roomID + "_" + token, nil
}

// Decode accepts a token in any format. A sync room prefix is stripped
// first and reported in the payload.
func (c Codec) Decode(token string) (Payload, error) {
	token = strings.TrimSpace(token)

	var p Payload

	if rest, ok := strings.CutPrefix(token, syncPrefix); ok {
		roomID, payload, found := strings.Cut(rest, "_")
		if !found || roomID == "" {
			return p, codecErr("malformed sync token")
		}

		p.RoomID = roomID
		token = payload
	}

	if token == "" {
		return p, codecErr("empty token")
	}

	if isAlphabetOnly(token) {
		if snaps, err := c.DecodeCompact(token); err == nil {
			p.Snapshots, p.Tier = snaps, TierCompact
			return p, nil
		}

		if len(token) <= binaryMaxLen {
			snaps, err := c.DecodeBinary(token)
			if err == nil {
				p.Snapshots, p.Tier = snaps, TierBinary
				return p, nil
			}
		}
	}

	snaps, err := DecodeLegacy(token)
	if err != nil {
		return p, err
	}

	p.Snapshots, p.Tier = snaps, TierLegacy

	return p, nil
}

// mapID flattens a chapter and map index into the two digit map id.
func (c Codec) mapID(s Snapshot) (int, error) {
	if s.Chapter < c.BaseChapter {
		return 0, codecErr("chapter %d is below the base chapter %d", s.Chapter, c.BaseChapter)
	}

	if s.MapIndex < 0 || s.MapIndex >= mapsPerChapter {
		return 0, codecErr("map index %d out of range", s.MapIndex)
	}

	id := (s.Chapter-c.BaseChapter)*mapsPerChapter + s.MapIndex
	if id > 99 {
		return 0, codecErr("chapter %d cannot be encoded", s.Chapter)
	}

	return id, nil
}

func (c Codec) fromMapID(id int) (chapter, mapIndex int) {
	return id/mapsPerChapter + c.BaseChapter, id % mapsPerChapter
}

type record struct {
	mapID     int
	server    int
	total     int
	remaining int
	paused    bool
}

// records quantises snaps to whole minutes.
func (c Codec) records(snaps []Snapshot) ([]record, error) {
	if len(snaps) == 0 {
		return nil, codecErr("no timers to share")
	}

	out := make([]record, 0, len(snaps))

	for _, s := range snaps {
		id, err := c.mapID(s)
		if err != nil {
			return nil, err
		}

		if s.Server < 0 || s.Server > 9 {
			return nil, codecErr("server %d out of range", s.Server)
		}

		total := max(1, toMinutes(s.TotalSeconds))
		remaining := min(toMinutes(s.RemainingSeconds), total)

		out = append(out, record{
			mapID:     id,
			server:    s.Server,
			total:     total,
			remaining: remaining,
			paused:    s.Paused,
		})
	}

	return out, nil
}

func (c Codec) snapshot(r record) Snapshot {
	chapter, idx := c.fromMapID(r.mapID)

	return Snapshot{
		Chapter:          chapter,
		MapIndex:         idx,
		Server:           r.server,
		TotalSeconds:     r.total * 60,
		RemainingSeconds: r.remaining * 60,
		Paused:           r.paused,
	}
}

func validRecord(r record) error {
	if r.total < 1 || r.total > maxMinutes {
		return codecErr("total of %d minutes out of range", r.total)
	}

	if r.remaining > r.total {
		return codecErr("remaining %d exceeds total %d", r.remaining, r.total)
	}

	return nil
}

// toMinutes rounds seconds to the nearest minute, clamped to [0, 999].
func toMinutes(secs int) int {
	if secs <= 0 {
		return 0
	}

	return min((secs+30)/60, maxMinutes)
}
