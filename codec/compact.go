package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-_"

	compactRecordLen = 10
	compactMaxLen    = 20
)

// compactEncoding repacks bytes 8 to 6 bits through the share alphabet.
// Strict decoding rejects tokens whose padding bits are not zero.
var compactEncoding = base64.NewEncoding(alphabet).
	WithPadding(base64.NoPadding).
	Strict()

// EncodeCompact writes each timer as mapId(2) server(1) total(3)
// remaining(3) paused(1) decimal digits and repacks the digits.
func (c Codec) EncodeCompact(snaps []Snapshot) (string, error) {
	recs, err := c.records(snaps)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, r := range recs {
		paused := 0
		if r.paused {
			paused = 1
		}

		fmt.Fprintf(&b, "%02d%d%03d%03d%d", r.mapID, r.server, r.total, r.remaining, paused)
	}

	return compactEncoding.EncodeToString([]byte(b.String())), nil
}

// DecodeCompact parses a compact token. Every decoded byte must be a
// decimal digit and the digits must form whole records.
func (c Codec) DecodeCompact(token string) ([]Snapshot, error) {
	raw, err := compactEncoding.DecodeString(token)
	if err != nil {
		return nil, wrapCodecErr(err, "not a compact token")
	}

	if len(raw) == 0 || len(raw)%compactRecordLen != 0 {
		return nil, codecErr("compact token has a partial record")
	}

	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return nil, codecErr("compact token contains non-digit data")
		}
	}

	snaps := make([]Snapshot, 0, len(raw)/compactRecordLen)

	for i := 0; i < len(raw); i += compactRecordLen {
		rec := string(raw[i : i+compactRecordLen])

		r := record{
			mapID:     digits(rec[0:2]),
			server:    digits(rec[2:3]),
			total:     digits(rec[3:6]),
			remaining: digits(rec[6:9]),
		}

		switch rec[9] {
		case '0':
		case '1':
			r.paused = true
		default:
			return nil, codecErr("invalid paused flag %q", rec[9])
		}

		if err := validRecord(r); err != nil {
			return nil, err
		}

		snaps = append(snaps, c.snapshot(r))
	}

	return snaps, nil
}

// digits parses a string already known to hold only decimal digits.
func digits(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isAlphabetOnly(s string) bool {
	for i := range len(s) {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}

	return true
}
