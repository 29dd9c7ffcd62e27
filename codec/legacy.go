package codec

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
)

// legacyRecord is the JSON shape of the original share format.
type legacyRecord struct {
	Ep               int  `json:"ep"`
	Map              int  `json:"map"`
	Channel          int  `json:"channel"`
	TotalSeconds     int  `json:"totalSeconds"`
	RemainingSeconds int  `json:"remainingSeconds"`
	IsPaused         bool `json:"isPaused"`
}

var legacyEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// EncodeLegacy writes snaps in the legacy format. Durations keep their
// full second precision.
func EncodeLegacy(snaps []Snapshot) (string, error) {
	b, err := legacyJSON(snaps)
	if err != nil {
		return "", err
	}

	escaped := strings.ReplaceAll(url.QueryEscape(string(b)), "+", "%20")

	return base64.StdEncoding.EncodeToString([]byte(escaped)), nil
}

func legacyJSON(snaps []Snapshot) ([]byte, error) {
	if len(snaps) == 0 {
		return nil, codecErr("no timers to share")
	}

	recs := make([]legacyRecord, len(snaps))

	for i, s := range snaps {
		recs[i] = legacyRecord{
			Ep:               s.Chapter,
			Map:              s.MapIndex,
			Channel:          s.Server,
			TotalSeconds:     s.TotalSeconds,
			RemainingSeconds: s.RemainingSeconds,
			IsPaused:         s.Paused,
		}
	}

	b, err := json.Marshal(recs)
	if err != nil {
		return nil, wrapCodecErr(err, "encoding timers")
	}

	return b, nil
}

// DecodeLegacy parses a legacy token. Both Base64 alphabets are accepted,
// with or without padding.
func DecodeLegacy(token string) ([]Snapshot, error) {
	var (
		raw []byte
		err error
	)

	for _, enc := range legacyEncodings {
		raw, err = enc.DecodeString(token)
		if err == nil {
			break
		}
	}

	if err != nil {
		return nil, wrapCodecErr(err, "not a share token")
	}

	unescaped, err := url.PathUnescape(string(raw))
	if err != nil {
		return nil, wrapCodecErr(err, "malformed share token")
	}

	var recs []legacyRecord

	if err := json.Unmarshal([]byte(unescaped), &recs); err != nil {
		return nil, wrapCodecErr(err, "malformed share token")
	}

	if len(recs) == 0 {
		return nil, codecErr("share token contains no timers")
	}

	snaps := make([]Snapshot, len(recs))

	for i, r := range recs {
		if r.TotalSeconds < 1 {
			return nil, codecErr("timer %d has no duration", i+1)
		}

		if r.RemainingSeconds < 0 || r.RemainingSeconds > r.TotalSeconds {
			return nil, codecErr(
				"timer %d has remaining %d outside its duration %d",
				i+1,
				r.RemainingSeconds,
				r.TotalSeconds,
			)
		}

		snaps[i] = Snapshot{
			Chapter:          r.Ep,
			MapIndex:         r.Map,
			Server:           r.Channel,
			TotalSeconds:     r.TotalSeconds,
			RemainingSeconds: r.RemainingSeconds,
			Paused:           r.IsPaused,
		}
	}

	return snaps, nil
}
