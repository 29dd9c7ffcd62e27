package codec

import "strings"

const (
	binaryMaxLen = 24

	mapIDBits     = 4
	serverBits    = 3
	minutesBits   = 10
	pausedBits    = 1
	recordBits    = mapIDBits + serverBits + 2*minutesBits + pausedBits
	bitsPerSymbol = 6
)

// EncodeBinary packs each timer into 28 bits, most significant bit first,
// and writes the stream as 6 bit symbols. The last symbol is zero padded.
func (c Codec) EncodeBinary(snaps []Snapshot) (string, error) {
	recs, err := c.records(snaps)
	if err != nil {
		return "", err
	}

	var w bitWriter

	for _, r := range recs {
		if r.mapID >= 1<<mapIDBits || r.server >= 1<<serverBits {
			return "", codecErr("timer does not fit the binary format")
		}

		paused := 0
		if r.paused {
			paused = 1
		}

		w.write(r.mapID, mapIDBits)
		w.write(r.server, serverBits)
		w.write(r.total, minutesBits)
		w.write(r.remaining, minutesBits)
		w.write(paused, pausedBits)
	}

	var b strings.Builder

	for pos := 0; pos < w.n; pos += bitsPerSymbol {
		b.WriteByte(alphabet[w.read(pos, bitsPerSymbol)])
	}

	return b.String(), nil
}

// DecodeBinary parses a binary token. Trailing bits that do not form a
// whole record must be fewer than one symbol and all zero.
func (c Codec) DecodeBinary(token string) ([]Snapshot, error) {
	var w bitWriter

	for i := range len(token) {
		v := strings.IndexByte(alphabet, token[i])
		if v < 0 {
			return nil, codecErr("invalid character %q", token[i])
		}

		w.write(v, bitsPerSymbol)
	}

	count := w.n / recordBits
	spare := w.n - count*recordBits

	if count == 0 || spare >= bitsPerSymbol {
		return nil, codecErr("binary token has a partial record")
	}

	if spare > 0 && w.read(count*recordBits, spare) != 0 {
		return nil, codecErr("binary token has non-zero padding")
	}

	snaps := make([]Snapshot, 0, count)

	for i := range count {
		pos := i * recordBits

		r := record{
			mapID:  w.read(pos, mapIDBits),
			server: w.read(pos+mapIDBits, serverBits),
			total:  w.read(pos+mapIDBits+serverBits, minutesBits),
			remaining: w.read(
				pos+mapIDBits+serverBits+minutesBits,
				minutesBits,
			),
			paused: w.read(pos+recordBits-pausedBits, pausedBits) == 1,
		}

		if err := validRecord(r); err != nil {
			return nil, err
		}

		snaps = append(snaps, c.snapshot(r))
	}

	return snaps, nil
}

// bitWriter is an MSB-first bit buffer.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) write(v, width int) {
	for i := width - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}

		if (v>>i)&1 == 1 {
			w.buf[w.n/8] |= 0x80 >> (w.n % 8)
		}

		w.n++
	}
}

// read returns width bits starting at pos. Bits past the end read as zero.
func (w *bitWriter) read(pos, width int) int {
	v := 0

	for i := range width {
		v <<= 1

		p := pos + i
		if p < w.n && w.buf[p/8]&(0x80>>(p%8)) != 0 {
			v |= 1
		}
	}

	return v
}
