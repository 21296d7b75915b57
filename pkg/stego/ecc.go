package stego

import (
	"bytes"
	"io"

	"github.com/icza/bitio"
)

// DefaultRepetition is the number of copies written for every payload bit.
const DefaultRepetition = 2

// RepetitionCoder spreads every bit over Factor consecutive slots.
//
// Decoding takes the majority of each group. With an even factor a group can
// split evenly; such a tie always resolves to 1 and its index is reported so
// callers can treat it as an erasure.
type RepetitionCoder struct {
	Factor int
}

func (c RepetitionCoder) factor() int {
	if c.Factor < 1 {
		return DefaultRepetition
	}
	return c.Factor
}

// EncodedBits is the number of slots needed for n payload bytes.
func (c RepetitionCoder) EncodedBits(n int) int {
	return n * 8 * c.factor()
}

// Encode repeats each bit in place: b0 b0 b1 b1 ...
func (c RepetitionCoder) Encode(bits []uint8) []uint8 {
	f := c.factor()
	out := make([]uint8, 0, len(bits)*f)
	for _, b := range bits {
		for i := 0; i < f; i++ {
			out = append(out, b&1)
		}
	}
	return out
}

// Decode collapses each group of Factor bits. Trailing bits that do not fill
// a whole group are dropped.
func (c RepetitionCoder) Decode(bits []uint8) ([]uint8, []int) {
	f := c.factor()
	out := make([]uint8, 0, len(bits)/f)
	var ties []int

	for g := 0; g+f <= len(bits); g += f {
		ones := 0
		for _, b := range bits[g : g+f] {
			ones += int(b & 1)
		}
		switch {
		case 2*ones > f:
			out = append(out, 1)
		case 2*ones < f:
			out = append(out, 0)
		default:
			ties = append(ties, len(out))
			out = append(out, 1)
		}
	}
	return out, ties
}

// bytesToBits expands data MSB first, one bit per element.
func bytesToBits(data []byte) []uint8 {
	r := bitio.NewReader(bytes.NewReader(data))
	bits := make([]uint8, 0, len(data)*8)
	for {
		b, err := r.ReadBool()
		if err == io.EOF {
			break
		}
		if err != nil {
			// bytes.Reader only ever fails with io.EOF
			break
		}
		if b {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
	return bits
}

// bitsToBytes packs bits MSB first. A trailing partial byte is zero padded.
func bitsToBytes(bits []uint8) []byte {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	for _, b := range bits {
		w.WriteBool(b&1 == 1)
	}
	w.Close()
	return buf.Bytes()
}
