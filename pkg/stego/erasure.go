package stego

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Reed-Solomon stripe layout used by the spatial-rs backend. Every 16 bytes
// of container become 4 data shards plus 2 parity shards of 4 bytes each.
const (
	rsDataShards   = 4
	rsParityShards = 2
	rsShardSize    = 4

	stripeDataSize    = rsDataShards * rsShardSize
	stripeEncodedSize = (rsDataShards + rsParityShards) * rsShardSize
)

type stripeCodec struct {
	enc reedsolomon.Encoder
}

func newStripeCodec() (*stripeCodec, error) {
	enc, err := reedsolomon.New(rsDataShards, rsParityShards)
	if err != nil {
		return nil, err
	}
	return &stripeCodec{enc: enc}, nil
}

func stripeCount(n int) int {
	return (n + stripeDataSize - 1) / stripeDataSize
}

// stripedSize is the encoded size of n data bytes.
func stripedSize(n int) int {
	return stripeCount(n) * stripeEncodedSize
}

func (s *stripeCodec) encode(data []byte) ([]byte, error) {
	out := make([]byte, 0, stripedSize(len(data)))
	for off := 0; off < len(data); off += stripeDataSize {
		chunk := make([]byte, stripeDataSize)
		copy(chunk, data[off:])

		shards := make([][]byte, rsDataShards+rsParityShards)
		for i := range shards {
			shards[i] = make([]byte, rsShardSize)
			if i < rsDataShards {
				copy(shards[i], chunk[i*rsShardSize:])
			}
		}
		if err := s.enc.Encode(shards); err != nil {
			return nil, err
		}
		for _, shard := range shards {
			out = append(out, shard...)
		}
	}
	return out, nil
}

// decode rebuilds the data bytes of whole stripes. erased flags bytes that
// are known to be unreliable; any shard touching one is dropped and
// reconstructed from the others.
func (s *stripeCodec) decode(raw []byte, erased []bool) ([]byte, error) {
	if len(raw)%stripeEncodedSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of stripes", ErrTruncated, len(raw))
	}

	out := make([]byte, 0, len(raw)/stripeEncodedSize*stripeDataSize)
	for off := 0; off < len(raw); off += stripeEncodedSize {
		shards := make([][]byte, rsDataShards+rsParityShards)
		missing := 0
		for i := range shards {
			start := off + i*rsShardSize
			if anyTrue(erased, start, start+rsShardSize) {
				missing++
				continue
			}
			shards[i] = append([]byte(nil), raw[start:start+rsShardSize]...)
		}

		if missing > rsParityShards {
			return nil, fmt.Errorf("%w: stripe %d lost %d of %d shards", ErrIntegrity, off/stripeEncodedSize, missing, len(shards))
		}
		if missing > 0 {
			if err := s.enc.ReconstructData(shards); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
			}
		}
		for _, shard := range shards[:rsDataShards] {
			out = append(out, shard...)
		}
	}
	return out, nil
}

func anyTrue(flags []bool, from, to int) bool {
	for i := from; i < to && i < len(flags); i++ {
		if flags[i] {
			return true
		}
	}
	return false
}
