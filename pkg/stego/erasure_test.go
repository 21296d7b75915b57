package stego

import (
	"bytes"
	"errors"
	"testing"
)

func TestStripeRoundTrip(t *testing.T) {
	codec, err := newStripeCodec()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("forty bytes of container header here....")

	enc, err := codec.encode(data)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(enc) != stripedSize(len(data)) {
		t.Fatalf("Encoded size = %d, want %d", len(enc), stripedSize(len(data)))
	}

	got, err := codec.decode(enc, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got[:len(data)], data) {
		t.Errorf("Got %q, want %q", got[:len(data)], data)
	}
}

func TestStripeReconstruct(t *testing.T) {
	codec, _ := newStripeCodec()
	data := bytes.Repeat([]byte("0123456789abcdef"), 2)
	enc, _ := codec.encode(data)

	// Damage shard 0 and shard 5 of the first stripe and flag them.
	erased := make([]bool, len(enc))
	for _, shard := range []int{0, 5} {
		for i := shard * rsShardSize; i < (shard+1)*rsShardSize; i++ {
			enc[i] ^= 0xFF
			erased[i] = true
		}
	}

	got, err := codec.decode(enc, erased)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Got %q, want %q", got, data)
	}

	// A third erasure in the same stripe is beyond the parity.
	for i := 2 * rsShardSize; i < 3*rsShardSize; i++ {
		erased[i] = true
	}
	if _, err := codec.decode(enc, erased); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Expected ErrIntegrity with three erasures, got %v", err)
	}
}

func TestStripeDecodePartial(t *testing.T) {
	codec, _ := newStripeCodec()
	if _, err := codec.decode(make([]byte, stripeEncodedSize+1), nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}
