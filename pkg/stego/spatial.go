package stego

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

const (
	BackendSpatial   = "spatial"
	BackendSpatialRS = "spatial-rs"

	// spatialChannels are R, G and B; alpha is never touched.
	spatialChannels = 3
)

// SpatialBackend hides bits in the second least significant bit of every
// colour channel, at positions chosen by the password's permutation, with
// each bit written twice. The output is lossless PNG; re-encoding it as a
// JPEG at a different quality will destroy the payload.
//
// With stripes enabled the container is first Reed-Solomon encoded so that
// repetition groups which disagree can be rebuilt instead of guessed.
type SpatialBackend struct {
	coder    RepetitionCoder
	stripes  *stripeCodec
	logger   zerolog.Logger
	progress io.Writer
}

func NewSpatialBackend(o Options) *SpatialBackend {
	return &SpatialBackend{
		coder:    RepetitionCoder{Factor: DefaultRepetition},
		logger:   o.logger(),
		progress: o.progress(),
	}
}

func NewSpatialRSBackend(o Options) *SpatialBackend {
	b := NewSpatialBackend(o)
	// reedsolomon.New only fails on invalid shard counts, which are constant.
	b.stripes, _ = newStripeCodec()
	return b
}

func (s *SpatialBackend) Name() string {
	if s.stripes != nil {
		return BackendSpatialRS
	}
	return BackendSpatial
}

func (s *SpatialBackend) Available() error { return nil }

func spatialSlots(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return width * height * spatialChannels
}

// slotOffset maps a slot index to its byte in an origin-anchored NRGBA Pix.
func slotOffset(slot int) int {
	return (slot/spatialChannels)*4 + slot%spatialChannels
}

// capacityFor converts a slot count to container bytes.
func (s *SpatialBackend) capacityFor(slots int) int {
	raw := slots / s.coder.EncodedBits(1)
	if s.stripes == nil {
		return raw
	}
	return raw / stripeEncodedSize * stripeDataSize
}

func (s *SpatialBackend) Capacity(carrierPath string) (int, error) {
	f, err := os.Open(carrierPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnsupportedCarrier, carrierPath, err)
	}
	return s.capacityFor(spatialSlots(cfg.Width, cfg.Height)), nil
}

func (s *SpatialBackend) Embed(ctx context.Context, carrierPath, outputPath string, container []byte, password string) (string, error) {
	img, _, err := loadImage(carrierPath)
	if err != nil {
		return "", err
	}
	out := copyImage(img)
	width, height := out.Bounds().Dx(), out.Bounds().Dy()
	slots := spatialSlots(width, height)

	payload := container
	if s.stripes != nil {
		if payload, err = s.stripes.encode(container); err != nil {
			return "", err
		}
	}

	bits := s.coder.Encode(bytesToBits(payload))
	if len(bits) > slots {
		return "", fmt.Errorf("%w: %s needs %d slots, %dx%d image has %d", ErrCapacity, s.Name(), len(bits), width, height, slots)
	}

	s.logger.Debug().
		Int("width", width).
		Int("height", height).
		Int("slots", slots).
		Int("required", len(bits)).
		Msg("Spatial embedding")

	perm := NewPermutation(password, slots)
	bar := newBar(s.progress, len(bits), "embedding")
	changed := 0
	for i, bit := range bits {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		slot, err := perm.Next()
		if err != nil {
			return "", err
		}
		off := slotOffset(slot)
		v := writeSlot(out.Pix[off], bit)
		if v != out.Pix[off] {
			changed++
		}
		out.Pix[off] = v
		bar.Add(1)
	}
	bar.Finish()

	outputPath = withExt(outputPath, ".png")
	if err := encodePNG(outputPath, out); err != nil {
		return "", err
	}

	s.logger.Debug().Int("changed", changed).Int("written", len(bits)).Msg("Spatial slots modified")
	return outputPath, nil
}

func (s *SpatialBackend) Extract(ctx context.Context, carrierPath, password string) ([]byte, error) {
	img, _, err := loadImage(carrierPath)
	if err != nil {
		return nil, err
	}
	pix := copyImage(img)
	width, height := pix.Bounds().Dx(), pix.Bounds().Dy()
	slots := spatialSlots(width, height)
	capacity := s.capacityFor(slots)
	if capacity < HeaderSize {
		return nil, fmt.Errorf("%w: %dx%d image holds %d bytes, header alone needs %d", ErrTruncated, width, height, capacity, HeaderSize)
	}

	r := &slotReader{
		pix:   pix.Pix,
		perm:  NewPermutation(password, slots),
		coder: s.coder,
		bar:   newBar(s.progress, slots, "extracting"),
		ctx:   ctx,
	}
	defer r.bar.Finish()

	if s.stripes == nil {
		return s.extractPlain(r, capacity)
	}
	return s.extractStriped(r, capacity)
}

func (s *SpatialBackend) extractPlain(r *slotReader, capacity int) ([]byte, error) {
	header, ties, err := r.readBytes(HeaderSize)
	if err != nil {
		return nil, err
	}
	length, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}
	total := HeaderSize + int(length)
	if uint64(total) > uint64(capacity) {
		return nil, fmt.Errorf("%w: declared %d bytes, carrier holds %d", ErrTruncated, total, capacity)
	}

	body, bodyTies, err := r.readBytes(int(length))
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("ties", ties+bodyTies).Int("bytes", total).Msg("Spatial extraction read container")
	return append(header, body...), nil
}

func (s *SpatialBackend) extractStriped(r *slotReader, capacity int) ([]byte, error) {
	headStripes := stripeCount(HeaderSize)
	raw, erased, err := r.readStripes(headStripes)
	if err != nil {
		return nil, err
	}
	data, err := s.stripes.decode(raw, erased)
	if err != nil {
		return nil, err
	}
	length, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	total := HeaderSize + int(length)
	if uint64(total) > uint64(capacity) {
		return nil, fmt.Errorf("%w: declared %d bytes, carrier holds %d", ErrTruncated, total, capacity)
	}

	if more := stripeCount(total) - headStripes; more > 0 {
		raw, erased, err := r.readStripes(more)
		if err != nil {
			return nil, err
		}
		rest, err := s.stripes.decode(raw, erased)
		if err != nil {
			return nil, err
		}
		data = append(data, rest...)
	}
	return data[:total], nil
}

// slotReader walks the permutation and undoes the repetition code. Because
// permutations are prefix stable, reading the header first and the body
// afterwards visits exactly the slots the embedder wrote.
type slotReader struct {
	pix   []uint8
	perm  *Permutation
	coder RepetitionCoder
	bar   *progressbar.ProgressBar
	ctx   context.Context
	read  int
}

func (r *slotReader) readBits(n int) ([]uint8, error) {
	bits := make([]uint8, n)
	for i := range bits {
		if r.read%4096 == 0 {
			if err := r.ctx.Err(); err != nil {
				return nil, err
			}
		}
		slot, err := r.perm.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: ran out of slots", ErrTruncated)
		}
		bits[i] = readSlot(r.pix[slotOffset(slot)])
		r.read++
		r.bar.Add(1)
	}
	return bits, nil
}

// readBytes returns n decoded bytes and how many repetition groups tied.
func (r *slotReader) readBytes(n int) ([]byte, int, error) {
	raw, err := r.readBits(r.coder.EncodedBits(n))
	if err != nil {
		return nil, 0, err
	}
	bits, ties := r.coder.Decode(raw)
	return bitsToBytes(bits), len(ties), nil
}

// readStripes returns the bytes of n encoded stripes and marks every byte
// that contains a tied repetition group.
func (r *slotReader) readStripes(n int) ([]byte, []bool, error) {
	size := n * stripeEncodedSize
	raw, err := r.readBits(r.coder.EncodedBits(size))
	if err != nil {
		return nil, nil, err
	}
	bits, ties := r.coder.Decode(raw)
	erased := make([]bool, size)
	for _, t := range ties {
		erased[t/8] = true
	}
	return bitsToBytes(bits), erased, nil
}
