package stego

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = log.Output(io.Discard)
}

// noisyImage returns an opaque image with pseudorandom pixels.
func noisyImage(w, h int, seed uint64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewPCG(seed, seed))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(r.IntN(256))
		img.Pix[i+1] = uint8(r.IntN(256))
		img.Pix[i+2] = uint8(r.IntN(256))
		img.Pix[i+3] = 255
	}
	return img
}

func saveJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode jpeg to %s: %v", path, err)
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return b
}

func sealAndPack(t *testing.T, payload []byte, password string) []byte {
	t.Helper()
	sealed, err := Encrypt(payload, password)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	packed, err := Pack(sealed)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	return packed
}

func TestSpatialRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		backend *SpatialBackend
	}{
		{BackendSpatial, NewSpatialBackend(Options{})},
		{BackendSpatialRS, NewSpatialRSBackend(Options{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			coverPath := filepath.Join(tmpDir, "cover.png")
			saveImage(t, coverPath, noisyImage(64, 64, 1))

			container := sealAndPack(t, []byte("attack at dawn"), "hunter2")
			out, err := tt.backend.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "stego.jpg"), container, "hunter2")
			if err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			if filepath.Ext(out) != ".png" {
				t.Errorf("Output path %s should have been rewritten to .png", out)
			}

			got, err := tt.backend.Extract(context.Background(), out, "hunter2")
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if !bytes.Equal(got, container) {
				t.Fatalf("Extracted container differs from embedded one")
			}
		})
	}
}

func TestSpatialCapacity(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(384, 1, 2))

	plain, err := NewSpatialBackend(Options{}).Capacity(coverPath)
	if err != nil {
		t.Fatal(err)
	}
	// 384 pixels * 3 slots / 16 slots per byte.
	if plain != 72 {
		t.Errorf("spatial capacity = %d, want 72", plain)
	}

	rs, err := NewSpatialRSBackend(Options{}).Capacity(coverPath)
	if err != nil {
		t.Fatal(err)
	}
	if rs != 48 {
		t.Errorf("spatial-rs capacity = %d, want 48", rs)
	}
}

func TestSpatialCapacityBoundary(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(384, 1, 3))
	before := mustRead(t, coverPath)

	b := NewSpatialBackend(Options{})

	// 31 bytes pad to 32, so the container is exactly 72 bytes.
	fits := sealAndPack(t, bytes.Repeat([]byte{'x'}, 31), "pw")
	out, err := b.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "fits.png"), fits, "pw")
	if err != nil {
		t.Fatalf("Embed of an exactly fitting container failed: %v", err)
	}
	got, err := b.Extract(context.Background(), out, "pw")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !bytes.Equal(got, fits) {
		t.Error("Extracted container differs at full capacity")
	}

	tooBig := sealAndPack(t, bytes.Repeat([]byte{'x'}, 32), "pw")
	overflowPath := filepath.Join(tmpDir, "overflow.png")
	if _, err := b.Embed(context.Background(), coverPath, overflowPath, tooBig, "pw"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Expected ErrCapacity, got %v", err)
	}
	if _, err := os.Stat(overflowPath); !os.IsNotExist(err) {
		t.Error("Output file was written despite the capacity error")
	}
	if !bytes.Equal(before, mustRead(t, coverPath)) {
		t.Error("Carrier was modified")
	}
}

func TestSpatialWrongPassword(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(64, 64, 4))

	b := NewSpatialBackend(Options{})
	container := sealAndPack(t, []byte("secret"), "right")
	out, err := b.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "stego.png"), container, "right")
	if err != nil {
		t.Fatal(err)
	}

	// A different permutation reads unrelated slots; whatever comes back
	// must not be the container.
	got, err := b.Extract(context.Background(), out, "wrong")
	if err == nil {
		if bytes.Equal(got, container) {
			t.Fatal("Wrong password recovered the container")
		}
		if _, err := Open(got); err == nil {
			t.Log("Wrong password yielded a well-formed container by chance")
		}
	}
}

// flipSlots inverts the embedding bit at the given slots of a PNG file.
func flipSlots(t *testing.T, path string, slots []int) {
	t.Helper()
	img, _, err := loadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	pix := copyImage(img)
	for _, s := range slots {
		off := slotOffset(s)
		pix.Pix[off] = writeSlot(pix.Pix[off], 1-readSlot(pix.Pix[off]))
	}
	if err := encodePNG(path, pix); err != nil {
		t.Fatal(err)
	}
}

func TestSpatialRSRepairsTies(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	cover := noisyImage(64, 64, 5)
	saveImage(t, coverPath, cover)
	slots := spatialSlots(64, 64)

	// The first slot holds one copy of the most significant bit of the
	// length field, which is 0 for any realistic payload. Flipping it makes
	// the first repetition group tie.
	first, err := Positions("pw", slots, 1)
	if err != nil {
		t.Fatal(err)
	}

	plain := NewSpatialBackend(Options{})
	container := sealAndPack(t, []byte("tie breaker"), "pw")
	out, err := plain.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "plain.png"), container, "pw")
	if err != nil {
		t.Fatal(err)
	}
	flipSlots(t, out, first)
	if got, err := plain.Extract(context.Background(), out, "pw"); err == nil && bytes.Equal(got, container) {
		t.Error("Plain repetition should not survive a tie in the length field")
	}

	rs := NewSpatialRSBackend(Options{})
	out, err = rs.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "rs.png"), container, "pw")
	if err != nil {
		t.Fatal(err)
	}
	flipSlots(t, out, first)
	got, err := rs.Extract(context.Background(), out, "pw")
	if err != nil {
		t.Fatalf("spatial-rs Extract failed after a single tie: %v", err)
	}
	if !bytes.Equal(got, container) {
		t.Error("spatial-rs did not rebuild the damaged shard")
	}
}

func TestSpatialTooSmall(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "tiny.png")
	saveImage(t, coverPath, noisyImage(4, 4, 6))

	if _, err := NewSpatialBackend(Options{}).Extract(context.Background(), coverPath, "pw"); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated for a tiny carrier, got %v", err)
	}
}

func TestSpatialRejectsGarbage(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "not-an-image.png")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSpatialBackend(Options{}).Capacity(path); !errors.Is(err, ErrUnsupportedCarrier) {
		t.Errorf("Expected ErrUnsupportedCarrier, got %v", err)
	}
}

func TestSpatialAcceptsJPEGCarrier(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.jpg")
	saveJPEG(t, coverPath, noisyImage(48, 48, 7))

	b := NewSpatialBackend(Options{})
	container := sealAndPack(t, []byte("from a jpeg"), "pw")
	out, err := b.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "stego"), container, "pw")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if out != filepath.Join(tmpDir, "stego.png") {
		t.Errorf("Output path = %s, want stego.png", out)
	}
	got, err := b.Extract(context.Background(), out, "pw")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, container) {
		t.Error("Extracted container differs")
	}
}
