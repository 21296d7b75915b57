package stego

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
)

func TestCoefficientRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(128, 128, 20))

	b := NewCoefficientBackend(Options{})
	container := sealAndPack(t, []byte("dct"), "pw")

	out, err := b.Embed(context.Background(), coverPath, filepath.Join(tmpDir, "stego.png"), container, "pw")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if filepath.Ext(out) != ".jpg" {
		t.Errorf("Output path %s should end in .jpg", out)
	}

	got, err := b.Extract(context.Background(), out, "pw")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	c, err := Open(got)
	if err != nil {
		t.Fatalf("Recovered bytes are not a valid container: %v", err)
	}
	if c.Size() != len(container) || !bytes.Equal(got[:c.Size()], container) {
		t.Error("Recovered container differs")
	}
}

func TestCoefficientRejectsPNG(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(16, 16, 21))

	if _, err := NewCoefficientBackend(Options{}).Extract(context.Background(), coverPath, "pw"); !errors.Is(err, ErrUnsupportedCarrier) {
		t.Errorf("Expected ErrUnsupportedCarrier, got %v", err)
	}
}

func TestCoefficientCapacity(t *testing.T) {
	if got := coefficientCapacity(image.Rect(0, 0, 64, 64)); got != 64 {
		t.Errorf("coefficientCapacity(64x64) = %d, want 64", got)
	}
	if got := coefficientCapacity(image.Rect(0, 0, 9, 8)); got != 2 {
		t.Errorf("coefficientCapacity(9x8) = %d, want 2", got)
	}
}

func TestQualityClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultQuality},
		{50, 75},
		{80, 80},
		{100, 95},
	}
	for _, tt := range tests {
		if got := (Options{Quality: tt.in}).quality(); got != tt.want {
			t.Errorf("quality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
