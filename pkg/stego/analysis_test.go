package stego

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeMetrics(t *testing.T) {
	tmpDir := t.TempDir()
	origPath := filepath.Join(tmpDir, "orig.png")
	stegoPath := filepath.Join(tmpDir, "stego.png")
	heatmapPath := filepath.Join(tmpDir, "heatmap.png")

	// Identical images: MSE 0, PSNR +Inf.
	img1 := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	saveImage(t, origPath, img1)
	saveImage(t, stegoPath, img1)

	result, err := Analyze(&AnalyzeArgs{
		CoverPath:   origPath,
		StegoPath:   stegoPath,
		HeatmapPath: heatmapPath,
	})
	if err != nil {
		t.Fatalf("Analyze failed for identical images: %v", err)
	}
	if result.MSE != 0 {
		t.Errorf("Expected MSE 0 for identical images, got %f", result.MSE)
	}
	if !math.IsInf(result.PSNR, 1) {
		t.Errorf("Expected PSNR +Inf for identical images, got %f", result.PSNR)
	}
	if result.ChangedPixels != 0 || result.SlotFlips != 0 {
		t.Errorf("Expected no changes, got %d pixels / %d flips", result.ChangedPixels, result.SlotFlips)
	}

	// One channel of one pixel off by 10 (0b1010): MSE = 100 / (100 * 3).
	img2 := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img2.Set(0, 0, color.NRGBA{R: 10, G: 0, B: 0, A: 255})
	saveImage(t, stegoPath, img2)

	result, err = Analyze(&AnalyzeArgs{
		CoverPath:   origPath,
		StegoPath:   stegoPath,
		HeatmapPath: heatmapPath,
	})
	if err != nil {
		t.Fatalf("Analyze failed for modified image: %v", err)
	}

	expectedMSE := 100.0 / 300.0
	if math.Abs(result.MSE-expectedMSE) > 0.0001 {
		t.Errorf("MSE calculation incorrect. Got %f, want %f", result.MSE, expectedMSE)
	}
	expectedPSNR := 10 * math.Log10((255*255)/expectedMSE)
	if math.Abs(result.PSNR-expectedPSNR) > 0.0001 {
		t.Errorf("PSNR calculation incorrect. Got %f, want %f", result.PSNR, expectedPSNR)
	}
	if result.ChangedPixels != 1 {
		t.Errorf("Expected 1 changed pixel, got %d", result.ChangedPixels)
	}
	if result.SlotFlips != 1 {
		t.Errorf("Expected 1 slot flip, got %d", result.SlotFlips)
	}
	if result.Pixels != 100 || result.Slots != 300 {
		t.Errorf("Totals = %d pixels / %d slots, want 100 / 300", result.Pixels, result.Slots)
	}
	if got := result.ChangedShare(); math.Abs(got-0.01) > 1e-9 {
		t.Errorf("ChangedShare() = %f, want 0.01", got)
	}

	if _, err := os.Stat(heatmapPath); os.IsNotExist(err) {
		t.Error("Heatmap file was not created")
	}
}

func TestAnalyzeSpatialEmbedding(t *testing.T) {
	tmpDir := t.TempDir()
	coverPath := filepath.Join(tmpDir, "cover.png")
	saveImage(t, coverPath, noisyImage(64, 64, 40))

	container := sealAndPack(t, make([]byte, 200), "pw")
	out, err := NewSpatialBackend(Options{}).Embed(context.Background(), coverPath, filepath.Join(tmpDir, "stego.png"), container, "pw")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	result, err := Analyze(&AnalyzeArgs{CoverPath: coverPath, StegoPath: out})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	used := SlotsUsed(BackendSpatial, len(container))
	if used != len(container)*8*DefaultRepetition {
		t.Fatalf("SlotsUsed() = %d", used)
	}
	if result.SlotFlips > used {
		t.Errorf("%d flips exceed the %d slots written", result.SlotFlips, used)
	}
	// Ciphertext against a noisy cover flips about half the written slots.
	if share := result.FlipShare(used); share < 0.4 || share > 0.6 {
		t.Errorf("FlipShare() = %.3f, want about 0.5", share)
	}
	if result.ChangedPixels > result.SlotFlips {
		t.Errorf("%d changed pixels but only %d flips", result.ChangedPixels, result.SlotFlips)
	}
}

func TestSlotsUsed(t *testing.T) {
	if got, want := SlotsUsed(BackendSpatialRS, 16), 24*8*DefaultRepetition; got != want {
		t.Errorf("SlotsUsed(spatial-rs, 16) = %d, want %d", got, want)
	}
	if got := SlotsUsed(BackendOutGuess, 100); got != 0 {
		t.Errorf("SlotsUsed(outguess) = %d, want 0", got)
	}
	if got := (&AnalysisResult{SlotFlips: 5}).FlipShare(0); got != 0 {
		t.Errorf("FlipShare(0) = %f, want 0", got)
	}
}

func TestAnalyzeDimensionMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.png")
	b := filepath.Join(tmpDir, "b.png")
	saveImage(t, a, image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	saveImage(t, b, image.NewNRGBA(image.Rect(0, 0, 5, 4)))

	if _, err := Analyze(&AnalyzeArgs{CoverPath: a, StegoPath: b}); err == nil {
		t.Fatal("Expected an error for mismatched dimensions")
	}
}

func saveImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode png to %s: %v", path, err)
	}
}
