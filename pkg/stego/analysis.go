package stego

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
)

type AnalyzeArgs struct {
	CoverPath string
	StegoPath string
	// HeatmapPath is optional; when set a PNG of the changed pixels is written.
	HeatmapPath string
	Progress    io.Writer
}

// AnalysisResult holds metrics about the comparison between two images.
type AnalysisResult struct {
	MSE  float64 // Mean Squared Error
	PSNR float64 // Peak Signal-to-Noise Ratio (dB)
	// ChangedPixels counts pixels with at least one differing channel.
	ChangedPixels int
	// SlotFlips counts channel values whose embedding bit differs.
	SlotFlips int
	// Pixels and Slots are the totals the counts above are drawn from.
	Pixels int
	Slots  int
}

// ChangedShare is the fraction of pixels that differ at all.
func (r *AnalysisResult) ChangedShare() float64 {
	if r.Pixels == 0 {
		return 0
	}
	return float64(r.ChangedPixels) / float64(r.Pixels)
}

// FlipShare relates SlotFlips to the number of slots a payload occupied.
// Embedding random bits flips about half of them; a share well above one
// means the image was modified outside the embedding bit.
func (r *AnalysisResult) FlipShare(used int) float64 {
	if used <= 0 {
		return 0
	}
	return float64(r.SlotFlips) / float64(used)
}

// SlotsUsed is the number of spatial slots a container of n bytes occupies
// with the named backend, or 0 when the backend does not write slots.
func SlotsUsed(backend string, n int) int {
	coder := RepetitionCoder{Factor: DefaultRepetition}
	switch backend {
	case BackendSpatial:
		return coder.EncodedBits(n)
	case BackendSpatialRS:
		return coder.EncodedBits(stripedSize(n))
	}
	return 0
}

// Analyze compares a cover image with its stego version. Only R, G and B are
// compared; alpha is never used for embedding.
func Analyze(args *AnalyzeArgs) (*AnalysisResult, error) {
	origRaw, _, err := loadImage(args.CoverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load cover: %w", err)
	}
	stegoRaw, _, err := loadImage(args.StegoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load stego image: %w", err)
	}

	orig := copyImage(origRaw)
	stego := copyImage(stegoRaw)

	bounds := orig.Bounds()
	if bounds != stego.Bounds() {
		return nil, fmt.Errorf("image dimensions do not match: %v vs %v", bounds, stego.Bounds())
	}

	width, height := bounds.Dx(), bounds.Dy()
	var sumSquaredError float64
	res := &AnalysisResult{Pixels: width * height, Slots: spatialSlots(width, height)}
	heatmap := image.NewNRGBA(bounds)

	bar := newBar(args.Progress, width*height, "analyzing")
	defer bar.Finish()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bar.Add(1)
			p1 := orig.PixOffset(x, y)
			p2 := stego.PixOffset(x, y)

			var diffSum float64
			modified := false
			for i := 0; i < spatialChannels; i++ {
				v1, v2 := orig.Pix[p1+i], stego.Pix[p2+i]
				diff := float64(v1) - float64(v2)
				sumSquaredError += diff * diff
				diffSum += math.Abs(diff)
				if v1 != v2 {
					modified = true
				}
				if readSlot(v1) != readSlot(v2) {
					res.SlotFlips++
				}
			}

			// Black is unchanged; small changes are green, large ones red.
			if modified {
				res.ChangedPixels++
				intensity := uint8(math.Min(255, diffSum*50))
				heatmap.SetNRGBA(x, y, color.NRGBA{R: intensity, G: 255 - intensity, A: 255})
			} else {
				heatmap.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}

	res.MSE = sumSquaredError / (float64(width*height) * spatialChannels)
	res.PSNR = 10 * math.Log10((255*255)/res.MSE)

	if args.HeatmapPath != "" {
		if err := encodePNG(args.HeatmapPath, heatmap); err != nil {
			return nil, fmt.Errorf("failed to write heatmap: %w", err)
		}
	}
	return res, nil
}
