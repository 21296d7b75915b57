package stego

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/rs/zerolog"
	"lukechampine.com/jsteg"
)

const BackendJsteg = "jsteg"

// coefficientBitsPerBlock is a conservative count of usable coefficients in
// one 8x8 luma block. Flat regions quantize to 0 and 1, which are skipped.
const coefficientBitsPerBlock = 8

// CoefficientBackend hides data in the least significant bits of quantized
// DCT coefficients, in process, through jsteg. It is not keyed: positions
// are fixed, and secrecy rests on the encrypted container.
type CoefficientBackend struct {
	quality int
	logger  zerolog.Logger
}

func NewCoefficientBackend(o Options) *CoefficientBackend {
	return &CoefficientBackend{quality: o.quality(), logger: o.logger()}
}

func (c *CoefficientBackend) Name() string { return BackendJsteg }

func (c *CoefficientBackend) Available() error { return nil }

func (c *CoefficientBackend) options() *jpeg.Options {
	return &jpeg.Options{Quality: c.quality}
}

func (c *CoefficientBackend) Capacity(carrierPath string) (int, error) {
	img, _, err := loadImage(carrierPath)
	if err != nil {
		return 0, err
	}
	return coefficientCapacity(img.Bounds()), nil
}

func coefficientCapacity(r image.Rectangle) int {
	blocks := ((r.Dx() + 7) / 8) * ((r.Dy() + 7) / 8)
	return blocks * coefficientBitsPerBlock / 8
}

func (c *CoefficientBackend) Embed(ctx context.Context, carrierPath, outputPath string, container []byte, password string) (string, error) {
	img, _, err := loadImage(carrierPath)
	if err != nil {
		return "", err
	}
	if capacity := coefficientCapacity(img.Bounds()); len(container) > capacity {
		return "", fmt.Errorf("%w: %s needs %d bytes, image offers %d", ErrCapacity, c.Name(), len(container), capacity)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := jsteg.Hide(&buf, img, container, c.options()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendFailed, err)
	}
	// Usable coefficients depend on content, so read the result back before
	// committing to it.
	got, err := jsteg.Reveal(bytes.NewReader(buf.Bytes()))
	if err != nil || !bytes.HasPrefix(got, container) {
		return "", fmt.Errorf("%w: image content too flat to hold %d bytes", ErrBackendCapacity, len(container))
	}

	outputPath = withExt(outputPath, ".jpg", ".jpeg")
	err = writeFileAtomic(outputPath, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug().Int("quality", c.quality).Int("bytes", len(container)).Msg("Coefficient embedding")
	return outputPath, nil
}

func (c *CoefficientBackend) Extract(ctx context.Context, carrierPath, password string) ([]byte, error) {
	if !isJPEG(carrierPath) {
		return nil, fmt.Errorf("%w: %s is not a JPEG", ErrUnsupportedCarrier, carrierPath)
	}
	f, err := os.Open(carrierPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := jsteg.Reveal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCarrier, err)
	}
	return data, nil
}
