package stego

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/zedseven/binmani"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func loadImage(path string) (image.Image, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrUnsupportedCarrier, path, err)
	}
	return img, format, nil
}

// copyImage returns an NRGBA copy anchored at the origin so that Pix offsets
// are simply (y*w+x)*4.
func copyImage(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	// draw goes through premultiplied alpha, which would lose low bits of
	// translucent pixels.
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:(y+1)*out.Stride], src.Pix[row:row+b.Dx()*4])
		}
		return out
	}

	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// isJPEG sniffs the SOI marker rather than trusting the file extension.
func isJPEG(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [3]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return bytes.Equal(magic[:], []byte{0xFF, 0xD8, 0xFF})
}

// outputPerm is the mode of every image written, before umask.
const outputPerm = 0644

// writeFileAtomic writes through a pending file in the destination directory
// and renames it into place, so a failure never leaves a partial output.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(outputPerm))
	if err != nil {
		return err
	}
	defer f.Cleanup()

	if err := write(f); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

func encodePNG(path string, img image.Image) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

// Slot bit helpers. A slot is one 8-bit channel value; only bit index
// slotBit is ever touched.
const slotBit = 1

func readSlot(v uint8) uint8 {
	return uint8(binmani.ReadFrom(uint16(v), slotBit, 1))
}

func writeSlot(v uint8, bit uint8) uint8 {
	return uint8(binmani.WriteTo(uint16(v), slotBit, 1, uint16(bit&1)))
}
