// Package imaging prepares rasterized page images for text recognition:
// grayscale conversion plus a linear contrast stretch, the same treatment a
// scanner bed's uneven exposure needs before OCR.
package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// page scans occasionally arrive as TIFF or BMP; register decoders
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	_ "image/jpeg"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/raster"
)

// Normalize converts a page image to grayscale and stretches its contrast to
// the full range, writing the result next to the source as *-processed.png.
// It is idempotent: a normalized image passed in again is returned unchanged,
// and re-running the stretch on already-stretched pixels is the identity.
// An unreadable or corrupt image aborts the whole document, not just the
// page, since downstream extraction assumes every page contributed text.
func Normalize(p raster.PageImage) (raster.PageImage, error) {
	if p.Normalized {
		return p, nil
	}

	f, err := os.Open(p.Path)
	if err != nil {
		return raster.PageImage{}, fmt.Errorf("%w: open page %d: %v", common.ErrNormalization, p.Ordinal, err)
	}
	src, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return raster.PageImage{}, fmt.Errorf("%w: decode page %d: %v", common.ErrNormalization, p.Ordinal, err)
	}

	gray := toGray(src)
	stretchContrast(gray)

	outPath := processedPath(p.Path)
	out, err := os.Create(outPath)
	if err != nil {
		return raster.PageImage{}, fmt.Errorf("%w: create %s: %v", common.ErrNormalization, outPath, err)
	}
	if err := png.Encode(out, gray); err != nil {
		_ = out.Close()
		return raster.PageImage{}, fmt.Errorf("%w: encode page %d: %v", common.ErrNormalization, p.Ordinal, err)
	}
	if err := out.Close(); err != nil {
		return raster.PageImage{}, fmt.Errorf("%w: close %s: %v", common.ErrNormalization, outPath, err)
	}

	return raster.PageImage{Ordinal: p.Ordinal, Path: outPath, Normalized: true}, nil
}

func processedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-processed.png"
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, src.At(x, y))
		}
	}
	return gray
}

// stretchContrast remaps pixel intensities linearly so the darkest pixel
// becomes 0 and the brightest 255. A flat image is left alone.
func stretchContrast(img *image.Gray) {
	min, max := uint8(255), uint8(0)
	for _, v := range img.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min || (min == 0 && max == 255) {
		return
	}
	span := int(max) - int(min)
	for i, v := range img.Pix {
		img.Pix[i] = uint8((int(v) - int(min)) * 255 / span)
	}
}
