package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/raster"
)

func writeGradientPNG(t *testing.T, path string, lo, hi uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 1))
	span := int(hi) - int(lo)
	for x := 0; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{Y: uint8(int(lo) + span*x/15)})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func decodeGray(t *testing.T, path string) *image.Gray {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("normalized image is %T, want *image.Gray", img)
	}
	return g
}

func TestNormalizeStretchesContrast(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page-1.png")
	writeGradientPNG(t, src, 100, 160) // washed-out scan

	got, err := Normalize(raster.PageImage{Ordinal: 1, Path: src})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !got.Normalized {
		t.Fatal("result not marked normalized")
	}
	if got.Ordinal != 1 {
		t.Fatalf("ordinal changed to %d", got.Ordinal)
	}
	if got.Path == src {
		t.Fatal("normalized image overwrote the source")
	}

	out := decodeGray(t, got.Path)
	min, max := uint8(255), uint8(0)
	for _, v := range out.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min != 0 || max != 255 {
		t.Fatalf("contrast range = [%d, %d], want [0, 255]", min, max)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page-1.png")
	writeGradientPNG(t, src, 100, 160)

	once, err := Normalize(raster.PageImage{Ordinal: 1, Path: src})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// A normalized page passed back in is returned unchanged.
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("Normalize() second pass error = %v", err)
	}
	if twice != once {
		t.Fatalf("second pass changed the page: %+v vs %+v", twice, once)
	}

	// And re-running the stretch itself is the identity.
	again, err := Normalize(raster.PageImage{Ordinal: 1, Path: once.Path})
	if err != nil {
		t.Fatalf("Normalize() re-stretch error = %v", err)
	}
	a, b := decodeGray(t, once.Path), decodeGray(t, again.Path)
	if len(a.Pix) != len(b.Pix) {
		t.Fatalf("pixel counts differ: %d vs %d", len(a.Pix), len(b.Pix))
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("pixel %d changed on re-stretch: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}

func TestNormalizeFlatImageUnchanged(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page-1.png")
	writeGradientPNG(t, src, 128, 128)

	got, err := Normalize(raster.PageImage{Ordinal: 1, Path: src})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	out := decodeGray(t, got.Path)
	for i, v := range out.Pix {
		if v != 128 {
			t.Fatalf("flat image pixel %d remapped to %d", i, v)
		}
	}
}

func TestNormalizeCorruptImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page-1.png")
	if err := os.WriteFile(src, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Normalize(raster.PageImage{Ordinal: 1, Path: src})
	if !errors.Is(err, common.ErrNormalization) {
		t.Fatalf("err = %v, want ErrNormalization", err)
	}
}

func TestNormalizeMissingFile(t *testing.T) {
	_, err := Normalize(raster.PageImage{Ordinal: 1, Path: filepath.Join(t.TempDir(), "gone.png")})
	if !errors.Is(err, common.ErrNormalization) {
		t.Fatalf("err = %v, want ErrNormalization", err)
	}
}
