package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dealdocs/contractocr/internal/common"
)

// stubRunner fakes pdftoppm by creating empty output files under the prefix.
type stubRunner struct {
	names []string
	err   error
	calls int
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	s.calls++
	if s.err != nil {
		return nil, []byte("stub failure"), s.err
	}
	prefix := args[len(args)-1]
	for _, name := range s.names {
		if err := os.WriteFile(prefix+name, nil, 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func newTestRasterizer(run *stubRunner, pages int, scratch string) *Rasterizer {
	return NewRasterizer(common.RasterConfig{ScratchRoot: scratch}, nil).
		WithRunner(run).
		WithPageCounter(func(string) (int, error) { return pages, nil })
}

func TestRasterizeOrdersPagesNumerically(t *testing.T) {
	// Unpadded names sort wrong lexically: page-10 before page-2. Ordering
	// must come from the parsed ordinal.
	names := make([]string, 0, 12)
	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("-%d.png", i))
	}
	run := &stubRunner{names: names}
	r := newTestRasterizer(run, 12, t.TempDir())

	pages, cleanup, err := r.Rasterize(context.Background(), "contract.pdf")
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(pages) != 12 {
		t.Fatalf("got %d pages, want 12", len(pages))
	}
	for i, p := range pages {
		if p.Ordinal != i+1 {
			t.Errorf("pages[%d].Ordinal = %d, want %d", i, p.Ordinal, i+1)
		}
		if want := fmt.Sprintf("-%d.png", i+1); !strings.HasSuffix(p.Path, want) {
			t.Errorf("pages[%d].Path = %q, want suffix %q", i, p.Path, want)
		}
		if p.Normalized {
			t.Errorf("pages[%d] marked normalized before normalization", i)
		}
	}
}

func TestRasterizeZeroPagePDF(t *testing.T) {
	run := &stubRunner{}
	r := newTestRasterizer(run, 0, t.TempDir())

	_, _, err := r.Rasterize(context.Background(), "empty.pdf")
	if !errors.Is(err, common.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
	if run.calls != 0 {
		t.Fatalf("pdftoppm ran %d times for a zero-page document", run.calls)
	}
}

func TestRasterizeNoOutput(t *testing.T) {
	run := &stubRunner{names: nil} // pdftoppm exits 0 but writes nothing
	r := newTestRasterizer(run, 1, t.TempDir())

	_, cleanup, err := r.Rasterize(context.Background(), "contract.pdf")
	if cleanup != nil {
		defer cleanup()
	}
	if !errors.Is(err, common.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
}

func TestRasterizeOrdinalGap(t *testing.T) {
	run := &stubRunner{names: []string{"-1.png", "-3.png"}}
	r := newTestRasterizer(run, 3, t.TempDir())

	_, cleanup, err := r.Rasterize(context.Background(), "contract.pdf")
	if cleanup != nil {
		defer cleanup()
	}
	if !errors.Is(err, common.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
}

func TestRasterizeCommandFailure(t *testing.T) {
	scratch := t.TempDir()
	run := &stubRunner{err: errors.New("exit status 1")}
	r := newTestRasterizer(run, 2, scratch)

	_, cleanup, err := r.Rasterize(context.Background(), "contract.pdf")
	if !errors.Is(err, common.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
	if cleanup == nil {
		t.Fatal("cleanup is nil after scratch space was created")
	}
	cleanup()
	entries, rerr := os.ReadDir(scratch)
	if rerr != nil {
		t.Fatalf("ReadDir(scratch) error = %v", rerr)
	}
	if len(entries) != 0 {
		t.Errorf("cleanup left %d entries in scratch root", len(entries))
	}
}

func TestRasterizeMaxPagesCap(t *testing.T) {
	run := &stubRunner{names: []string{"-1.png", "-2.png", "-3.png", "-4.png"}}
	r := NewRasterizer(common.RasterConfig{ScratchRoot: t.TempDir(), MaxPages: 2}, nil).
		WithRunner(run).
		WithPageCounter(func(string) (int, error) { return 4, nil })

	pages, cleanup, err := r.Rasterize(context.Background(), "contract.pdf")
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
}

func TestRasterizeDistinctScratchDirs(t *testing.T) {
	run := &stubRunner{names: []string{"-1.png"}}
	r := newTestRasterizer(run, 1, t.TempDir())

	p1, c1, err := r.Rasterize(context.Background(), "a.pdf")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	defer c1()
	p2, c2, err := r.Rasterize(context.Background(), "a.pdf")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	defer c2()

	if filepath.Dir(p1[0].Path) == filepath.Dir(p2[0].Path) {
		t.Fatalf("two runs shared scratch dir %q", filepath.Dir(p1[0].Path))
	}
}

func TestRasterizePageCountError(t *testing.T) {
	run := &stubRunner{}
	r := NewRasterizer(common.RasterConfig{ScratchRoot: t.TempDir()}, nil).
		WithRunner(run).
		WithPageCounter(func(string) (int, error) { return 0, errors.New("not a PDF") })

	_, _, err := r.Rasterize(context.Background(), "garbage.bin")
	if !errors.Is(err, common.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
}
