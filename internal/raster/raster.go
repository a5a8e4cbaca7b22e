package raster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/runner"
)

// PageImage is one rasterized page. Ordinal is 1-based and contiguous across
// a document; page order is always derived from it, never from directory
// listing order.
type PageImage struct {
	Ordinal    int
	Path       string
	Normalized bool
}

// Rasterizer converts a PDF into ordered page images via pdftoppm, writing
// them into a per-run scratch directory it owns.
type Rasterizer struct {
	cfg       common.RasterConfig
	runner    runner.Runner
	pageCount func(pdfPath string) (int, error)
	logger    *slog.Logger
}

func NewRasterizer(cfg common.RasterConfig, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = os.TempDir()
	}
	return &Rasterizer{cfg: cfg, runner: runner.Exec{}, pageCount: api.PageCountFile, logger: logger}
}

// WithRunner swaps the command runner; tests use this to stub pdftoppm.
func (r *Rasterizer) WithRunner(run runner.Runner) *Rasterizer {
	r.runner = run
	return r
}

// WithPageCounter swaps the PDF page-count precheck; tests use this to avoid
// needing a real PDF on disk.
func (r *Rasterizer) WithPageCounter(fn func(pdfPath string) (int, error)) *Rasterizer {
	r.pageCount = fn
	return r
}

var rePageOrdinal = regexp.MustCompile(`-0*(\d+)\.png$`)

// Rasterize renders every page of the PDF at the configured DPI. The returned
// cleanup func removes the run's scratch directory and must be called on both
// success and failure paths; it is non-nil whenever scratch space was created.
// Concurrent runs never share scratch space: each run gets a UUID-named
// directory under the scratch root.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string) ([]PageImage, func(), error) {
	pageCount, err := r.pageCount(pdfPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: page count: %v", common.ErrConversion, err)
	}
	if pageCount < 1 {
		return nil, nil, fmt.Errorf("%w: document has no pages", common.ErrConversion)
	}

	scratch := filepath.Join(r.cfg.ScratchRoot, "run-"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, nil, fmt.Errorf("%w: scratch dir: %v", common.ErrConversion, err)
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Warn("scratch cleanup failed", "dir", scratch, "error", err)
		}
	}

	prefix := filepath.Join(scratch, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <scratch>/page
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", strconv.Itoa(r.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: pdftoppm: %v: %s", common.ErrConversion, err, errb)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	pages := make([]PageImage, 0, len(matches))
	for _, m := range matches {
		sub := rePageOrdinal.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil || n < 1 {
			continue
		}
		pages = append(pages, PageImage{Ordinal: n, Path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Ordinal < pages[j].Ordinal })

	if len(pages) == 0 {
		return nil, cleanup, fmt.Errorf("%w: pdftoppm produced no images", common.ErrConversion)
	}
	if r.cfg.MaxPages > 0 && len(pages) > r.cfg.MaxPages {
		pages = pages[:r.cfg.MaxPages]
	}
	for i, p := range pages {
		if p.Ordinal != i+1 {
			return nil, cleanup, fmt.Errorf("%w: page ordinals not contiguous: missing page %d", common.ErrConversion, i+1)
		}
	}

	r.logger.Debug("rasterized document", "path", pdfPath, "pages", len(pages), "dpi", r.cfg.DPI, "scratch", scratch)
	return pages, cleanup, nil
}
