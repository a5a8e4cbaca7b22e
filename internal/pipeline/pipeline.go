// Package pipeline sequences rasterization, normalization, recognition,
// aggregation and field extraction for one document at a time, converting any
// stage failure into a stage-tagged error and guaranteeing scratch cleanup on
// every path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/extract"
	"github.com/dealdocs/contractocr/internal/imaging"
	"github.com/dealdocs/contractocr/internal/ocr"
	"github.com/dealdocs/contractocr/internal/raster"
)

// RecognizedText is one page's transcription tagged with its ordinal. The
// aggregated document text is always assembled by ascending ordinal, never by
// recognition completion order.
type RecognizedText struct {
	Ordinal int
	Text    string
}

// Pipeline is the document processing orchestrator.
type Pipeline struct {
	logger      *slog.Logger
	rasterizer  *raster.Rasterizer
	recognizer  ocr.Recognizer
	chain       *extract.Chain
	language    string
	pageWorkers int
	confidence  bool

	// flight deduplicates concurrent runs per document identity so two
	// requests for the same file never race on scratch state.
	flight singleflight.Group
}

func New(logger *slog.Logger, rasterizer *raster.Rasterizer, recognizer ocr.Recognizer, chain *extract.Chain, cfg common.PipelineConfig, language string) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = "eng"
	}
	workers := cfg.PageWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		logger:      logger,
		rasterizer:  rasterizer,
		recognizer:  recognizer,
		chain:       chain,
		language:    language,
		pageWorkers: workers,
	}
}

// EnableConfidenceLogging turns on per-page TSV confidence reporting when the
// recognizer supports it.
func (p *Pipeline) EnableConfidenceLogging() { p.confidence = true }

// ProcessDocument runs the full pipeline for one PDF and returns the field
// record or a stage-tagged error. Concurrent calls for the same document
// share a single in-flight run; its result is handed to every waiter.
func (p *Pipeline) ProcessDocument(ctx context.Context, pdfPath string) (extract.Record, error) {
	key := flightKey(pdfPath)
	v, err, shared := p.flight.Do(key, func() (any, error) {
		return p.run(ctx, pdfPath)
	})
	if shared {
		p.logger.Debug("joined in-flight run", "document", pdfPath)
	}
	if err != nil {
		return extract.Record{}, err
	}
	return v.(extract.Record), nil
}

func flightKey(pdfPath string) string {
	if abs, err := filepath.Abs(pdfPath); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(pdfPath)
}

func (p *Pipeline) run(ctx context.Context, pdfPath string) (extract.Record, error) {
	runID := uuid.New().String()
	logger := p.logger.With("document", pdfPath, "run_id", runID)
	start := time.Now()

	// Rasterizing
	logger.Debug("stage start", "stage", StageRasterizing)
	pages, cleanup, err := p.rasterizer.Rasterize(ctx, pdfPath)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return extract.Record{}, &StageError{Stage: StageRasterizing, Err: err}
	}

	// Recognizing: pages are independent, so normalize+OCR fan out under a
	// worker limit; ordering is restored from ordinals at aggregation.
	logger.Debug("stage start", "stage", StageRecognizing, "pages", len(pages))
	texts := make([]RecognizedText, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.pageWorkers)
	for i, page := range pages {
		g.Go(func() error {
			norm, err := imaging.Normalize(page)
			if err != nil {
				return err
			}
			txt, err := p.recognizer.Recognize(gctx, norm.Path, p.language)
			if err != nil {
				return err
			}
			if p.confidence {
				if cr, ok := p.recognizer.(ocr.ConfidenceReporter); ok {
					if conf, cerr := cr.MeanConfidence(gctx, norm.Path, p.language); cerr == nil {
						logger.Debug("page confidence", "page", page.Ordinal, "confidence", conf)
					}
				}
			}
			texts[i] = RecognizedText{Ordinal: page.Ordinal, Text: txt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return extract.Record{}, &StageError{Stage: StageRecognizing, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return extract.Record{}, &StageError{Stage: StageRecognizing, Err: err}
	}

	// Aggregating
	full, err := Aggregate(texts)
	if err != nil {
		return extract.Record{}, &StageError{Stage: StageAggregating, Err: err}
	}

	// Extracting: regex tiers cannot fail, and an entity-tier failure is
	// absorbed into per-field Error sentinels by the chain itself.
	rec := p.chain.Run(ctx, full)

	logger.Info("document processed",
		"pages", len(pages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// Aggregate joins per-page texts in strict ordinal order, each followed by a
// newline. Ordinals must cover 1..N without gaps; anything else is an
// upstream invariant violation, not data.
func Aggregate(texts []RecognizedText) (string, error) {
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: no recognized pages", common.ErrAggregation)
	}
	ordered := make([]RecognizedText, len(texts))
	copy(ordered, texts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	var b strings.Builder
	for i, t := range ordered {
		if t.Ordinal != i+1 {
			return "", fmt.Errorf("%w: page ordinals not contiguous at %d", common.ErrAggregation, i+1)
		}
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
