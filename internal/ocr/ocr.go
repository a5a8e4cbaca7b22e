// Package ocr wraps the external text-recognition capability. The pipeline
// only sees the Recognizer interface; the backing engine is configuration.
package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/runner"
)

// Recognizer transcribes one normalized page image into text. The text is
// best-effort and may carry OCR noise; downstream extraction is tolerant of
// that by design, so engines must not retry on low quality.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}

// ConfidenceReporter is implemented by engines that can score their own
// transcription quality in 0..1.
type ConfidenceReporter interface {
	MeanConfidence(ctx context.Context, imagePath, lang string) (float32, error)
}

// BuildEngine picks the configured recognition engine.
func BuildEngine(cfg common.OCRConfig) Recognizer {
	if cfg.Engine == "gosseract" {
		return NewGosseractEngine()
	}
	return NewExecEngine(cfg)
}

// ExecEngine shells out to the tesseract binary.
type ExecEngine struct {
	cfg    common.OCRConfig
	runner runner.Runner
}

func NewExecEngine(cfg common.OCRConfig) *ExecEngine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	return &ExecEngine{cfg: cfg, runner: runner.Exec{}}
}

// WithRunner swaps the command runner; tests use this to stub tesseract.
func (e *ExecEngine) WithRunner(run runner.Runner) *ExecEngine {
	e.runner = run
	return e
}

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

func (e *ExecEngine) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	if lang == "" {
		lang = "eng"
	}
	args := []string{imagePath, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("%w: tesseract: %v: %s", common.ErrRecognition, err, errb)
	}

	// minor cleanup of obvious line noise
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// MeanConfidence runs tesseract in TSV mode and returns the mean word
// confidence in 0..1.
func (e *ExecEngine) MeanConfidence(ctx context.Context, imagePath, lang string) (float32, error) {
	if lang == "" {
		lang = "eng"
	}
	args := []string{imagePath, "stdout", "-l", lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w: %s", err, errb)
	}
	lines := strings.Split(string(out), "\n")
	// columns: level .. height conf text; conf is the 11th
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float32(sum / n / 100.0), nil
}
