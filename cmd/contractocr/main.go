// Command contractocr processes a single scanned contract PDF and prints the
// extracted field record as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/export"
	"github.com/dealdocs/contractocr/internal/extract"
	"github.com/dealdocs/contractocr/internal/ner"
	"github.com/dealdocs/contractocr/internal/ocr"
	"github.com/dealdocs/contractocr/internal/pipeline"
	"github.com/dealdocs/contractocr/internal/raster"
	"github.com/dealdocs/contractocr/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "processing timeout")
	storePath := flag.String("store", "", "record the outcome in this run-history database")
	xlsxPath := flag.String("xlsx", "", "write the run history as an XLSX workbook (requires -store)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "contractocr [flags] <contract.pdf>")
		os.Exit(2)
	}
	pdfPath := flag.Arg(0)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *xlsxPath != "" && *storePath == "" {
		logger.Error("-xlsx requires -store")
		os.Exit(2)
	}
	var runs *store.RunStore
	if *storePath != "" {
		runs, err = store.Open(ctx, *storePath, logger)
		if err != nil {
			logger.Error("open run store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := runs.Close(); cerr != nil {
				logger.Error("close run store", "error", cerr)
			}
		}()
	}

	start := time.Now()
	rec, err := p.ProcessDocument(ctx, pdfPath)
	dur := time.Since(start)
	if err != nil {
		stage := ""
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
			logger.Error("processing failed", "stage", se.Stage, "error", se.Err)
		} else {
			logger.Error("processing failed", "error", err)
		}
		if runs != nil {
			if rerr := runs.RecordFailure(ctx, uuid.New(), pdfPath, stage, err.Error(), dur); rerr != nil {
				logger.Error("record outcome", "error", rerr)
			}
		}
		os.Exit(1)
	}
	if runs != nil {
		if rerr := runs.RecordSuccess(ctx, uuid.New(), pdfPath, rec, dur); rerr != nil {
			logger.Error("record outcome", "error", rerr)
		}
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *xlsxPath != "" {
		data, err := export.NewService(runs, logger).ExportRunsXLSX(ctx, 0)
		if err != nil {
			logger.Error("export runs", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			logger.Error("write workbook", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("wrote workbook", "path", *xlsxPath)
	}
}

func buildPipeline(cfg *common.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	var recognizerForEntities extract.EntityRecognizer
	for _, s := range cfg.Extract.Strategies {
		if s == "entity" {
			recognizerForEntities = ner.NewClient(cfg.NER, logger)
			break
		}
	}

	chain, err := extract.BuildChain(logger, cfg.Extract.Strategies, recognizerForEntities)
	if err != nil {
		return nil, err
	}

	rasterizer := raster.NewRasterizer(cfg.Raster, logger)
	engine := ocr.BuildEngine(cfg.OCR)

	p := pipeline.New(logger, rasterizer, engine, chain, cfg.Pipeline, cfg.OCR.Language)
	if cfg.OCR.TSVConfidence {
		p.EnableConfidenceLogging()
	}
	return p, nil
}
