// Command contractd watches the upload roots for scanned contract PDFs,
// processes each through the extraction pipeline on a worker queue, records
// outcomes in the run store, and serves gRPC health for deployment probes.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dealdocs/contractocr/internal/async"
	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/extract"
	"github.com/dealdocs/contractocr/internal/ingest"
	"github.com/dealdocs/contractocr/internal/ner"
	"github.com/dealdocs/contractocr/internal/ocr"
	"github.com/dealdocs/contractocr/internal/pipeline"
	"github.com/dealdocs/contractocr/internal/raster"
	"github.com/dealdocs/contractocr/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("CONFIG_FILE")
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Ingest.WatchRoots) == 0 {
		logger.Error("WATCH_ROOTS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run store (optional)
	var runs *store.RunStore
	if cfg.Store.Path != "" {
		runs, err = store.Open(ctx, cfg.Store.Path, logger)
		if err != nil {
			logger.Error("open run store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := runs.Close(); cerr != nil {
				logger.Error("close run store", "error", cerr)
			}
		}()
	} else {
		logger.Warn("STORE_PATH not set; outcomes will not be recorded")
	}

	// Pipeline
	var entities extract.EntityRecognizer
	for _, s := range cfg.Extract.Strategies {
		if s == "entity" {
			entities = ner.NewClient(cfg.NER, logger)
			break
		}
	}
	chain, err := extract.BuildChain(logger, cfg.Extract.Strategies, entities)
	if err != nil {
		logger.Error("build extraction chain", "error", err)
		os.Exit(1)
	}
	p := pipeline.New(logger,
		raster.NewRasterizer(cfg.Raster, logger),
		ocr.BuildEngine(cfg.OCR),
		chain, cfg.Pipeline, cfg.OCR.Language)
	if cfg.OCR.TSVConfidence {
		p.EnableConfidenceLogging()
	}

	// Worker queue
	queue := async.NewProcessorQueue(p, runs, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithProcessTimeout(cfg.Ingest.JobTimeout),
	)

	// Upload watcher
	evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.WatchRoots,
		InitialScan: cfg.Ingest.InitialScan,
		Debounce:    cfg.Ingest.Debounce,
	})
	if err != nil {
		logger.Error("start watcher", "error", err)
		os.Exit(1)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case path, ok := <-evCh:
				if !ok {
					return
				}
				_ = queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()})
			case werr, ok := <-errCh:
				if ok && werr != nil {
					logger.Error("watcher error", "error", werr)
				}
			}
		}
	}()

	// gRPC health for deployment probes
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
		if serr := grpcServer.Serve(lis); serr != nil {
			logger.Error("grpc serve", "error", serr)
		}
	}()

	logger.Info("contractd started",
		"roots", cfg.Ingest.WatchRoots,
		"workers", cfg.Ingest.Workers,
		"strategies", cfg.Extract.Strategies,
	)

	<-ctx.Done()
	logger.Info("shutting down...")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
