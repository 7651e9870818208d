// Command redactd watches an inbox tree and redacts every receipt that lands
// in it. It serves an HTTP API for job submission and stats, and a gRPC stats
// and health service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/async"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-redactor/internal/repository"
	"github.com/joseph-ayodele/receipts-redactor/internal/server"
)

func main() {
	logger := app.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("redactd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := common.LoadConfig()
	if cfg.Server.WatchDir == "" {
		return common.NewAppError("CONFIG_ERROR", "WATCH_DIR is required", common.ErrInvalidInput)
	}
	policy, err := matcher.ParsePolicy(cfg.Pipeline.MatchPolicy)
	if err != nil {
		return err
	}
	c, err := app.Build(cfg, false, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		opts      []pipeline.Option
		apiOpts   []server.APIOption
		ledgerAPI server.Ledger
	)
	if cfg.Ledger.DSN != "" {
		ledger, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.Ledger.DSN,
			MaxConns:        10,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     3 * time.Second,
		}, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := ledger.HealthCheck(ctx, 5*time.Second); err != nil {
			return common.WrapError(err, "ledger health")
		}
		opts = append(opts, pipeline.WithRecorder(ledger))
		apiOpts = append(apiOpts, server.WithLedger(ledger))
		ledgerAPI = ledger
	}

	orch := pipeline.NewOrchestrator(c.Matcher, c.Masker, c.Verifier, pipeline.Config{
		Policy:      policy,
		WorkDir:     cfg.Pipeline.WorkDir,
		OutputDir:   cfg.Pipeline.OutputDir,
		Workers:     cfg.Pipeline.Workers,
		QueueSize:   cfg.Pipeline.QueueSize,
		FileTimeout: cfg.Pipeline.FileTimeout,
	}, logger, opts...)

	queue := async.NewProcessorQueue(orch, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.FileTimeout+time.Minute),
		async.WithBaseContext(ctx),
	)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Server.WatchDir},
		InitialScan: true,
		Debounce:    cfg.Server.WatchDebounce,
		SkipHidden:  true,
		Exclude:     []string{cfg.Pipeline.WorkDir, cfg.Pipeline.OutputDir},
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	go func() {
		for p := range events {
			if err := queue.Enqueue(ctx, async.Job{Path: p, Root: cfg.Server.WatchDir}); err != nil {
				logger.Warn("watch.enqueue_failed", "file", p, "error", err)
			}
		}
	}()
	go func() {
		for err := range watchErrs {
			logger.Error("watch error", "error", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewAPI(orch, queue, cfg.Server.WatchDir, logger, apiOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	grpcSrv, health := server.NewGRPCServer(server.NewRedactorService(orch, ledgerAPI, logger))
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc serve error", "error", err)
			stop()
		}
	}()

	logger.Info("redactd started", "watch", cfg.Server.WatchDir, "output", cfg.Pipeline.OutputDir, "policy", policy)
	<-ctx.Done()

	logger.Info("shutting down")
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped", "stats", orch.Stats())
	return nil
}
