package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/config"
	"github.com/raphaelgruber/profiled-go/internal/db"
	"github.com/raphaelgruber/profiled-go/internal/llm"
	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/raphaelgruber/profiled-go/internal/server"
	"github.com/raphaelgruber/profiled-go/internal/service"
	"github.com/spf13/cobra"
)

var wipeDB bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profiled API server",
	Long: `Run the HTTP API server that accepts job triggers, processes
conversations in the background and serves profiles.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&wipeDB, "wipe", false, "wipe all data from database on startup (testing only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	logger.Info("starting profiled", "version", Version, "addr", cfg.ListenAddr)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbClient, err := db.NewClient(initCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if err := dbClient.InitSchema(initCtx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	if wipeDB || os.Getenv("PROFILED_WIPE_DB") == "true" {
		if err := dbClient.WipeData(initCtx); err != nil {
			return fmt.Errorf("wipe database: %w", err)
		}
	}

	model, err := llm.NewModel(initCtx, cfg)
	if err != nil {
		return fmt.Errorf("init LLM: %w", err)
	}
	logger.Info("LLM ready", "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	collector := metrics.NewCollector()
	dbClient.WithMetrics(collector)
	pipelineCfg := service.Config{
		BatchSize:        cfg.BatchSize,
		SettleDelay:      cfg.SettleDelay,
		ExtractionDelay:  cfg.ExtractionDelay,
		MaxTokensPerConv: cfg.MaxTokensPerConv,
	}
	pipeline := service.NewPipeline(dbClient, model, pipelineCfg, collector, logger)
	if cfg.SummaryModel != cfg.LLMModel {
		summaryCfg := cfg
		summaryCfg.LLMModel = cfg.SummaryModel
		summaryModel, err := llm.NewModel(initCtx, summaryCfg)
		if err != nil {
			return fmt.Errorf("init summary LLM: %w", err)
		}
		pipeline = pipeline.WithSummaryCompleter(summaryModel)
	}
	jobs := service.NewJobManager(dbClient, pipeline, pipelineCfg, logger)

	srv := server.New(jobs, dbClient, collector, logger, Version)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM. In-flight jobs are detached from
	// request contexts, so a restart only loses jobs mid-batch; the ledger
	// makes the rerun pick up where they stopped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
