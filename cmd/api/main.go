package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/expense-tracker/internal/api"
	"github.com/dvloznov/expense-tracker/internal/api/handlers"
	"github.com/dvloznov/expense-tracker/internal/app"
	"github.com/dvloznov/expense-tracker/internal/config"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (default: ./config.yaml or ~/.expense-tracker/config.yaml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "expense-api: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.InitializeConfig(configFile)
	if err != nil {
		return err
	}

	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// Workers outlive the signal so in-flight jobs can finish during shutdown.
	workerCtx, cancelWorkers := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancelWorkers()

	// Ingest and export jobs use separate queues: ingest handlers publish
	// export jobs and must never wait on their own workers.
	jobStore := inmemory.NewStore()
	ingestQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)
	// One export worker keeps events for an entry in commit order.
	exportQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, 1, jobStore)

	var opts []pipeline.Option
	if cfg.Export.BigQuery.Enabled || cfg.Export.Notion.Enabled {
		opts = append(opts, pipeline.WithEventPublisher(jobs.NewEventPublisher(exportQueue)))
	}

	a, err := app.New(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	sinks, err := a.Sinks(ctx)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		log.Info().Str("sink", s.Name()).Msg("Export sink enabled")
	}

	dispatcher := jobs.NewDispatcher(log)
	dispatcher.Register(jobs.JobTypeIngestMessage, jobs.IngestHandler(a.Pipeline))
	dispatcher.Register(jobs.JobTypeExportEntry, jobs.ExportHandler(sinks...))

	if err := ingestQueue.Start(workerCtx, dispatcher.Handle); err != nil {
		return fmt.Errorf("start ingest workers: %w", err)
	}
	if err := exportQueue.Start(workerCtx, dispatcher.Handle); err != nil {
		return fmt.Errorf("start export workers: %w", err)
	}
	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Job workers started")

	handler := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(a.Pipeline, ingestQueue, log),
		Balance:      handlers.NewBalanceHandler(a.Pipeline, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Ping:         a.Store.Ping,
	}, log)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout() + cfg.ParseTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		// Ingest first: its jobs may still publish export events.
		if err := ingestQueue.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop ingest queue: %w", err))
		}
		if err := exportQueue.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop export queue: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}
