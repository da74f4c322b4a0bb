// Package app wires configuration into the storage, parser, pipeline and
// export sinks shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/config"
	infraBQ "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/infra/sqlite"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/rs/zerolog"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Store    *sqlite.Store
	Pipeline *pipeline.TransactionPipeline

	closers []func() error
}

// New opens and migrates the database, builds the parser and the pipeline.
// Without a Gemini API key the pipeline still runs; every message is then
// recorded as a retryable parse failure.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...pipeline.Option) (*App, error) {
	a := &App{Config: cfg, Log: log}

	st, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	applied, err := st.Migrate(ctx, "expense-tracker")
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	for _, m := range applied {
		log.Info().Str("migration", m.Name).Msg("Applied migration")
	}

	var parser pipeline.MessageParser
	gemini, err := pipeline.NewGeminiParser(ctx, cfg.Parser.APIKey, cfg.Parser.Model)
	switch {
	case errors.Is(err, pipeline.ErrParserNotConfigured):
		log.Warn().Msg("GEMINI_API_KEY not set - messages will be recorded as parse failures")
	case err != nil:
		_ = a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	default:
		parser = gemini
	}

	a.Pipeline = pipeline.New(st, parser, pipeline.Config{
		MinMessageLength: cfg.Ingestion.MinMessageLength,
		MaxMessageLength: cfg.Ingestion.MaxMessageLength,
		ParseTimeout:     cfg.ParseTimeout(),
	}, log, opts...)

	return a, nil
}

// Sinks builds the enabled export sinks.
func (a *App) Sinks(ctx context.Context) ([]jobs.EntrySink, error) {
	var sinks []jobs.EntrySink

	if bq := a.Config.Export.BigQuery; bq.Enabled {
		exporter, err := a.LedgerEventExporter(ctx)
		if err != nil {
			return nil, err
		}
		if err := exporter.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("Sinks: %w", err)
		}
		sinks = append(sinks, exporter)
	}

	if n := a.Config.Export.Notion; n.Enabled {
		sinks = append(sinks, notionsync.NewEntryMirror(notionsync.NewNotionClient(n.Token, n.DatabaseID)))
	}

	return sinks, nil
}

// LedgerEventExporter opens the BigQuery ledger_events table. The client is
// closed with the App.
func (a *App) LedgerEventExporter(ctx context.Context) (*infraBQ.LedgerEventExporter, error) {
	bq := a.Config.Export.BigQuery
	if bq.ProjectID == "" {
		return nil, fmt.Errorf("LedgerEventExporter: export.bigquery.project_id is not set")
	}
	exporter, err := infraBQ.NewLedgerEventExporter(ctx, bq.ProjectID, bq.Dataset, bq.Table)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, exporter.Close)
	return exporter, nil
}

// Close releases everything New and Sinks opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
