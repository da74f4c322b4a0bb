package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/rs/zerolog"
)

// MessageProcessor is the part of the pipeline ingest jobs need.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, userID, message string) (*pipeline.IngestResult, error)
}

// EntrySink receives committed ledger changes, e.g. an analytics table.
type EntrySink interface {
	// Name identifies the sink in logs.
	Name() string
	ExportEntryEvent(ctx context.Context, event domain.EntryEvent) error
}

// Dispatcher routes jobs to the handler registered for their type.
type Dispatcher struct {
	handlers map[JobType]JobHandler
	log      zerolog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[JobType]JobHandler),
		log:      log.With().Str("component", "jobs").Logger(),
	}
}

// Register sets the handler for a job type.
func (d *Dispatcher) Register(t JobType, h JobHandler) {
	d.handlers[t] = h
}

// Handle is a JobHandler that dispatches on job.Type.
func (d *Dispatcher) Handle(ctx context.Context, job *Job) error {
	h, ok := d.handlers[job.Type]
	if !ok {
		return fmt.Errorf("Dispatcher.Handle: no handler for job type %q", job.Type)
	}

	log := logger.WithFields(d.log, map[string]interface{}{
		"job_id":  job.JobID,
		"type":    string(job.Type),
		"user_id": job.UserID,
	})

	err := h(logger.WithContext(ctx, log), job)
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("retry", job.RetryCount).Msg("job handled")
	return err
}

// IngestHandler processes ingest jobs and stores the outcome as the job result.
// Duplicates and parse failures complete the job; only hard errors fail it.
func IngestHandler(p MessageProcessor) JobHandler {
	return func(ctx context.Context, job *Job) error {
		res, err := p.ProcessMessage(ctx, job.UserID, job.Message)
		if err != nil {
			return fmt.Errorf("IngestHandler: %w", err)
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("IngestHandler: encode result: %w", err)
		}
		job.Result = raw
		return nil
	}
}

// ExportHandler sends the job's event to every sink. Sinks must tolerate
// receiving the same event again when the job is retried.
func ExportHandler(sinks ...EntrySink) JobHandler {
	return func(ctx context.Context, job *Job) error {
		if job.Event == nil {
			return fmt.Errorf("ExportHandler: job %s has no event", job.JobID)
		}
		var errs []error
		for _, s := range sinks {
			if err := s.ExportEntryEvent(ctx, *job.Event); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
		return errors.Join(errs...)
	}
}

// EventPublisher turns ledger events into export jobs. It satisfies
// pipeline.EventPublisher.
type EventPublisher struct {
	pub Publisher
}

// NewEventPublisher wraps a job publisher.
func NewEventPublisher(pub Publisher) *EventPublisher {
	return &EventPublisher{pub: pub}
}

// PublishEntryEvent enqueues an export job for event.
func (e *EventPublisher) PublishEntryEvent(ctx context.Context, event domain.EntryEvent) error {
	ev := event
	return e.pub.Publish(ctx, &Job{
		Type:   JobTypeExportEntry,
		UserID: event.Entry.UserID,
		Event:  &ev,
	})
}

var _ pipeline.EventPublisher = (*EventPublisher)(nil)
