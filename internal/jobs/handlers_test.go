package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(ctx context.Context, userID, message string) (*pipeline.IngestResult, error)

func (f processorFunc) ProcessMessage(ctx context.Context, userID, message string) (*pipeline.IngestResult, error) {
	return f(ctx, userID, message)
}

type fakeSink struct {
	name   string
	err    error
	events []domain.EntryEvent
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) ExportEntryEvent(ctx context.Context, event domain.EntryEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type capturePublisher struct {
	jobs []*Job
}

func (c *capturePublisher) Publish(ctx context.Context, job *Job) error {
	c.jobs = append(c.jobs, job)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	called := false
	d.Register(JobTypeExportEntry, func(ctx context.Context, job *Job) error {
		called = true
		return nil
	})

	require.NoError(t, d.Handle(context.Background(), &Job{Type: JobTypeExportEntry}))
	assert.True(t, called)

	err := d.Handle(context.Background(), &Job{Type: "reindex"})
	assert.ErrorContains(t, err, "reindex")
}

func TestDispatcher_JobLoggerInContext(t *testing.T) {
	buf := &bytes.Buffer{}
	d := NewDispatcher(zerolog.New(buf))
	d.Register(JobTypeIngestMessage, func(ctx context.Context, job *Job) error {
		log := logger.FromContext(ctx)
		log.Info().Msg("parsing")
		return nil
	})

	require.NoError(t, d.Handle(context.Background(), &Job{JobID: "j-42", Type: JobTypeIngestMessage, UserID: "u1"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		assert.Equal(t, "j-42", got["job_id"])
		assert.Equal(t, "u1", got["user_id"])
		assert.Equal(t, string(JobTypeIngestMessage), got["type"])
	}
	assert.Contains(t, lines[0], "parsing")
	assert.Contains(t, lines[1], "job handled")
}

func TestIngestHandler(t *testing.T) {
	h := IngestHandler(processorFunc(func(ctx context.Context, userID, message string) (*pipeline.IngestResult, error) {
		assert.Equal(t, "u1", userID)
		assert.Equal(t, "Rs 10 paid at Cafe", message)
		return &pipeline.IngestResult{Outcome: pipeline.OutcomeDuplicate, Message: pipeline.MessageDuplicate}, nil
	}))

	job := &Job{Type: JobTypeIngestMessage, UserID: "u1", Message: "Rs 10 paid at Cafe"}
	require.NoError(t, h(context.Background(), job))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(job.Result, &got))
	assert.Equal(t, "duplicate", got["outcome"])
}

func TestIngestHandler_ResultKeepsFailureKind(t *testing.T) {
	tests := []struct {
		kind      domain.ParseFailureKind
		retryable bool
	}{
		{domain.ParseUnavailable, true},
		{domain.ParseTimeout, true},
		{domain.ParseMalformed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			h := IngestHandler(processorFunc(func(ctx context.Context, userID, message string) (*pipeline.IngestResult, error) {
				return &pipeline.IngestResult{
					Outcome: pipeline.OutcomeParseFailed,
					Message: pipeline.MessageParseFailed,
					Failure: domain.NewParseFailure(tt.kind, "no answer", errors.New("dial tcp: refused")),
				}, nil
			}))

			job := &Job{Type: JobTypeIngestMessage, UserID: "u1", Message: "Rs 10 paid at Cafe"}
			require.NoError(t, h(context.Background(), job))

			var got struct {
				Outcome string `json:"outcome"`
				Failure struct {
					Kind      string `json:"kind"`
					Reason    string `json:"reason"`
					Retryable bool   `json:"retryable"`
				} `json:"failure"`
			}
			require.NoError(t, json.Unmarshal(job.Result, &got))
			assert.Equal(t, "parse_failed", got.Outcome)
			assert.Equal(t, string(tt.kind), got.Failure.Kind)
			assert.Equal(t, "no answer", got.Failure.Reason)
			assert.Equal(t, tt.retryable, got.Failure.Retryable)
			assert.NotContains(t, string(job.Result), "dial tcp")
		})
	}
}

func TestIngestHandler_Error(t *testing.T) {
	boom := errors.New("database is locked")
	h := IngestHandler(processorFunc(func(ctx context.Context, userID, message string) (*pipeline.IngestResult, error) {
		return nil, boom
	}))

	job := &Job{Type: JobTypeIngestMessage}
	assert.ErrorIs(t, h(context.Background(), job), boom)
	assert.Nil(t, job.Result)
}

func TestExportHandler(t *testing.T) {
	ok := &fakeSink{name: "bigquery"}
	bad := &fakeSink{name: "notion", err: errors.New("rate limited")}
	h := ExportHandler(ok, bad)

	event := &domain.EntryEvent{Type: domain.EntryCreated, Entry: domain.LedgerEntry{ID: "e1"}}
	err := h(context.Background(), &Job{Type: JobTypeExportEntry, Event: event})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limited")
	assert.Len(t, ok.events, 1)
	assert.Len(t, bad.events, 1)

	assert.Error(t, h(context.Background(), &Job{JobID: "j1", Type: JobTypeExportEntry}))
}

func TestEventPublisher(t *testing.T) {
	pub := &capturePublisher{}
	ep := NewEventPublisher(pub)

	event := domain.EntryEvent{Type: domain.EntryDeleted, Entry: domain.LedgerEntry{ID: "e1", UserID: "u1"}}
	require.NoError(t, ep.PublishEntryEvent(context.Background(), event))

	require.Len(t, pub.jobs, 1)
	job := pub.jobs[0]
	assert.Equal(t, JobTypeExportEntry, job.Type)
	assert.Equal(t, "u1", job.UserID)
	require.NotNil(t, job.Event)
	assert.Equal(t, "e1", job.Event.Entry.ID)
}

func TestDefaultMaxRetries(t *testing.T) {
	assert.Zero(t, DefaultMaxRetries(JobTypeIngestMessage))
	assert.Equal(t, 3, DefaultMaxRetries(JobTypeExportEntry))
}
