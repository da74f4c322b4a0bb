package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/ledger"
	"github.com/dvloznov/expense-tracker/internal/store"
)

// Stage tracks how far a message got through ingestion.
type Stage string

const (
	StageReceived      Stage = "received"
	StageValidated     Stage = "validated"
	StageDuplicate     Stage = "duplicate"
	StageParsed        Stage = "parsed"
	StageParseFailed   Stage = "parse_failed"
	StageRecorded      Stage = "recorded"
	StageEntryCreated  Stage = "entry_created"
	StageFailureLogged Stage = "failure_recorded"
)

// PipelineStep represents a single step in message ingestion.
type PipelineStep interface {
	Execute(ctx context.Context, state *IngestState) error
}

// IngestState holds the shared state across all ingestion steps.
type IngestState struct {
	UserID      string
	Message     string
	Fingerprint string
	Stage       Stage

	RawOutput string
	Parsed    *domain.ParsedTransaction
	Failure   *domain.ParseFailure

	Record  *domain.TransactionRecord
	Entry   *domain.LedgerEntry
	Balance *domain.BalanceSnapshot

	// Done stops the pipeline after the current step.
	Done bool
}

// Step 1: ValidateMessageStep trims the message, checks its length and
// computes the fingerprint.
type ValidateMessageStep struct {
	MinLength int
	MaxLength int
}

func (s *ValidateMessageStep) Execute(ctx context.Context, state *IngestState) error {
	if err := validateUserID(state.UserID); err != nil {
		return err
	}
	msg, err := validateMessage(state.Message, s.MinLength, s.MaxLength)
	if err != nil {
		return err
	}
	state.Message = msg
	state.Fingerprint = domain.Fingerprint(msg)
	state.Stage = StageValidated
	return nil
}

// Step 2: DeduplicateStep stops the pipeline if the fingerprint was seen
// before for this user, whatever the earlier outcome was.
type DeduplicateStep struct {
	Records store.RecordReader
}

func (s *DeduplicateStep) Execute(ctx context.Context, state *IngestState) error {
	existing, err := s.Records.FindRecordByFingerprint(ctx, state.UserID, state.Fingerprint)
	if err != nil {
		return domain.NewPersistenceError("checking duplicate", err)
	}
	if existing != nil {
		state.Record = existing
		state.Stage = StageDuplicate
		state.Done = true
	}
	return nil
}

// Step 3: ParseStep asks the parser for a structured transaction. Parser
// failures are kept in state so the next step can record them.
//
// Once a message got past the duplicate check its parse runs to completion:
// only Timeout bounds the model call, a cancelled caller does not.
type ParseStep struct {
	Parser  MessageParser
	Timeout time.Duration
}

func (s *ParseStep) Execute(ctx context.Context, state *IngestState) error {
	parseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()

	raw, err := s.Parser.ParseMessage(parseCtx, state.Message)
	if err != nil {
		kind := domain.ParseUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(parseCtx.Err(), context.DeadlineExceeded) {
			kind = domain.ParseTimeout
		}
		state.Failure = domain.NewParseFailure(kind, err.Error(), err)
		state.Stage = StageParseFailed
		return nil
	}

	state.RawOutput = raw
	parsed, err := decodeParsedTransaction(raw)
	if err != nil {
		var pf *domain.ParseFailure
		if !errors.As(err, &pf) {
			pf = domain.NewParseFailure(domain.ParseMalformed, err.Error(), err)
		}
		state.Failure = pf
		state.Stage = StageParseFailed
		return nil
	}

	state.Parsed = parsed
	state.Stage = StageParsed
	return nil
}

// Step 4: CommitStep writes the outcome in one unit of work. A parsed message
// gets its audit record, the balance change and the ledger entry together. A
// failed parse gets an error record only.
type CommitStep struct {
	Store  store.Store
	Ledger *ledger.Ledger
	Now    func() time.Time
	NewID  func() string
}

func (s *CommitStep) Execute(ctx context.Context, state *IngestState) error {
	// The parse already happened; its outcome is recorded even if the caller left.
	ctx = context.WithoutCancel(ctx)
	now := s.Now()
	record := &domain.TransactionRecord{
		ID:             s.NewID(),
		UserID:         state.UserID,
		RawMessage:     state.Message,
		Fingerprint:    state.Fingerprint,
		Status:         domain.RecordPending,
		RawModelOutput: state.RawOutput,
		CreatedAt:      now,
	}

	if state.Failure != nil {
		record.Status = domain.RecordError
		record.ErrorReason = fmt.Sprintf(parseFailureReasonFmt, state.Failure.Reason)
		processedAt := now
		record.ProcessedAt = &processedAt
		return s.commit(ctx, state, record, nil, StageFailureLogged)
	}

	if state.Parsed == nil {
		return fmt.Errorf("CommitStep: nothing to commit at stage %s", state.Stage)
	}

	record.Status = domain.RecordProcessed
	record.Parsed = state.Parsed
	processedAt := now
	record.ProcessedAt = &processedAt

	entry := domain.NewAutoEntry(s.NewID(), state.UserID, state.Fingerprint, state.Parsed, now)
	return s.commit(ctx, state, record, entry, StageEntryCreated)
}

func (s *CommitStep) commit(ctx context.Context, state *IngestState, record *domain.TransactionRecord, entry *domain.LedgerEntry, final Stage) error {
	var balance *domain.BalanceSnapshot
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertRecord(ctx, record); err != nil {
			return err
		}
		state.Stage = StageRecorded
		if entry == nil {
			return nil
		}

		snap, err := s.Ledger.Apply(ctx, tx, entry.UserID, entry.Amount, entry.Direction)
		if err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		balance = snap
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateMessage) {
			// Lost a race with another process holding the same message.
			state.Stage = StageDuplicate
			state.Done = true
			return nil
		}
		state.Stage = StageParsed
		if state.Failure != nil {
			state.Stage = StageParseFailed
		}
		return domain.NewPersistenceError("recording message", err)
	}

	state.Record = record
	state.Entry = entry
	state.Balance = balance
	state.Stage = final
	state.Done = true
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially until one fails or marks the state done.
// Step errors are returned as is so callers can classify them.
func (p *Pipeline) Execute(ctx context.Context, state *IngestState) error {
	if state.Stage == "" {
		state.Stage = StageReceived
	}
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
		if state.Done {
			return nil
		}
	}
	return nil
}
