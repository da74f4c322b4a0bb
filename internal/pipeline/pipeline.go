package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/ledger"
	"github.com/dvloznov/expense-tracker/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config bounds message ingestion.
type Config struct {
	MinMessageLength int
	MaxMessageLength int
	ParseTimeout     time.Duration
}

// DefaultConfig returns the standard ingestion limits.
func DefaultConfig() Config {
	return Config{
		MinMessageLength: DefaultMinMessageLength,
		MaxMessageLength: DefaultMaxMessageLength,
		ParseTimeout:     DefaultParseTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinMessageLength <= 0 {
		c.MinMessageLength = d.MinMessageLength
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = d.MaxMessageLength
	}
	if c.ParseTimeout <= 0 {
		c.ParseTimeout = d.ParseTimeout
	}
	return c
}

// Outcome is the terminal result of processing one message.
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeParseFailed Outcome = "parse_failed"
)

// IngestResult describes what happened to a submitted message.
type IngestResult struct {
	Outcome Outcome                   `json:"outcome"`
	Message string                    `json:"message"`
	Record  *domain.TransactionRecord `json:"record,omitempty"`
	Parsed  *domain.ParsedTransaction `json:"parsed,omitempty"`
	Entry   *domain.LedgerEntry       `json:"transaction,omitempty"`
	Balance *domain.BalanceSnapshot   `json:"balance,omitempty"`
	Failure *domain.ParseFailure      `json:"failure,omitempty"`
}

// Success reports whether the message produced a ledger entry.
func (r *IngestResult) Success() bool {
	return r.Outcome == OutcomeProcessed
}

// MutationResult is returned by edits and deletions of auto-detected entries.
// Warning is set when the balance snapshot was missing and left unchanged.
type MutationResult struct {
	Message string                  `json:"message"`
	Entry   *domain.LedgerEntry     `json:"transaction"`
	Balance *domain.BalanceSnapshot `json:"balance,omitempty"`
	Warning string                  `json:"warning,omitempty"`
}

// Option configures a TransactionPipeline.
type Option func(*TransactionPipeline)

// WithEventPublisher sets where committed ledger changes are announced.
func WithEventPublisher(pub EventPublisher) Option {
	return func(p *TransactionPipeline) {
		if pub != nil {
			p.events = pub
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(p *TransactionPipeline) {
		p.now = now
	}
}

// WithIDGenerator overrides how record and entry ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(p *TransactionPipeline) {
		p.newID = newID
	}
}

// WithLocks shares a lock table between pipelines in the same process.
func WithLocks(locks *ledger.UserLocks) Option {
	return func(p *TransactionPipeline) {
		p.locks = locks
	}
}

// TransactionPipeline turns raw bank messages into audit records, ledger
// entries and balance changes, and handles user corrections to those entries.
// All writes for one user are serialized.
type TransactionPipeline struct {
	store  store.Store
	parser MessageParser
	ledger *ledger.Ledger
	locks  *ledger.UserLocks
	events EventPublisher
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// New wires a TransactionPipeline. A nil parser behaves as UnavailableParser.
func New(st store.Store, parser MessageParser, cfg Config, log zerolog.Logger, opts ...Option) *TransactionPipeline {
	if parser == nil {
		parser = UnavailableParser{}
	}
	p := &TransactionPipeline{
		store:  st,
		parser: parser,
		locks:  ledger.NewUserLocks(),
		events: noopPublisher{},
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ledger = ledger.New(p.now)
	return p
}

func (p *TransactionPipeline) ingestion() *Pipeline {
	return NewPipeline(
		&ValidateMessageStep{MinLength: p.cfg.MinMessageLength, MaxLength: p.cfg.MaxMessageLength},
		&DeduplicateStep{Records: p.store},
		&ParseStep{Parser: p.parser, Timeout: p.cfg.ParseTimeout},
		&CommitStep{Store: p.store, Ledger: p.ledger, Now: p.now, NewID: p.newID},
	)
}

// ValidateMessage applies the ingestion length rules without processing.
func (p *TransactionPipeline) ValidateMessage(message string) error {
	_, err := validateMessage(message, p.cfg.MinMessageLength, p.cfg.MaxMessageLength)
	return err
}

// IsDuplicate reports whether message was already submitted by userID.
func (p *TransactionPipeline) IsDuplicate(ctx context.Context, userID, message string) (bool, error) {
	msg, err := validateMessage(message, 1, p.cfg.MaxMessageLength)
	if err != nil {
		return false, err
	}
	rec, err := p.store.FindRecordByFingerprint(ctx, userID, domain.Fingerprint(msg))
	if err != nil {
		return false, domain.NewPersistenceError("checking duplicate", err)
	}
	return rec != nil, nil
}

// ProcessMessage runs one message through validation, duplicate detection,
// parsing and recording. Duplicates and parse failures are outcomes, not
// errors. Errors are validation and persistence failures. Cancelling ctx
// after the duplicate check does not stop the parse or its recording.
func (p *TransactionPipeline) ProcessMessage(ctx context.Context, userID, message string) (*IngestResult, error) {
	unlock := p.locks.Lock(userID)
	defer unlock()

	state := &IngestState{UserID: userID, Message: message}
	if err := p.ingestion().Execute(ctx, state); err != nil {
		p.log.Error().Err(err).
			Str("user_id", userID).
			Str("stage", string(state.Stage)).
			Msg("message ingestion failed")
		return nil, err
	}

	switch state.Stage {
	case StageDuplicate:
		p.log.Info().
			Str("user_id", userID).
			Str("fingerprint", state.Fingerprint).
			Msg("duplicate message skipped")
		return &IngestResult{Outcome: OutcomeDuplicate, Message: MessageDuplicate, Record: state.Record}, nil

	case StageFailureLogged:
		p.log.Warn().
			Str("user_id", userID).
			Str("record_id", state.Record.ID).
			Str("kind", string(state.Failure.Kind)).
			Str("reason", state.Failure.Reason).
			Msg("message could not be parsed")
		return &IngestResult{
			Outcome: OutcomeParseFailed,
			Message: MessageParseFailed,
			Record:  state.Record,
			Failure: state.Failure,
		}, nil

	case StageEntryCreated:
		p.log.Info().
			Str("user_id", userID).
			Str("entry_id", state.Entry.ID).
			Str("direction", string(state.Entry.Direction)).
			Str("amount", state.Entry.Amount.String()).
			Msg("transaction recorded")
		p.publish(ctx, domain.EntryCreated, state.Entry, state.Balance)
		return &IngestResult{
			Outcome: OutcomeProcessed,
			Message: successMessage(state.Entry),
			Record:  state.Record,
			Parsed:  state.Parsed,
			Entry:   state.Entry,
			Balance: state.Balance,
		}, nil
	}

	return nil, fmt.Errorf("ProcessMessage: unexpected final stage %q", state.Stage)
}

func successMessage(e *domain.LedgerEntry) string {
	return fmt.Sprintf("Transaction processed successfully! %s of %s from %s",
		e.Direction, e.Amount.StringFixed(2), e.MerchantOrSource)
}

// EditEntry changes an auto-detected entry and rebooks the balance by the
// amount difference. Entries of other users and manual entries are reported
// as domain.ErrEntryNotFound.
func (p *TransactionPipeline) EditEntry(ctx context.Context, userID, entryID string, upd domain.EntryUpdate) (*MutationResult, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(userID)
	defer unlock()

	var (
		result  MutationResult
		missing bool
	)
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.FindAutoEntry(ctx, userID, entryID)
		if err != nil {
			return domain.NewPersistenceError("loading entry", err)
		}
		if entry == nil {
			return domain.ErrEntryNotFound
		}

		updated, err := applyEntryUpdate(entry, upd)
		if err != nil {
			return err
		}
		updated.UpdatedAt = p.now()

		if !updated.Amount.Equal(entry.Amount) {
			snap, err := p.ledger.Adjust(ctx, tx, userID, entry.Direction, entry.Amount, updated.Amount)
			switch {
			case errors.Is(err, domain.ErrLedgerInconsistent):
				missing = true
			case err != nil:
				return domain.NewPersistenceError("adjusting balance", err)
			default:
				result.Balance = snap
			}
		}

		if err := tx.UpdateEntry(ctx, updated); err != nil {
			return domain.NewPersistenceError("updating entry", err)
		}
		result.Entry = updated
		return nil
	})
	if err != nil {
		return nil, classifyTxError("updating entry", err)
	}

	result.Message = MessageEntryUpdated
	if missing {
		result.Warning = MessageLedgerWarning
		p.log.Warn().Str("user_id", userID).Str("entry_id", entryID).Msg("balance snapshot missing on edit")
	}
	if result.Balance == nil && !missing {
		snap, err := p.store.GetBalance(ctx, userID)
		if err != nil {
			// The edit is committed; only the echoed balance is lost.
			p.log.Warn().Err(err).Str("user_id", userID).Str("entry_id", entryID).Msg("failed to read balance after edit")
		}
		result.Balance = snap
	}

	p.log.Info().Str("user_id", userID).Str("entry_id", entryID).Msg("transaction updated")
	p.publish(ctx, domain.EntryUpdated, result.Entry, result.Balance)
	return &result, nil
}

// DeleteEntry removes an auto-detected entry and reverses its effect on the
// balance. The audit record is kept, so the same message stays a duplicate.
func (p *TransactionPipeline) DeleteEntry(ctx context.Context, userID, entryID string) (*MutationResult, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(userID)
	defer unlock()

	var (
		result  MutationResult
		missing bool
	)
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.FindAutoEntry(ctx, userID, entryID)
		if err != nil {
			return domain.NewPersistenceError("loading entry", err)
		}
		if entry == nil {
			return domain.ErrEntryNotFound
		}

		snap, err := p.ledger.Reverse(ctx, tx, userID, entry.Amount, entry.Direction)
		switch {
		case errors.Is(err, domain.ErrLedgerInconsistent):
			missing = true
		case err != nil:
			return domain.NewPersistenceError("reversing balance", err)
		default:
			result.Balance = snap
		}

		if err := tx.DeleteEntry(ctx, userID, entryID); err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				return err
			}
			return domain.NewPersistenceError("deleting entry", err)
		}
		result.Entry = entry
		return nil
	})
	if err != nil {
		return nil, classifyTxError("deleting entry", err)
	}

	result.Message = MessageEntryDeleted
	if missing {
		result.Warning = MessageLedgerWarning
		p.log.Warn().Str("user_id", userID).Str("entry_id", entryID).Msg("balance snapshot missing on delete")
	}

	p.log.Info().Str("user_id", userID).Str("entry_id", entryID).Msg("transaction deleted")
	p.publish(ctx, domain.EntryDeleted, result.Entry, result.Balance)
	return &result, nil
}

// Balance returns the user's snapshot, or a zeroed one if nothing was booked yet.
func (p *TransactionPipeline) Balance(ctx context.Context, userID string) (*domain.BalanceSnapshot, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	snap, err := p.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("loading balance", err)
	}
	if snap == nil {
		snap = domain.NewBalanceSnapshot(userID, time.Time{})
	}
	return snap, nil
}

// ListAutoEntries pages through the user's auto-detected entries.
func (p *TransactionPipeline) ListAutoEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryPage, error) {
	if err := validateUserID(filter.UserID); err != nil {
		return nil, err
	}
	if filter.Month < 0 || filter.Month > 12 {
		return nil, domain.NewValidationError("month", "month must be between 1 and 12")
	}
	if filter.Month != 0 && filter.Year == 0 {
		filter.Year = p.now().Year()
	}
	page, err := p.store.ListAutoEntries(ctx, filter.Normalize())
	if err != nil {
		return nil, domain.NewPersistenceError("listing entries", err)
	}
	return page, nil
}

// ListRecords pages through the user's audit records.
func (p *TransactionPipeline) ListRecords(ctx context.Context, userID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	f := domain.EntryFilter{Limit: limit, Offset: offset}.Normalize()
	records, err := p.store.ListRecords(ctx, userID, f.Limit, f.Offset)
	if err != nil {
		return nil, domain.NewPersistenceError("listing records", err)
	}
	return records, nil
}

// Statistics aggregates the current calendar month.
func (p *TransactionPipeline) Statistics(ctx context.Context, userID string) (*domain.MonthlyStatistics, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	stats, err := p.store.MonthlyStatistics(ctx, userID, p.now())
	if err != nil {
		return nil, domain.NewPersistenceError("computing statistics", err)
	}
	return stats, nil
}

// classifyTxError keeps domain errors as they are and marks everything else,
// such as a failed commit, as a persistence failure.
func classifyTxError(op string, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) || errors.Is(err, domain.ErrEntryNotFound) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}

func (p *TransactionPipeline) publish(ctx context.Context, typ domain.EntryEventType, entry *domain.LedgerEntry, balance *domain.BalanceSnapshot) {
	if entry == nil {
		return
	}
	event := domain.EntryEvent{
		Type:       typ,
		Entry:      *entry,
		Balance:    balance,
		OccurredAt: p.now(),
	}
	// The change is committed, so the event goes out even if the caller left.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.events.PublishEntryEvent(pubCtx, event); err != nil {
		p.log.Error().Err(err).
			Str("entry_id", entry.ID).
			Str("event", string(typ)).
			Msg("failed to publish entry event")
	}
}
