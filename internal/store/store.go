package store

import (
	"context"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// RecordReader looks up audit records. Used by the duplicate guard.
type RecordReader interface {
	// FindRecordByFingerprint returns nil, nil when no record exists.
	FindRecordByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.TransactionRecord, error)
}

// BalanceStore reads and writes the per-user balance snapshot.
type BalanceStore interface {
	// GetBalance returns nil, nil when the user has no snapshot yet.
	GetBalance(ctx context.Context, userID string) (*domain.BalanceSnapshot, error)

	// SaveBalance inserts or replaces the user's snapshot.
	SaveBalance(ctx context.Context, snapshot *domain.BalanceSnapshot) error
}

// Tx is the set of operations available inside a single unit of work.
// Everything done through a Tx commits or rolls back together.
type Tx interface {
	RecordReader
	BalanceStore

	// InsertRecord inserts an audit record. A (user, fingerprint) collision
	// returns an error matching domain.ErrDuplicateMessage.
	InsertRecord(ctx context.Context, record *domain.TransactionRecord) error

	// InsertEntry inserts a ledger entry.
	InsertEntry(ctx context.Context, entry *domain.LedgerEntry) error

	// FindAutoEntry returns the auto-detected entry with id owned by userID,
	// or nil, nil.
	FindAutoEntry(ctx context.Context, userID, entryID string) (*domain.LedgerEntry, error)

	// UpdateEntry overwrites the mutable fields of an entry.
	UpdateEntry(ctx context.Context, entry *domain.LedgerEntry) error

	// DeleteEntry removes an entry. The audit record is never touched.
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// Store is the persistence surface consumed by the transaction pipeline.
type Store interface {
	RecordReader

	// WithTx runs fn inside a transaction. fn returning an error rolls back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetBalance returns nil, nil when the user has no snapshot yet.
	GetBalance(ctx context.Context, userID string) (*domain.BalanceSnapshot, error)

	// ListAutoEntries pages through auto-detected entries, newest first.
	ListAutoEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryPage, error)

	// ListRecords pages through audit records, newest first.
	ListRecords(ctx context.Context, userID string, limit, offset int) ([]*domain.TransactionRecord, error)

	// MonthlyStatistics aggregates entries for the month containing at.
	MonthlyStatistics(ctx context.Context, userID string, at time.Time) (*domain.MonthlyStatistics, error)
}
