package domain

import "time"

// EntryEventType names a committed change to a ledger entry.
type EntryEventType string

const (
	EntryCreated EntryEventType = "created"
	EntryUpdated EntryEventType = "updated"
	EntryDeleted EntryEventType = "deleted"
)

// EntryEvent is emitted after a ledger change has been committed.
// Balance is nil when the snapshot was missing.
type EntryEvent struct {
	Type       EntryEventType   `json:"type"`
	Entry      LedgerEntry      `json:"entry"`
	Balance    *BalanceSnapshot `json:"balance,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
