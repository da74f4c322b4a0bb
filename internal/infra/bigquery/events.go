package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/expense-tracker/internal/domain"
)

// LedgerEventRow is one committed ledger change in the ledger_events table.
type LedgerEventRow struct {
	EventID   string `bigquery:"event_id"`   // REQUIRED
	EventType string `bigquery:"event_type"` // REQUIRED: created | updated | deleted

	UserID  string `bigquery:"user_id"`  // REQUIRED
	EntryID string `bigquery:"entry_id"` // REQUIRED

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC
	Direction string   `bigquery:"direction"` // REQUIRED
	Kind      string   `bigquery:"kind"`      // REQUIRED

	MerchantOrSource string              `bigquery:"merchant_or_source"`
	Category         bigquery.NullString `bigquery:"category"` // NULLABLE, debits only
	Description      string              `bigquery:"description"`
	IsAutoDetected   bool                `bigquery:"is_auto_detected"`

	OccurredOn civil.Date `bigquery:"occurred_on"` // REQUIRED

	BalanceAfter *big.Rat `bigquery:"balance_after"` // NULLABLE NUMERIC

	EventTS time.Time `bigquery:"event_ts"` // REQUIRED
}

// eventSchema is inferred once from the row type.
var eventSchema = func() bigquery.Schema {
	s, err := bigquery.InferSchema(LedgerEventRow{})
	if err != nil {
		panic(fmt.Sprintf("bigquery: infer ledger event schema: %v", err))
	}
	return s
}()

// EventID is stable for a given change so retried exports dedupe on insert.
func EventID(event domain.EntryEvent) string {
	return fmt.Sprintf("%s:%s:%d", event.Entry.ID, event.Type, event.OccurredAt.UnixNano())
}

// NewLedgerEventRow maps a domain event to its table row.
func NewLedgerEventRow(event domain.EntryEvent) *LedgerEventRow {
	e := event.Entry
	row := &LedgerEventRow{
		EventID:          EventID(event),
		EventType:        string(event.Type),
		UserID:           e.UserID,
		EntryID:          e.ID,
		Amount:           e.Amount.Rat(),
		Direction:        string(e.Direction),
		Kind:             string(e.Kind),
		MerchantOrSource: e.MerchantOrSource,
		Description:      e.Description,
		IsAutoDetected:   e.IsAutoDetected,
		OccurredOn:       civil.DateOf(e.OccurredOn.UTC()),
		EventTS:          event.OccurredAt.UTC(),
	}
	if e.Category != "" {
		row.Category = bigquery.NullString{StringVal: string(e.Category), Valid: true}
	}
	if event.Balance != nil {
		row.BalanceAfter = event.Balance.CurrentBalance.Rat()
	}
	return row
}
