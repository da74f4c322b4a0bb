package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the money flow of a transaction relative to the user.
type Direction string

const (
	// DirectionCredit increases the balance.
	DirectionCredit Direction = "Credit"
	// DirectionDebit decreases the balance.
	DirectionDebit Direction = "Debit"
)

// ParseDirection accepts "credit" or "debit" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit":
		return DirectionCredit, nil
	case "debit":
		return DirectionDebit, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Kind maps a direction to the entry kind it produces.
func (d Direction) Kind() EntryKind {
	if d == DirectionCredit {
		return KindIncome
	}
	return KindExpense
}

// EntryKind distinguishes expense entries from income entries.
type EntryKind string

const (
	KindExpense EntryKind = "Expense"
	KindIncome  EntryKind = "Income"
)

// Category is one of the fixed expense categories.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTravel        Category = "Travel"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"

	// FallbackCategory is used when the parser suggests something outside the set.
	FallbackCategory = CategoryOther
)

// Categories lists the closed category set in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTravel,
	CategoryShopping,
	CategoryBills,
	CategoryEntertainment,
	CategoryHealth,
	CategoryOther,
}

// LookupCategory finds a category by case-insensitive name.
func LookupCategory(name string) (Category, bool) {
	n := strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), n) {
			return c, true
		}
	}
	return "", false
}

// CoerceCategory returns the matching category or FallbackCategory.
func CoerceCategory(name string) Category {
	if c, ok := LookupCategory(name); ok {
		return c
	}
	return FallbackCategory
}

// RecordStatus is the processing state of an audit record.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordProcessed RecordStatus = "processed"
	RecordError     RecordStatus = "error"
)

// ParsedTransaction is the validated structured content of one message.
type ParsedTransaction struct {
	Direction        Direction       `json:"transaction_type"`
	Amount           decimal.Decimal `json:"amount"`
	MerchantOrSource string          `json:"merchant_or_source"`
	Category         Category        `json:"expense_category"`
}

// TransactionRecord is the audit row kept for every accepted message,
// whether parsing succeeded or not.
type TransactionRecord struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	RawMessage     string             `json:"raw_message"`
	Fingerprint    string             `json:"fingerprint"`
	Status         RecordStatus       `json:"status"`
	ErrorReason    string             `json:"error_reason,omitempty"`
	Parsed         *ParsedTransaction `json:"parsed,omitempty"`
	RawModelOutput string             `json:"raw_model_output,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	ProcessedAt    *time.Time         `json:"processed_at,omitempty"`
}

// LedgerEntry is an expense or income derived from a message or entered manually.
type LedgerEntry struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Direction         Direction       `json:"transaction_type"`
	Kind              EntryKind       `json:"kind"`
	MerchantOrSource  string          `json:"merchant_or_source"`
	Category          Category        `json:"category,omitempty"`
	Description       string          `json:"description"`
	IsAutoDetected    bool            `json:"is_auto_detected"`
	SourceFingerprint string          `json:"source_fingerprint,omitempty"`
	OccurredOn        time.Time       `json:"occurred_on"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AutoDescription is the description given to entries created from messages.
func AutoDescription(merchant string) string {
	return "Auto: " + merchant
}

// NewAutoEntry derives the ledger entry for a successfully parsed message.
// Category is kept only for debits.
func NewAutoEntry(id, userID, fingerprint string, p *ParsedTransaction, now time.Time) *LedgerEntry {
	e := &LedgerEntry{
		ID:                id,
		UserID:            userID,
		Amount:            p.Amount,
		Direction:         p.Direction,
		Kind:              p.Direction.Kind(),
		MerchantOrSource:  p.MerchantOrSource,
		Description:       AutoDescription(p.MerchantOrSource),
		IsAutoDetected:    true,
		SourceFingerprint: fingerprint,
		OccurredOn:        DateOf(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.Direction == DirectionDebit {
		e.Category = p.Category
	}
	return e
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EntryUpdate carries the fields a user may change on an auto-detected entry.
// Nil fields are left untouched.
type EntryUpdate struct {
	Amount           *decimal.Decimal
	Category         *Category
	Description      *string
	MerchantOrSource *string
}

// Empty reports whether the update changes nothing.
func (u EntryUpdate) Empty() bool {
	return u.Amount == nil && u.Category == nil && u.Description == nil && u.MerchantOrSource == nil
}

// EntryFilter narrows listings of auto-detected entries.
type EntryFilter struct {
	UserID string
	Month  int
	Year   int
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Normalize clamps limit and offset into their allowed ranges.
func (f EntryFilter) Normalize() EntryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// EntryPage is one page of a listing plus the unpaginated total.
type EntryPage struct {
	Entries []*LedgerEntry `json:"transactions"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// MonthlyStatistics aggregates one calendar month of entries.
type MonthlyStatistics struct {
	Year                int             `json:"year"`
	Month               int             `json:"month"`
	AutoExpenseAmount   decimal.Decimal `json:"auto_detected_amount"`
	AutoExpenseCount    int             `json:"auto_detected_count"`
	ManualExpenseAmount decimal.Decimal `json:"manual_amount"`
	ManualExpenseCount  int             `json:"manual_count"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	TotalIncome         decimal.Decimal `json:"total_income"`
	Savings             decimal.Decimal `json:"savings"`
}

// Finalize derives totals from the per-source amounts.
func (s *MonthlyStatistics) Finalize() {
	s.TotalExpenses = s.AutoExpenseAmount.Add(s.ManualExpenseAmount)
	s.Savings = s.TotalIncome.Sub(s.TotalExpenses)
}
