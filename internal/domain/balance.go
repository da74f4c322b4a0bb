package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the running balance of a single user.
type BalanceSnapshot struct {
	UserID         string          `json:"user_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// NewBalanceSnapshot returns a zeroed snapshot for userID.
func NewBalanceSnapshot(userID string, now time.Time) *BalanceSnapshot {
	return &BalanceSnapshot{
		UserID:         userID,
		CurrentBalance: decimal.Zero,
		TotalCredits:   decimal.Zero,
		TotalDebits:    decimal.Zero,
		LastUpdated:    now,
	}
}

// Apply records amount moving in direction d.
func (b *BalanceSnapshot) Apply(amount decimal.Decimal, d Direction, now time.Time) {
	switch d {
	case DirectionCredit:
		b.CurrentBalance = b.CurrentBalance.Add(amount)
		b.TotalCredits = b.TotalCredits.Add(amount)
	case DirectionDebit:
		b.CurrentBalance = b.CurrentBalance.Sub(amount)
		b.TotalDebits = b.TotalDebits.Add(amount)
	}
	b.LastUpdated = now
}

// Reverse undoes a previous Apply with the same arguments.
func (b *BalanceSnapshot) Reverse(amount decimal.Decimal, d Direction, now time.Time) {
	b.Apply(amount.Neg(), d, now)
}

// Adjust moves an entry of direction d from oldAmount to newAmount.
// It is equivalent to Reverse(oldAmount) followed by Apply(newAmount).
func (b *BalanceSnapshot) Adjust(d Direction, oldAmount, newAmount decimal.Decimal, now time.Time) {
	b.Apply(newAmount.Sub(oldAmount), d, now)
}

// Consistent reports whether the balance equals credits minus debits.
func (b *BalanceSnapshot) Consistent() bool {
	return b.CurrentBalance.Equal(b.TotalCredits.Sub(b.TotalDebits))
}
