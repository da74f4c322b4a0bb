package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/store"
	"github.com/shopspring/decimal"
)

// Ledger maintains the per-user balance snapshot. Every method works on the
// BalanceStore it is given, so callers decide which transaction the change
// belongs to.
type Ledger struct {
	now func() time.Time
}

// New creates a Ledger that stamps snapshots with now, or time.Now when nil.
func New(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Apply books amount in direction d, creating a zeroed snapshot on first use.
func (l *Ledger) Apply(ctx context.Context, bs store.BalanceStore, userID string, amount decimal.Decimal, d domain.Direction) (*domain.BalanceSnapshot, error) {
	if err := checkAmount(amount, d); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	snap, err := bs.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Apply: loading balance: %w", err)
	}
	now := l.now()
	if snap == nil {
		snap = domain.NewBalanceSnapshot(userID, now)
	}

	snap.Apply(amount, d, now)
	if err := bs.SaveBalance(ctx, snap); err != nil {
		return nil, fmt.Errorf("Apply: saving balance: %w", err)
	}
	return snap, nil
}

// Reverse undoes an earlier Apply. A missing snapshot returns
// domain.ErrLedgerInconsistent and changes nothing.
func (l *Ledger) Reverse(ctx context.Context, bs store.BalanceStore, userID string, amount decimal.Decimal, d domain.Direction) (*domain.BalanceSnapshot, error) {
	if err := checkAmount(amount, d); err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}

	snap, err := bs.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Reverse: loading balance: %w", err)
	}
	if snap == nil {
		return nil, domain.ErrLedgerInconsistent
	}

	snap.Reverse(amount, d, l.now())
	if err := bs.SaveBalance(ctx, snap); err != nil {
		return nil, fmt.Errorf("Reverse: saving balance: %w", err)
	}
	return snap, nil
}

// Adjust rebooks an entry of direction d from oldAmount to newAmount.
// A missing snapshot returns domain.ErrLedgerInconsistent.
func (l *Ledger) Adjust(ctx context.Context, bs store.BalanceStore, userID string, d domain.Direction, oldAmount, newAmount decimal.Decimal) (*domain.BalanceSnapshot, error) {
	if err := checkAmount(newAmount, d); err != nil {
		return nil, fmt.Errorf("Adjust: %w", err)
	}

	snap, err := bs.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Adjust: loading balance: %w", err)
	}
	if snap == nil {
		return nil, domain.ErrLedgerInconsistent
	}

	snap.Adjust(d, oldAmount, newAmount, l.now())
	if err := bs.SaveBalance(ctx, snap); err != nil {
		return nil, fmt.Errorf("Adjust: saving balance: %w", err)
	}
	return snap, nil
}

func checkAmount(amount decimal.Decimal, d domain.Direction) error {
	if !d.Valid() {
		return fmt.Errorf("invalid direction %q", d)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	return nil
}
