package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// GetBalance returns nil, nil when no snapshot exists for the user.
func (o ops) GetBalance(ctx context.Context, userID string) (*domain.BalanceSnapshot, error) {
	var current, credits, debits, updated string
	err := o.q.QueryRowContext(ctx, `
		SELECT current_balance, total_credits, total_debits, last_updated
		FROM balance_snapshots
		WHERE user_id = ?`, userID).Scan(&current, &credits, &debits, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	snap := &domain.BalanceSnapshot{UserID: userID}
	if snap.CurrentBalance, err = parseDecimal("current_balance", current); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	if snap.TotalCredits, err = parseDecimal("total_credits", credits); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	if snap.TotalDebits, err = parseDecimal("total_debits", debits); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	if snap.LastUpdated, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("GetBalance: decoding last_updated: %w", err)
	}
	return snap, nil
}

// SaveBalance upserts the snapshot.
func (o ops) SaveBalance(ctx context.Context, snap *domain.BalanceSnapshot) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO balance_snapshots (user_id, current_balance, total_credits, total_debits, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			total_credits   = excluded.total_credits,
			total_debits    = excluded.total_debits,
			last_updated    = excluded.last_updated`,
		snap.UserID, snap.CurrentBalance.String(), snap.TotalCredits.String(),
		snap.TotalDebits.String(), formatTime(snap.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("SaveBalance: %w", err)
	}
	return nil
}
