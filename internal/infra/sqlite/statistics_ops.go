package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthlyStatistics aggregates the user's entries for the calendar month
// containing at. Amounts are summed in Go because they are stored as text.
func (o ops) MonthlyStatistics(ctx context.Context, userID string, at time.Time) (*domain.MonthlyStatistics, error) {
	at = at.UTC()
	from, to, _ := periodBounds(at.Year(), int(at.Month()))

	rows, err := o.q.QueryContext(ctx, `
		SELECT amount, direction, is_auto_detected
		FROM ledger_entries
		WHERE user_id = ? AND occurred_on >= ? AND occurred_on < ?`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("MonthlyStatistics: query: %w", err)
	}
	defer rows.Close()

	stats := &domain.MonthlyStatistics{
		Year:                at.Year(),
		Month:               int(at.Month()),
		AutoExpenseAmount:   decimal.Zero,
		ManualExpenseAmount: decimal.Zero,
		TotalIncome:         decimal.Zero,
	}

	for rows.Next() {
		var (
			raw, direction string
			auto           int
		)
		if err := rows.Scan(&raw, &direction, &auto); err != nil {
			return nil, fmt.Errorf("MonthlyStatistics: scan: %w", err)
		}
		amount, err := parseDecimal("amount", raw)
		if err != nil {
			return nil, fmt.Errorf("MonthlyStatistics: %w", err)
		}

		switch {
		case domain.Direction(direction) == domain.DirectionCredit:
			stats.TotalIncome = stats.TotalIncome.Add(amount)
		case auto == 1:
			stats.AutoExpenseAmount = stats.AutoExpenseAmount.Add(amount)
			stats.AutoExpenseCount++
		default:
			stats.ManualExpenseAmount = stats.ManualExpenseAmount.Add(amount)
			stats.ManualExpenseCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MonthlyStatistics: iterating: %w", err)
	}

	stats.Finalize()
	return stats, nil
}
