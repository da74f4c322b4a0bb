package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

const entryColumns = `
	id, user_id, amount, direction, kind, merchant_or_source, category,
	description, is_auto_detected, source_fingerprint, occurred_on,
	created_at, updated_at`

// InsertEntry inserts a ledger entry.
func (o ops) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.String(), string(e.Direction), string(e.Kind),
		e.MerchantOrSource, nullString(string(e.Category)), e.Description,
		boolToInt(e.IsAutoDetected), nullString(e.SourceFingerprint),
		e.OccurredOn.Format(dateLayout), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("InsertEntry: %w", err)
	}
	return nil
}

// FindAutoEntry returns nil, nil if the entry does not exist, belongs to
// another user or was entered manually.
func (o ops) FindAutoEntry(ctx context.Context, userID, entryID string) (*domain.LedgerEntry, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = ? AND user_id = ? AND is_auto_detected = 1`, entryID, userID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindAutoEntry: %w", err)
	}
	return e, nil
}

// UpdateEntry writes back the mutable fields of an entry.
func (o ops) UpdateEntry(ctx context.Context, e *domain.LedgerEntry) error {
	res, err := o.q.ExecContext(ctx, `
		UPDATE ledger_entries
		SET amount = ?, merchant_or_source = ?, category = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		e.Amount.String(), e.MerchantOrSource, nullString(string(e.Category)),
		e.Description, formatTime(e.UpdatedAt), e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("UpdateEntry: %w", err)
	}
	return expectOneRow("UpdateEntry", res)
}

// DeleteEntry removes an entry. Audit records are kept.
func (o ops) DeleteEntry(ctx context.Context, userID, entryID string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ? AND user_id = ?`, entryID, userID)
	if err != nil {
		return fmt.Errorf("DeleteEntry: %w", err)
	}
	return expectOneRow("DeleteEntry", res)
}

// ListAutoEntries returns a page of auto-detected entries plus the total match count.
func (o ops) ListAutoEntries(ctx context.Context, filter domain.EntryFilter) (*domain.EntryPage, error) {
	filter = filter.Normalize()

	where := []string{"user_id = ?", "is_auto_detected = 1"}
	args := []any{filter.UserID}
	if from, to, ok := periodBounds(filter.Year, filter.Month); ok {
		where = append(where, "occurred_on >= ?", "occurred_on < ?")
		args = append(args, from, to)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := o.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("ListAutoEntries: count: %w", err)
	}

	rows, err := o.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE `+cond+`
		ORDER BY occurred_on DESC, created_at DESC, id DESC
		LIMIT ? OFFSET ?`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("ListAutoEntries: query: %w", err)
	}
	defer rows.Close()

	page := &domain.EntryPage{Entries: []*domain.LedgerEntry{}, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAutoEntries: %w", err)
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAutoEntries: iterating: %w", err)
	}
	return page, nil
}

// periodBounds returns the half-open [from, to) date range for a month or a
// whole year. Month without year is not a period.
func periodBounds(year, month int) (string, string, bool) {
	switch {
	case year > 0 && month >= 1 && month <= 12:
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return from.Format(dateLayout), from.AddDate(0, 1, 0).Format(dateLayout), true
	case year > 0:
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from.Format(dateLayout), from.AddDate(1, 0, 0).Format(dateLayout), true
	default:
		return "", "", false
	}
}

func scanEntry(s rowScanner) (*domain.LedgerEntry, error) {
	var (
		e                                domain.LedgerEntry
		amount, direction, kind          string
		occurredOn, createdAt, updatedAt string
		category, sourceFingerprint      sql.NullString
		autoDetected                     int
	)
	if err := s.Scan(&e.ID, &e.UserID, &amount, &direction, &kind, &e.MerchantOrSource,
		&category, &e.Description, &autoDetected, &sourceFingerprint,
		&occurredOn, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	e.Direction = domain.Direction(direction)
	e.Kind = domain.EntryKind(kind)
	e.Category = domain.Category(category.String)
	e.IsAutoDetected = autoDetected == 1
	e.SourceFingerprint = sourceFingerprint.String

	if e.OccurredOn, err = time.Parse(dateLayout, occurredOn); err != nil {
		return nil, fmt.Errorf("decoding occurred_on: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("decoding updated_at: %w", err)
	}
	return &e, nil
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrEntryNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
