package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

const recordColumns = `
	id, user_id, raw_message, fingerprint, status, error_reason,
	parsed_json, raw_model_output, created_at, processed_at`

// InsertRecord inserts an audit record. A fingerprint collision for the
// same user is reported as domain.ErrDuplicateMessage.
func (o ops) InsertRecord(ctx context.Context, rec *domain.TransactionRecord) error {
	var parsed sql.NullString
	if rec.Parsed != nil {
		b, err := json.Marshal(rec.Parsed)
		if err != nil {
			return fmt.Errorf("InsertRecord: encoding parsed fields: %w", err)
		}
		parsed = sql.NullString{String: string(b), Valid: true}
	}

	_, err := o.q.ExecContext(ctx, `
		INSERT INTO transaction_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RawMessage, rec.Fingerprint, string(rec.Status),
		nullString(rec.ErrorReason), parsed, nullString(rec.RawModelOutput),
		formatTime(rec.CreatedAt), nullTime(rec.ProcessedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertRecord: %w", domain.ErrDuplicateMessage)
		}
		return fmt.Errorf("InsertRecord: %w", err)
	}
	return nil
}

// FindRecordByFingerprint returns nil, nil when the user never sent this message.
func (o ops) FindRecordByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.TransactionRecord, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM transaction_records
		WHERE user_id = ? AND fingerprint = ?
		LIMIT 1`, userID, fingerprint)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindRecordByFingerprint: %w", err)
	}
	return rec, nil
}

// ListRecords returns the user's audit records, newest first.
func (o ops) ListRecords(ctx context.Context, userID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM transaction_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListRecords: query: %w", err)
	}
	defer rows.Close()

	records := []*domain.TransactionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecords: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecords: iterating: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*domain.TransactionRecord, error) {
	var (
		rec                                domain.TransactionRecord
		status, createdAt                  string
		errorReason, parsed, rawOut, procd sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.RawMessage, &rec.Fingerprint, &status,
		&errorReason, &parsed, &rawOut, &createdAt, &procd); err != nil {
		return nil, err
	}

	rec.Status = domain.RecordStatus(status)
	rec.ErrorReason = errorReason.String
	rec.RawModelOutput = rawOut.String

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}
	if procd.Valid {
		t, err := parseTime(procd.String)
		if err != nil {
			return nil, fmt.Errorf("decoding processed_at: %w", err)
		}
		rec.ProcessedAt = &t
	}
	if parsed.Valid {
		var p domain.ParsedTransaction
		if err := json.Unmarshal([]byte(parsed.String), &p); err != nil {
			return nil, fmt.Errorf("decoding parsed_json: %w", err)
		}
		rec.Parsed = &p
	}
	return &rec, nil
}
