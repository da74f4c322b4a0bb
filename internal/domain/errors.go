package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateMessage is returned when a message with the same fingerprint
	// was already recorded for the user.
	ErrDuplicateMessage = errors.New("message already processed")

	// ErrEntryNotFound is returned when an auto-detected entry does not exist
	// or belongs to another user.
	ErrEntryNotFound = errors.New("auto-detected transaction not found")

	// ErrLedgerInconsistent is a soft failure: the entry mutation went through
	// but there was no snapshot to correct.
	ErrLedgerInconsistent = errors.New("balance snapshot missing for existing entry")
)

// ValidationError represents rejected caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseFailureKind classifies why a message could not be turned into a transaction.
type ParseFailureKind string

const (
	// ParseUnavailable means the parser could not be reached or returned an error.
	ParseUnavailable ParseFailureKind = "unavailable"
	// ParseTimeout means the parser did not answer within the configured bound.
	ParseTimeout ParseFailureKind = "timeout"
	// ParseMalformed means the parser answered with something that failed validation.
	ParseMalformed ParseFailureKind = "malformed"
)

// ParseFailure is a terminal failure to obtain a valid ParsedTransaction.
type ParseFailure struct {
	Kind   ParseFailureKind
	Reason string
	Err    error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Kind, e.Reason)
}

func (e *ParseFailure) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same request could succeed.
// Malformed output is deterministic for a given message.
func (e *ParseFailure) Retryable() bool {
	return e.Kind != ParseMalformed
}

// MarshalJSON writes the kind, reason and retryability. The wrapped error stays internal.
func (e *ParseFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      ParseFailureKind `json:"kind"`
		Reason    string           `json:"reason"`
		Retryable bool             `json:"retryable"`
	}{e.Kind, e.Reason, e.Retryable()})
}

// NewParseFailure builds a ParseFailure.
func NewParseFailure(kind ParseFailureKind, reason string, err error) *ParseFailure {
	return &ParseFailure{Kind: kind, Reason: reason, Err: err}
}

// PersistenceError wraps a storage failure. The surrounding unit of work
// has been rolled back when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err unless it already is a PersistenceError.
func NewPersistenceError(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
