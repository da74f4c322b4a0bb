package pipeline

import (
	"context"
	"errors"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// MessageParser provides an interface for AI-powered message parsing.
// This interface enables mocking and testing of the parsing capability.
type MessageParser interface {
	// ParseMessage sends the message to a model and returns its raw text answer.
	// Decoding and validation of that answer is done by the pipeline.
	ParseMessage(ctx context.Context, message string) (string, error)
}

// EventPublisher receives committed ledger changes, e.g. to mirror them
// into analytics sinks. Publishing failures never undo the change.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, event domain.EntryEvent) error
}

// ErrParserNotConfigured is returned by UnavailableParser.
var ErrParserNotConfigured = errors.New("message parser is not configured")

// UnavailableParser is used when no model credentials are configured.
// Every message is recorded as a failed parse.
type UnavailableParser struct{}

// ParseMessage always fails.
func (UnavailableParser) ParseMessage(ctx context.Context, message string) (string, error) {
	return "", ErrParserNotConfigured
}

type noopPublisher struct{}

func (noopPublisher) PublishEntryEvent(ctx context.Context, event domain.EntryEvent) error {
	return nil
}
