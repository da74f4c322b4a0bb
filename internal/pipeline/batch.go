package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// BatchSummary counts the outcomes of a batch import.
type BatchSummary struct {
	Total       int      `json:"total"`
	Processed   int      `json:"processed"`
	Duplicates  int      `json:"duplicates"`
	ParseFailed int      `json:"parse_failed"`
	Invalid     int      `json:"invalid"`
	Errors      []string `json:"errors,omitempty"`
}

// ProcessBatch feeds messages through ProcessMessage one at a time, in order.
// Invalid messages are counted and skipped. A persistence failure or a
// cancelled context stops the batch and returns the summary so far.
func (p *TransactionPipeline) ProcessBatch(ctx context.Context, userID string, messages []string) (*BatchSummary, error) {
	summary := &BatchSummary{}

	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++

		res, err := p.ProcessMessage(ctx, userID, msg)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				summary.Invalid++
				summary.Errors = append(summary.Errors, fmt.Sprintf("message %d: %s", i+1, ve.Reason))
				continue
			}
			return summary, fmt.Errorf("ProcessBatch: message %d: %w", i+1, err)
		}

		switch res.Outcome {
		case OutcomeProcessed:
			summary.Processed++
		case OutcomeDuplicate:
			summary.Duplicates++
		case OutcomeParseFailed:
			summary.ParseFailed++
		}
	}

	p.log.Info().
		Str("user_id", userID).
		Int("total", summary.Total).
		Int("processed", summary.Processed).
		Int("duplicates", summary.Duplicates).
		Int("parse_failed", summary.ParseFailed).
		Int("invalid", summary.Invalid).
		Msg("batch import finished")
	return summary, nil
}
