package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// validateMessage trims the message and checks its length in characters.
func validateMessage(message string, minLen, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", domain.NewValidationError("message", "message is required")
	}
	n := utf8.RuneCountInString(trimmed)
	if n < minLen {
		return "", domain.NewValidationError("message", fmt.Sprintf("message must be at least %d characters", minLen))
	}
	if n > maxLen {
		return "", domain.NewValidationError("message", fmt.Sprintf("message must be at most %d characters", maxLen))
	}
	return trimmed, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("user_id", "user id is required")
	}
	return nil
}

// applyEntryUpdate validates upd against entry and writes the changes into a
// copy. The original entry is left untouched.
func applyEntryUpdate(entry *domain.LedgerEntry, upd domain.EntryUpdate) (*domain.LedgerEntry, error) {
	if upd.Empty() {
		return nil, domain.NewValidationError("", "no fields to update")
	}

	updated := *entry

	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return nil, domain.NewValidationError("amount", "amount must be greater than zero")
		}
		updated.Amount = *upd.Amount
	}

	if upd.Category != nil {
		if entry.Direction != domain.DirectionDebit {
			return nil, domain.NewValidationError("category", "category applies to expenses only")
		}
		c, ok := domain.LookupCategory(string(*upd.Category))
		if !ok {
			return nil, domain.NewValidationError("category", fmt.Sprintf("unknown category %q", *upd.Category))
		}
		updated.Category = c
	}

	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if utf8.RuneCountInString(desc) > MaxDescriptionLength {
			return nil, domain.NewValidationError("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
		}
		updated.Description = desc
	}

	if upd.MerchantOrSource != nil {
		m := strings.TrimSpace(*upd.MerchantOrSource)
		if m == "" {
			return nil, domain.NewValidationError("merchant_or_source", "merchant or source cannot be empty")
		}
		updated.MerchantOrSource = m
	}

	return &updated, nil
}
