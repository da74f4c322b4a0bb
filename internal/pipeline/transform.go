package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// decodeParsedTransaction turns raw model output into a validated
// ParsedTransaction. Any problem is reported as a malformed ParseFailure.
func decodeParsedTransaction(raw string) (*domain.ParsedTransaction, error) {
	cleaned := cleanModelJSON(raw)
	if cleaned == "" {
		return nil, domain.NewParseFailure(domain.ParseMalformed, "empty model output", nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, "model output is not a JSON object", err)
	}
	if obj == nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, "model output is null", nil)
	}

	txType, err := getStringField(obj, "transaction_type", true)
	if err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, err.Error(), nil)
	}
	direction, err := domain.ParseDirection(txType)
	if err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, err.Error(), nil)
	}

	amount, err := getAmountField(obj, "amount")
	if err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, err.Error(), nil)
	}

	merchant, err := getStringField(obj, "merchant_or_source", true)
	if err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, err.Error(), nil)
	}

	category, err := getStringField(obj, "expense_category", true)
	if err != nil {
		return nil, domain.NewParseFailure(domain.ParseMalformed, err.Error(), nil)
	}

	parsed := &domain.ParsedTransaction{
		Direction:        direction,
		Amount:           amount,
		MerchantOrSource: strings.TrimSpace(merchant),
		// Unknown names fall back silently; only a missing field is rejected.
		Category: domain.CoerceCategory(category),
	}

	return parsed, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getAmountField accepts a JSON number or a numeric string such as "1,250.00".
// The amount must be strictly positive.
func getAmountField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}

	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.ReplaceAll(strings.TrimSpace(val), ",", "")
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q is not a number: %q", key, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("field %q must be positive, got %s", key, amount)
	}
	return amount, nil
}
