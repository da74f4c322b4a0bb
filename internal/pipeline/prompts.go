package pipeline

import (
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// buildSystemPrompt describes the output contract to the model, listing the
// allowed expense categories.
func buildSystemPrompt() string {
	names := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		names = append(names, string(c))
	}

	var b strings.Builder
	b.WriteString("You are a financial transaction parser for bank SMS and notification messages.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract exactly ONE transaction from the message.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"transaction_type\": \"Credit\" if money came IN, \"Debit\" if money went OUT\n")
	b.WriteString("- \"amount\": positive number, no currency symbols\n")
	b.WriteString("- \"merchant_or_source\": string, the merchant paid or the source of the money\n")
	b.WriteString("- \"expense_category\": one of: " + strings.Join(names, ", ") + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- If unsure about the category, use \"" + string(domain.FallbackCategory) + "\".\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// buildUserPrompt wraps the raw message for the model.
func buildUserPrompt(message string) string {
	return "Message:\n" + message
}
