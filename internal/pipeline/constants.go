package pipeline

import "time"

// Defaults for message ingestion. Overridden through config in cmd/.
const (
	// DefaultModelName is the default Gemini model used for parsing.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultParseTimeout bounds a single parser call.
	DefaultParseTimeout = 10 * time.Second

	// DefaultMinMessageLength and DefaultMaxMessageLength bound accepted
	// messages, counted in characters after trimming.
	DefaultMinMessageLength = 10
	DefaultMaxMessageLength = 2000

	// MaxDescriptionLength bounds user-edited descriptions.
	MaxDescriptionLength = 500

	// publishTimeout bounds handing an entry event to the export queue.
	publishTimeout = 5 * time.Second
)

// User-facing outcome messages.
const (
	MessageDuplicate      = "This message has already been processed. Skipping duplicate."
	MessageParseFailed    = "Failed to parse message. Try providing more details."
	MessageEntryUpdated   = "Transaction updated successfully."
	MessageEntryDeleted   = "Transaction deleted and balance reversed."
	MessageLedgerWarning  = "Balance snapshot was missing; balance was not adjusted."
	parseFailureReasonFmt = "Failed to parse message with LLM: %s"
)
