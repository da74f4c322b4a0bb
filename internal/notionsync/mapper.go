package notionsync

import (
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Notion ledger database.
const (
	PropEntryID      = "Entry ID"
	PropDescription  = "Description"
	PropAmount       = "Amount"
	PropType         = "Type"
	PropKind         = "Kind"
	PropCategory     = "Category"
	PropMerchant     = "Merchant"
	PropUser         = "User"
	PropDate         = "Date"
	PropAutoDetected = "Auto Detected"
	PropBalanceAfter = "Balance After"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// EntryToNotionProperties converts a ledger entry to Notion page properties.
// balance may be nil when the snapshot was unavailable.
func EntryToNotionProperties(e *domain.LedgerEntry, balance *domain.BalanceSnapshot) notionapi.Properties {
	date := notionapi.Date(e.OccurredOn)

	props := notionapi.Properties{
		PropEntryID: notionapi.TitleProperty{
			Title: richText(e.ID),
		},
		PropDescription: notionapi.RichTextProperty{
			RichText: richText(e.Description),
		},
		PropAmount: notionapi.NumberProperty{
			Number: e.Amount.InexactFloat64(),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Direction)},
		},
		PropKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Kind)},
		},
		PropUser: notionapi.RichTextProperty{
			RichText: richText(e.UserID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAutoDetected: notionapi.CheckboxProperty{
			Checkbox: e.IsAutoDetected,
		},
	}

	if e.MerchantOrSource != "" {
		props[PropMerchant] = notionapi.RichTextProperty{
			RichText: richText(e.MerchantOrSource),
		}
	}

	// Credits carry no category
	if e.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Category)},
		}
	}

	if balance != nil {
		props[PropBalanceAfter] = notionapi.NumberProperty{
			Number: balance.CurrentBalance.InexactFloat64(),
		}
	}

	return props
}

// extractEntryID extracts the entry ID from a Notion page's title.
// Returns empty string if not found.
func extractEntryID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropEntryID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

// extractUserID extracts the owning user from a Notion page.
func extractUserID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropUser]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
