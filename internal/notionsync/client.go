package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// BatchSize is the Notion query page size.
const BatchSize = 100

// NotionClient keeps ledger entries as pages of a single Notion database.
type NotionClient struct {
	pages      pageAPI
	databases  databaseAPI
	databaseID notionapi.DatabaseID
}

var _ EntryPages = (*NotionClient)(nil)

// NewNotionClient creates a client for the ledger database databaseID.
func NewNotionClient(token, databaseID string) *NotionClient {
	c := notionapi.NewClient(notionapi.Token(token))
	return newNotionClient(c.Page, c.Database, databaseID)
}

func newNotionClient(pages pageAPI, databases databaseAPI, databaseID string) *NotionClient {
	return &NotionClient{
		pages:      pages,
		databases:  databases,
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

// FindEntryPage looks the entry up by its Entry ID title.
func (n *NotionClient) FindEntryPage(ctx context.Context, entryID string) (string, error) {
	resp, err := n.databases.Query(ctx, n.databaseID, &notionapi.DatabaseQueryRequest{
		Filter:   textEquals(PropEntryID, entryID),
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("FindEntryPage %s: %w", entryID, err)
	}
	for _, page := range resp.Results {
		if extractEntryID(page) == entryID {
			return page.ID.String(), nil
		}
	}
	return "", nil
}

// UpsertEntryPage writes the entry's properties, creating the page when
// pageID is empty.
func (n *NotionClient) UpsertEntryPage(ctx context.Context, pageID string, entry *domain.LedgerEntry, balance *domain.BalanceSnapshot) (string, error) {
	props := EntryToNotionProperties(entry, balance)

	if pageID != "" {
		if _, err := n.pages.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return "", fmt.Errorf("UpsertEntryPage: update %s: %w", pageID, err)
		}
		return pageID, nil
	}

	page, err := n.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: n.databaseID,
		},
		Properties: props,
	})
	if err != nil {
		return "", fmt.Errorf("UpsertEntryPage: create for %s: %w", entry.ID, err)
	}
	return page.ID.String(), nil
}

// ArchiveEntryPage archives a page by setting its archived flag.
func (n *NotionClient) ArchiveEntryPage(ctx context.Context, pageID string) error {
	if _, err := n.pages.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("ArchiveEntryPage %s: %w", pageID, err)
	}
	return nil
}

// ListUserEntryPages pages through the database filtered on the User property.
func (n *NotionClient) ListUserEntryPages(ctx context.Context, userID string) (map[string]string, error) {
	byEntry := make(map[string]string)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   textEquals(PropUser, userID),
			PageSize: BatchSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := n.databases.Query(ctx, n.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("ListUserEntryPages: %w", err)
		}

		for _, page := range resp.Results {
			if extractUserID(page) != userID {
				continue
			}
			if id := extractEntryID(page); id != "" {
				byEntry[id] = page.ID.String()
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return byEntry, nil
}

func textEquals(property, value string) notionapi.PropertyFilter {
	return notionapi.PropertyFilter{
		Property: property,
		RichText: &notionapi.TextFilterCondition{Equals: value},
	}
}
