package notionsync

import (
	"context"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// EntryPages stores ledger entries in one Notion database, one page per
// entry, found again through the Entry ID title.
type EntryPages interface {
	// FindEntryPage returns the ID of the page mirroring entryID, or "".
	FindEntryPage(ctx context.Context, entryID string) (string, error)

	// UpsertEntryPage writes entry to pageID, or to a new page when pageID
	// is empty, and returns the page ID. balance may be nil.
	UpsertEntryPage(ctx context.Context, pageID string, entry *domain.LedgerEntry, balance *domain.BalanceSnapshot) (string, error)

	// ArchiveEntryPage moves a page to the trash.
	ArchiveEntryPage(ctx context.Context, pageID string) error

	// ListUserEntryPages maps entry ID to page ID for every page owned by userID.
	ListUserEntryPages(ctx context.Context, userID string) (map[string]string, error)
}

// pageAPI and databaseAPI are the parts of the Notion SDK the client calls.
type pageAPI interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

type databaseAPI interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}
