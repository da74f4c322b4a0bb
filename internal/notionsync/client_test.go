package notionsync

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePageAPI records page writes.
type fakePageAPI struct {
	created []*notionapi.PageCreateRequest
	updated map[notionapi.PageID]*notionapi.PageUpdateRequest
	err     error
}

func (f *fakePageAPI) Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "new-page"}, nil
}

func (f *fakePageAPI) Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = make(map[notionapi.PageID]*notionapi.PageUpdateRequest)
	}
	f.updated[id] = req
	return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
}

// fakeDatabaseAPI answers queries from QueryFunc and keeps every request.
type fakeDatabaseAPI struct {
	QueryFunc func(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	databaseIDs []notionapi.DatabaseID
	requests    []*notionapi.DatabaseQueryRequest
}

func (f *fakeDatabaseAPI) Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.databaseIDs = append(f.databaseIDs, id)
	f.requests = append(f.requests, req)
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, req)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func TestNotionClient_FindEntryPage(t *testing.T) {
	db := &fakeDatabaseAPI{
		QueryFunc: func(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{entryPage("page-1", "entry-1", "u1")}}, nil
		},
	}
	c := newNotionClient(&fakePageAPI{}, db, "db-1")

	pageID, err := c.FindEntryPage(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)

	require.Len(t, db.requests, 1)
	assert.Equal(t, notionapi.DatabaseID("db-1"), db.databaseIDs[0])
	pf := db.requests[0].Filter.(notionapi.PropertyFilter)
	assert.Equal(t, PropEntryID, pf.Property)
	assert.Equal(t, "entry-1", pf.RichText.Equals)

	// A page whose title does not match exactly is ignored.
	pageID, err = c.FindEntryPage(context.Background(), "entry-10")
	require.NoError(t, err)
	assert.Empty(t, pageID)
}

func TestNotionClient_UpsertEntryPage(t *testing.T) {
	pages := &fakePageAPI{}
	c := newNotionClient(pages, &fakeDatabaseAPI{}, "db-1")
	e := sampleEntry()
	balance := &domain.BalanceSnapshot{CurrentBalance: decimal.RequireFromString("-450")}

	id, err := c.UpsertEntryPage(context.Background(), "", &e, balance)
	require.NoError(t, err)
	assert.Equal(t, "new-page", id)
	require.Len(t, pages.created, 1)
	assert.Equal(t, notionapi.DatabaseID("db-1"), pages.created[0].Parent.DatabaseID)
	assert.Equal(t, -450.0, pages.created[0].Properties[PropBalanceAfter].(notionapi.NumberProperty).Number)

	id, err = c.UpsertEntryPage(context.Background(), "page-7", &e, nil)
	require.NoError(t, err)
	assert.Equal(t, "page-7", id)
	require.Contains(t, pages.updated, notionapi.PageID("page-7"))
	assert.Equal(t, "entry-1", pages.updated["page-7"].Properties[PropEntryID].(notionapi.TitleProperty).Title[0].Text.Content)
	assert.Len(t, pages.created, 1)
}

func TestNotionClient_ArchiveEntryPage(t *testing.T) {
	pages := &fakePageAPI{}
	c := newNotionClient(pages, &fakeDatabaseAPI{}, "db-1")

	require.NoError(t, c.ArchiveEntryPage(context.Background(), "page-1"))
	assert.True(t, pages.updated["page-1"].Archived)

	pages.err = errors.New("object_not_found")
	assert.ErrorContains(t, c.ArchiveEntryPage(context.Background(), "page-2"), "object_not_found")
}

func TestNotionClient_ListUserEntryPages(t *testing.T) {
	db := &fakeDatabaseAPI{
		QueryFunc: func(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{entryPage("page-1", "entry-1", "u1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{
					entryPage("page-2", "entry-2", "u1"),
					entryPage("page-other", "entry-other", "u2"),
					entryPage("page-untitled", "", "u1"),
				},
			}, nil
		},
	}
	c := newNotionClient(&fakePageAPI{}, db, "db-1")

	got, err := c.ListUserEntryPages(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"entry-1": "page-1", "entry-2": "page-2"}, got)

	require.Len(t, db.requests, 2)
	assert.Equal(t, notionapi.Cursor("next"), db.requests[1].StartCursor)
	assert.Equal(t, BatchSize, db.requests[0].PageSize)
	pf := db.requests[0].Filter.(notionapi.PropertyFilter)
	assert.Equal(t, PropUser, pf.Property)
	assert.Equal(t, "u1", pf.RichText.Equals)
}
