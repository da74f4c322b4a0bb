package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// rowPutter is satisfied by *bigquery.Inserter.
type rowPutter interface {
	Put(ctx context.Context, src interface{}) error
}

// LedgerEventExporter appends ledger events to a BigQuery table and reads
// them back. It holds a shared client for the lifetime of the process.
type LedgerEventExporter struct {
	client    *bigquery.Client
	table     *bigquery.Table
	inserter  rowPutter
	tableName string
}

// NewLedgerEventExporter creates a client bound to projectID.dataset.table.
func NewLedgerEventExporter(ctx context.Context, projectID, dataset, table string) (*LedgerEventExporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerEventExporter: creating client: %w", err)
	}

	t := client.DatasetInProject(projectID, dataset).Table(table)
	return &LedgerEventExporter{
		client:    client,
		table:     t,
		inserter:  t.Inserter(),
		tableName: fmt.Sprintf("`%s.%s.%s`", projectID, dataset, table),
	}, nil
}

// Close closes the BigQuery client connection.
func (x *LedgerEventExporter) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

// Name identifies the sink in logs.
func (x *LedgerEventExporter) Name() string {
	return "bigquery"
}

// EnsureTable creates the events table, partitioned by event day, if it is
// missing.
func (x *LedgerEventExporter) EnsureTable(ctx context.Context) error {
	_, err := x.table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: reading metadata: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: eventSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "event_ts",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"user_id"}},
	}
	if err := x.table.Create(ctx, meta); err != nil {
		var createErr *googleapi.Error
		if errors.As(err, &createErr) && createErr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// ExportEntryEvent streams one event row. The insert ID is derived from the
// event so a retried export is deduplicated by BigQuery.
func (x *LedgerEventExporter) ExportEntryEvent(ctx context.Context, event domain.EntryEvent) error {
	row := NewLedgerEventRow(event)
	saver := &bigquery.StructSaver{
		Schema:   eventSchema,
		InsertID: row.EventID,
		Struct:   row,
	}
	if err := x.inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("ExportEntryEvent: inserting row: %w", err)
	}
	return nil
}

// ListEntryEvents returns the user's most recent events, newest first.
func (x *LedgerEventExporter) ListEntryEvents(ctx context.Context, userID string, limit int) ([]*LedgerEventRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := x.client.Query(`
		SELECT
			event_id,
			event_type,
			user_id,
			entry_id,
			amount,
			direction,
			kind,
			merchant_or_source,
			category,
			description,
			is_auto_detected,
			occurred_on,
			balance_after,
			event_ts
		FROM ` + x.tableName + `
		WHERE user_id = @user_id
		ORDER BY event_ts DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListEntryEvents: query read: %w", err)
	}

	var rows []*LedgerEventRow
	for {
		var r LedgerEventRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListEntryEvents: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
