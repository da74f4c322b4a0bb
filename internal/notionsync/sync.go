package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/logger"
)

// EntryMirror keeps one Notion page per ledger entry. Pages are located by
// their Entry ID title, so replaying an event converges to the same page.
type EntryMirror struct {
	pages EntryPages
}

// NewEntryMirror creates a mirror writing through pages.
func NewEntryMirror(pages EntryPages) *EntryMirror {
	return &EntryMirror{pages: pages}
}

// Name identifies the sink in logs.
func (m *EntryMirror) Name() string {
	return "notion"
}

// ExportEntryEvent applies one ledger change to the mirror. Created and
// updated entries are upserted; deleted entries have their page archived.
func (m *EntryMirror) ExportEntryEvent(ctx context.Context, event domain.EntryEvent) error {
	log := logger.FromContext(ctx)

	switch event.Type {
	case domain.EntryCreated, domain.EntryUpdated, domain.EntryDeleted:
	default:
		return fmt.Errorf("ExportEntryEvent: unknown event type %q", event.Type)
	}

	pageID, err := m.pages.FindEntryPage(ctx, event.Entry.ID)
	if err != nil {
		return fmt.Errorf("ExportEntryEvent: %w", err)
	}

	if event.Type == domain.EntryDeleted {
		if pageID == "" {
			log.Debug().Str("entry_id", event.Entry.ID).Msg("No Notion page to archive")
			return nil
		}
		if err := m.pages.ArchiveEntryPage(ctx, pageID); err != nil {
			return fmt.Errorf("ExportEntryEvent: %w", err)
		}
		log.Info().Str("entry_id", event.Entry.ID).Str("page_id", pageID).Msg("Archived Notion page")
		return nil
	}

	written, err := m.pages.UpsertEntryPage(ctx, pageID, &event.Entry, event.Balance)
	if err != nil {
		return fmt.Errorf("ExportEntryEvent: %w", err)
	}
	log.Info().
		Str("entry_id", event.Entry.ID).
		Str("page_id", written).
		Bool("created", pageID == "").
		Msg("Mirrored entry to Notion")
	return nil
}

// SyncResult counts the changes made by SyncEntries.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
}

// SyncEntries rebuilds the mirror for one user from the ledger: every entry
// is upserted and pages of that user whose entry no longer exists are
// archived. With dryRun nothing is written.
func SyncEntries(ctx context.Context, pages EntryPages, userID string, entries []*domain.LedgerEntry, dryRun bool) (*SyncResult, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID).
		Int("entry_count", len(entries)).
		Bool("dry_run", dryRun).
		Msg("Starting entry sync to Notion")

	existing, err := pages.ListUserEntryPages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: failed to query Notion pages: %w", err)
	}

	res := &SyncResult{}
	live := make(map[string]bool, len(entries))
	for _, e := range entries {
		live[e.ID] = true

		pageID, found := existing[e.ID]
		if !dryRun {
			if _, err := pages.UpsertEntryPage(ctx, pageID, e, nil); err != nil {
				return res, fmt.Errorf("SyncEntries: %w", err)
			}
		}
		if found {
			res.Updated++
		} else {
			res.Created++
		}
	}

	for entryID, pageID := range existing {
		if live[entryID] {
			continue
		}
		if !dryRun {
			if err := pages.ArchiveEntryPage(ctx, pageID); err != nil {
				return res, fmt.Errorf("SyncEntries: %w", err)
			}
		}
		res.Archived++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Msg("Entry sync completed")

	return res, nil
}
