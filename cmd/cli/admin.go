package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and list the applied ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Opening the app applies pending migrations.
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.Store.AppliedMigrations(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT\tBY")
			for _, m := range applied {
				fmt.Fprintf(tw, "%04d\t%s\t%s\t%s\n",
					m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"), m.AppliedBy)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) exportLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "export-log",
		Short: "Show the ledger events exported to BigQuery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			exporter, err := a.LedgerEventExporter(ctx)
			if err != nil {
				return err
			}

			rows, err := exporter.ListEntryEvents(ctx, c.userID, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tEVENT\tENTRY\tTYPE\tAMOUNT\tBALANCE")
			for _, r := range rows {
				balance := "-"
				if r.BalanceAfter != nil {
					balance = r.BalanceAfter.FloatString(2)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.EventTS.Format("2006-01-02 15:04:05"), r.EventType, r.EntryID,
					r.Direction, r.Amount.FloatString(2), balance)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to show")
	return cmd
}

func (c *cli) syncNotionCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Rebuild the Notion mirror of the user's auto-detected entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			n := c.cfg.Export.Notion
			if n.Token == "" || n.DatabaseID == "" {
				return fmt.Errorf("NOTION_TOKEN and export.notion.database_id are required")
			}
			ctx := cmd.Context()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []*domain.LedgerEntry
			filter := domain.EntryFilter{UserID: c.userID, Limit: domain.MaxListLimit}
			for {
				page, err := a.Pipeline.ListAutoEntries(ctx, filter)
				if err != nil {
					return err
				}
				entries = append(entries, page.Entries...)
				if len(page.Entries) == 0 || len(entries) >= page.Total {
					break
				}
				filter.Offset += len(page.Entries)
			}

			res, err := notionsync.SyncEntries(ctx, notionsync.NewNotionClient(n.Token, n.DatabaseID), c.userID, entries, dryRun)
			if err != nil {
				return err
			}
			c.printf("created: %d  updated: %d  archived: %d\n", res.Created, res.Updated, res.Archived)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing to Notion")
	return cmd
}
