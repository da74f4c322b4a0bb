package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/gcsuploader"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/spf13/cobra"
)

func (c *cli) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <message>",
		Short: "Process a single transaction message",
		Example: `  expense-cli ingest -u alice "Rs.450 debited from A/c XX1234 at SWIGGY"`,
		Args: cobra.MinimumNArgs(1),
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

			res, err := a.Pipeline.ProcessMessage(ctx, c.userID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			c.printf("%s\n", res.Message)
			switch res.Outcome {
			case pipeline.OutcomeProcessed:
				c.printf("entry:   %s\n", res.Entry.ID)
				c.printBalance(res.Balance)
			case pipeline.OutcomeParseFailed:
				if res.Failure != nil {
					c.printf("reason:  %s\n", res.Failure.Kind)
				}
			}
			return nil
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file | gs://bucket/object>",
		Short: "Process a file with one message per line",
		Long: `Import reads a local file or a Cloud Storage object and feeds every
non-blank line through the pipeline in order. Invalid lines are counted and
skipped; a storage failure stops the import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			ctx := cmd.Context()
			src := args[0]

			label := filepath.Base(src)
			var opener gcsuploader.ObjectOpener
			if gcsuploader.IsGCSURI(src) {
				label = gcsuploader.ExtractFilenameFromGCSURI(src)
				gcs, err := gcsuploader.NewGCSStorageService(ctx, c.cfg.Storage.CredentialsFile)
				if err != nil {
					return err
				}
				defer gcs.Close()
				opener = gcs
			}

			messages, err := gcsuploader.LoadMessages(ctx, src, opener)
			if err != nil {
				return err
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c.printf("source: %s (%d messages)\n", label, len(messages))
			summary, err := a.Pipeline.ProcessBatch(ctx, c.userID, messages)
			if summary != nil {
				c.printf("total: %d  processed: %d  duplicates: %d  parse failed: %d  invalid: %d\n",
					summary.Total, summary.Processed, summary.Duplicates, summary.ParseFailed, summary.Invalid)
				for _, e := range summary.Errors {
					c.printf("  %s\n", e)
				}
			}
			if err != nil {
				return fmt.Errorf("import stopped: %w", err)
			}
			return nil
		},
	}
}

func (c *cli) printBalance(b *domain.BalanceSnapshot) {
	if b == nil {
		return
	}
	c.printf("balance: %s (credits %s, debits %s)\n",
		b.CurrentBalance.StringFixed(2), b.TotalCredits.StringFixed(2), b.TotalDebits.StringFixed(2))
}
