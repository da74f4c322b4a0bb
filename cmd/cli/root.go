package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/expense-tracker/internal/app"
	"github.com/dvloznov/expense-tracker/internal/config"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cli holds state shared by every subcommand.
type cli struct {
	configFile string
	userID     string

	out io.Writer
	cfg *config.Config
	log zerolog.Logger

	// newApp is replaced in tests.
	newApp func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.App, error)
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{
		out: out,
		newApp: func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.App, error) {
			return app.New(ctx, cfg, log)
		},
	}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense-cli",
		Short: "Ingest bank and UPI messages into a personal ledger.",
		Long: `expense-cli feeds transaction notifications (SMS, UPI alerts) through the
same pipeline as the API server: duplicate check, model parsing, audit record
and balance update. It also inspects the ledger and its export mirrors.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.InitializeConfig(c.configFile)
			if err != nil {
				return err
			}
			log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = log
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVarP(&c.userID, "user", "u", os.Getenv("EXPENSE_USER"), "User ID the command acts for (or set EXPENSE_USER)")

	cmd.AddCommand(
		c.ingestCmd(),
		c.importCmd(),
		c.balanceCmd(),
		c.entriesCmd(),
		c.statsCmd(),
		c.editCmd(),
		c.deleteCmd(),
		c.migrateCmd(),
		c.exportLogCmd(),
		c.syncNotionCmd(),
	)
	return cmd
}

// open builds the application for one command run.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	return c.newApp(ctx, c.cfg, c.log)
}

func (c *cli) requireUser() error {
	if c.userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func (c *cli) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}
