package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
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

			snap, err := a.Pipeline.Balance(ctx, c.userID)
			if err != nil {
				return err
			}
			c.printBalance(snap)
			if snap.LastUpdated.IsZero() {
				c.printf("updated: never\n")
			} else {
				c.printf("updated: %s\n", snap.LastUpdated.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func (c *cli) entriesCmd() *cobra.Command {
	var filter domain.EntryFilter

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List auto-detected entries, newest first",
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

			filter.UserID = c.userID
			page, err := a.Pipeline.ListAutoEntries(ctx, filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tID\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, e := range page.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.OccurredOn.Format("2006-01-02"), e.ID, e.Direction,
					e.Amount.StringFixed(2), e.Category, e.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			c.printf("showing %d of %d\n", len(page.Entries), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&filter.Month, "month", 0, "Month (1-12)")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "Year (defaults to the current year when --month is set)")
	cmd.Flags().IntVar(&filter.Limit, "limit", domain.DefaultListLimit, "Maximum entries to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Entries to skip")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show this month's income and expense totals",
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

			s, err := a.Pipeline.Statistics(ctx, c.userID)
			if err != nil {
				return err
			}

			c.printf("%04d-%02d\n", s.Year, s.Month)
			c.printf("income:    %s\n", s.TotalIncome.StringFixed(2))
			c.printf("expenses:  %s (auto %s in %d, manual %s in %d)\n",
				s.TotalExpenses.StringFixed(2),
				s.AutoExpenseAmount.StringFixed(2), s.AutoExpenseCount,
				s.ManualExpenseAmount.StringFixed(2), s.ManualExpenseCount)
			c.printf("savings:   %s\n", s.Savings.StringFixed(2))
			return nil
		},
	}
}

func (c *cli) editCmd() *cobra.Command {
	var amount, category, description, merchant string

	cmd := &cobra.Command{
		Use:   "edit <entry-id>",
		Short: "Correct an auto-detected entry and adjust the balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUser(); err != nil {
				return err
			}
			ctx := cmd.Context()

			var upd domain.EntryUpdate
			if cmd.Flags().Changed("amount") {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid --amount %q", amount)
				}
				upd.Amount = &d
			}
			if cmd.Flags().Changed("category") {
				cat := domain.Category(category)
				upd.Category = &cat
			}
			if cmd.Flags().Changed("description") {
				upd.Description = &description
			}
			if cmd.Flags().Changed("merchant") {
				upd.MerchantOrSource = &merchant
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.EditEntry(ctx, c.userID, args[0], upd)
			if err != nil {
				return err
			}
			c.printf("%s\n", res.Message)
			if res.Warning != "" {
				c.printf("warning: %s\n", res.Warning)
			}
			c.printBalance(res.Balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "New amount")
	cmd.Flags().StringVar(&category, "category", "", "New category (debits only)")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&merchant, "merchant", "", "New merchant or source")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an auto-detected entry and reverse its balance effect",
		Args:  cobra.ExactArgs(1),
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

			res, err := a.Pipeline.DeleteEntry(ctx, c.userID, args[0])
			if err != nil {
				return err
			}
			c.printf("%s\n", res.Message)
			if res.Warning != "" {
				c.printf("warning: %s\n", res.Warning)
			}
			c.printBalance(res.Balance)
			return nil
		},
	}
}
