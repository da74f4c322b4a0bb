package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dvloznov/expense-tracker/internal/app"
	"github.com/dvloznov/expense-tracker/internal/config"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parserFunc func(ctx context.Context, message string) (string, error)

func (f parserFunc) ParseMessage(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

func fakeModel(ctx context.Context, message string) (string, error) {
	switch {
	case strings.Contains(message, "SWIGGY"):
		return `{"transaction_type":"Debit","amount":450,"merchant_or_source":"Swiggy","expense_category":"Food"}`, nil
	case strings.Contains(message, "PAYROLL"):
		return `{"transaction_type":"Credit","amount":"1,000","merchant_or_source":"Acme Payroll","expense_category":"Other"}`, nil
	default:
		return "not a transaction", nil
	}
}

type harness struct {
	t          *testing.T
	configPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "NOTION_TOKEN", "EXPENSE_DATABASE_PATH", "EXPENSE_LOG_LEVEL", "EXPENSE_USER"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	cfg := "log:\n  level: error\ndatabase:\n  path: " + filepath.Join(dir, "ledger.db") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &harness{t: t, configPath: path}
}

// run executes one CLI invocation against the harness database.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	out := &bytes.Buffer{}
	c := &cli{
		out: out,
		newApp: func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.App, error) {
			a, err := app.New(ctx, cfg, zerolog.Nop())
			if err != nil {
				return nil, err
			}
			a.Pipeline = pipeline.New(a.Store, parserFunc(fakeModel), pipeline.DefaultConfig(), zerolog.Nop())
			return a, nil
		},
	}
	cmd := c.rootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", h.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

var entryIDPattern = regexp.MustCompile(`entry:\s+(\S+)`)

func TestIngestEditDelete(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("-u", "alice", "ingest", "Rs.450 debited from A/c XX1234 at SWIGGY")
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction processed successfully! Debit of 450.00 from Swiggy")
	assert.Contains(t, out, "balance: -450.00")

	m := entryIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	entryID := m[1]

	out, err = h.run("-u", "alice", "ingest", "Rs.450 debited from A/c XX1234 at SWIGGY")
	require.NoError(t, err)
	assert.Contains(t, out, pipeline.MessageDuplicate)

	out, err = h.run("-u", "alice", "edit", entryID, "--amount", "500", "--category", "Shopping")
	require.NoError(t, err)
	assert.Contains(t, out, pipeline.MessageEntryUpdated)
	assert.Contains(t, out, "balance: -500.00")

	_, err = h.run("-u", "bob", "edit", entryID, "--amount", "1")
	assert.Error(t, err)

	out, err = h.run("-u", "alice", "delete", entryID)
	require.NoError(t, err)
	assert.Contains(t, out, pipeline.MessageEntryDeleted)
	assert.Contains(t, out, "balance: 0.00")

	out, err = h.run("-u", "alice", "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "balance: 0.00 (credits 0.00, debits 0.00)")
}

func TestImportAndQueries(t *testing.T) {
	h := newHarness(t)

	file := filepath.Join(t.TempDir(), "messages.txt")
	content := strings.Join([]string{
		"INR 1,000 credited to A/c XX1234 by ACME PAYROLL",
		"",
		"Rs.450 debited from A/c XX1234 at SWIGGY",
		"Rs.450 debited from A/c XX1234 at SWIGGY",
		"hi",
		"Your OTP for login is 123456",
	}, "\n")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	out, err := h.run("-u", "alice", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "source: messages.txt (5 messages)")
	assert.Contains(t, out, "total: 5  processed: 2  duplicates: 1  parse failed: 1  invalid: 1")

	out, err = h.run("-u", "alice", "entries")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto: Swiggy")
	assert.Contains(t, out, "Auto: Acme Payroll")
	assert.Contains(t, out, "showing 2 of 2")

	out, err = h.run("-u", "alice", "entries", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "showing 1 of 2")

	out, err = h.run("-u", "alice", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "income:    1000.00")
	assert.Contains(t, out, "savings:   550.00")

	out, err = h.run("-u", "bob", "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "updated: never")
}

func TestMigrate(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "0001")
	assert.Contains(t, out, "init")
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("ingest", "Rs.450 debited at SWIGGY")
	assert.ErrorContains(t, err, "--user is required")

	_, err = h.run("-u", "alice", "import", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = h.run("-u", "alice", "export-log")
	assert.ErrorContains(t, err, "project_id")

	_, err = h.run("-u", "alice", "sync-notion")
	assert.ErrorContains(t, err, "NOTION_TOKEN")

	_, err = h.run("-u", "alice", "edit", "missing-id")
	assert.Error(t, err, "unknown entry")
}
