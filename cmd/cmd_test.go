package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/mongrato/config"
	"github.com/ridoystarlord/mongrato/diff"
	"github.com/ridoystarlord/mongrato/introspect"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/runner"
	"github.com/ridoystarlord/mongrato/schema"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "DATABASE_NAME", "MONGRATO_LEDGER", "LEDGER_DATABASE_URL", "NATS_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--root", root}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestMakeSchemaCommand(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, root, "make:schema", "shop/order", "--type=array")
	require.NoError(t, err)
	path := filepath.Join(root, "app", "schemas", "shop", "Order.yaml")
	assert.Contains(t, out, "Created "+path)
	assert.Contains(t, out, "collection orders, type array")

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err = execute(t, root, "make:schema", "shop/order")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMakeSchemaDefaultsToObject(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, root, "make:schema", "--schema=Invoice")
	require.NoError(t, err)
	assert.Contains(t, out, "type object")
	assert.FileExists(t, filepath.Join(root, "app", "schemas", "Invoice.yaml"))
}

func TestMakeSchemaPositionalType(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, root, "make:schema", "Event", "--", "--type=timestamp")
	require.NoError(t, err)
	assert.Contains(t, out, "type timestamp")
}

func TestMakeSchemaRejectsInvalidType(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "make:schema", "Widget", "--type=banana")
	assert.ErrorIs(t, err, schema.ErrInvalidType)
	assert.NoDirExists(t, filepath.Join(root, "app", "schemas"))
}

func TestMakeSchemaRejectsEscapingPath(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))

	_, err := execute(t, root, "make:schema", "../../../escaped")
	assert.ErrorIs(t, err, paths.ErrEscapesRoot)
	assert.NoFileExists(t, filepath.Join(parent, "Escaped.yaml"))
}

func TestMakeSchemaRequiresName(t *testing.T) {
	_, err := execute(t, t.TempDir(), "make:schema")
	assert.Error(t, err)
}

func TestMakeMigrationCommand(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "make:migration", "audit/event")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "database", "migrations", "audit", "Event.yaml"))
}

func TestValidateCommand(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "make:schema", "Order")
	require.NoError(t, err)

	out, err := execute(t, root, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema validation passed")

	bad := filepath.Join(root, "database", "migrations", "Broken.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(bad), 0o755))
	require.NoError(t, os.WriteFile(bad, []byte("type: banana\n"), 0o644))

	out, err = execute(t, root, "validate")
	assert.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, out, "Load errors (1)")
	assert.Contains(t, out, "Schema validation failed")

	out, err = execute(t, root, "validate", "--format", "json")
	assert.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, out, `"valid": false`)
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, root, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "mongrato.yaml"))
	assert.FileExists(t, filepath.Join(root, ".env.example"))
	assert.DirExists(t, filepath.Join(root, "database", "migrations"))
	assert.FileExists(t, filepath.Join(root, "app", "schemas", "User.yaml"))
	assert.Contains(t, out, "Next steps")

	// A second run loads the generated config and keeps existing files.
	out, err = execute(t, root, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestManCommand(t *testing.T) {
	out, err := execute(t, t.TempDir(), "man")
	require.NoError(t, err)
	assert.Contains(t, out, "make:schema <name> [--type=<T>]")
	assert.Contains(t, out, "MONGRATO_LEDGER_COLLECTION")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	_, err := execute(t, t.TempDir(), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRollbackRejectsZeroSteps(t *testing.T) {
	_, err := execute(t, t.TempDir(), "rollback", "--steps", "0")
	assert.EqualError(t, err, "steps must be at least 1")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &runner.Report{
		RunID:    "run-abc",
		Duration: 1500 * time.Millisecond,
		Outcomes: []runner.Outcome{
			{File: "app/schemas/Order.yaml", Status: runner.Created},
			{File: "app/schemas/Gone.yaml", Status: runner.Skipped, Reason: "source file missing"},
			{File: "app/schemas/User.yaml", Status: runner.Failed, Reason: "boom", Err: errors.New("boom")},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "skipped app/schemas/Gone.yaml (source file missing)")
	assert.Contains(t, out, "1 created, 0 already existed, 1 skipped, 1 failed in 1.5s (run run-abc)")
	assert.Contains(t, out, "app/schemas/User.yaml: boom")

	buf.Reset()
	printReport(&buf, &runner.Report{})
	assert.Contains(t, buf.String(), "No definition files found")
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, []runner.Planned{
		{File: "app/schemas/Order.yaml", Collection: "orders", Action: runner.ActionCreate,
			Definition: &schema.Definition{Options: map[string]any{"size": 1, "capped": true}}},
		{File: "app/schemas/User.yaml", Collection: "users", Action: runner.ActionExists},
		{File: "app/schemas/Bad.yaml", Action: runner.ActionInvalid, Err: errors.New("bad type")},
	})
	out := buf.String()
	assert.Contains(t, out, "CREATE orders (options: capped, size)")
	assert.Contains(t, out, "EXISTS users")
	assert.Contains(t, out, "INVALID app/schemas/Bad.yaml: bad type")
	assert.Contains(t, out, "No collections were created")
}

func TestConfirmRollback(t *testing.T) {
	recs := []ledger.Record{{File: "app/schemas/Order.yaml", Collection: "orders"}}
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		assert.Equal(t, want, confirmRollback(strings.NewReader(input), &out, recs), "input %q", input)
		assert.Contains(t, out.String(), "orders")
	}
}

func TestShowSummaryHistory(t *testing.T) {
	var buf bytes.Buffer
	showMigrationHistory(&buf, []ledger.Record{
		{File: "app/schemas/Order.yaml", Collection: "orders", Status: ledger.StatusCreated, Duration: time.Second, ExecutedBy: "me"},
		{File: "app/schemas/User.yaml", Collection: "users", Status: ledger.StatusFailed},
	}, false)
	assert.Contains(t, buf.String(), "2 total, 1 created, 0 already existed, 1 failed")
	assert.Contains(t, buf.String(), "Total execution time: 1s")
}

func TestShowTextDiff(t *testing.T) {
	var buf bytes.Buffer
	showTextDiff(&buf, []diff.Operation{
		{Type: diff.CreateCollection, Collection: "orders", File: "app/schemas/Order.yaml"},
		{Type: diff.CollectionExists, Collection: "users"},
		{Type: diff.OptionsDrift, Collection: "events", Detail: "capped: definition true, database false"},
		{Type: diff.UntrackedCollection, Collection: "legacy"},
	})
	out := buf.String()
	assert.Contains(t, out, "CREATE orders  [app/schemas/Order.yaml]")
	assert.Contains(t, out, "DRIFT events: capped")
	assert.Contains(t, out, "UNTRACKED legacy")
	assert.Contains(t, out, "1 to create, 1 in place, 1 drifted, 1 untracked")

	buf.Reset()
	showTextDiff(&buf, []diff.Operation{{Type: diff.CollectionExists, Collection: "users"}})
	assert.Contains(t, buf.String(), "No differences found")
}

func TestShowMigrationLogs(t *testing.T) {
	var buf bytes.Buffer
	showMigrationLogs(&buf, []ledger.Entry{
		{Level: ledger.LevelError, Message: "Migration failed: app/schemas/User.yaml", Details: "boom", User: "me"},
		{Level: ledger.LevelSuccess, Message: "Collection created: app.orders"},
	})
	out := buf.String()
	assert.Contains(t, out, "Migration failed: app/schemas/User.yaml (by me)")
	assert.Contains(t, out, "Details: boom")
	assert.Contains(t, out, "Showing 2 recent log entries")
}

func TestLedgerCollectionsFollowBackend(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	existing := []introspect.ExistingCollection{{Name: "schema_migrations"}, {Name: "migration_logs"}}

	cfg = &config.Config{Ledger: config.LedgerMongo}
	assert.Equal(t, []string{"schema_migrations", "migration_logs"}, ledgerCollections())
	assert.Empty(t, diff.Diff(nil, existing, ledgerCollections()...))

	for _, backend := range []string{config.LedgerPostgres, config.LedgerOff} {
		cfg = &config.Config{Ledger: backend, LedgerNamespace: "schema_migrations"}
		assert.Nil(t, ledgerCollections(), backend)
		ops := diff.Diff(nil, existing, ledgerCollections()...)
		assert.Equal(t, 2, diff.Counts(ops)[diff.UntrackedCollection], backend)
	}
}
