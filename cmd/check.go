package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/diff"
	"github.com/ridoystarlord/mongrato/introspect"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database collections and migration status",
	Long: `Check the current state of your database and migrations.

This command will:
- Verify database connectivity
- Compare definition files with the ledger
- Compare definition files with the live collections
- Report any inconsistencies

Examples:
  mongrato check                # Check current state
  mongrato check --timeout 30s  # Set custom timeout
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := checkDatabaseSchema(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("schema check failed: %w", err)
		}
		if problems > 0 {
			return fmt.Errorf("schema check found %d inconsistencies", problems)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema check completed successfully")
		return nil
	},
}

var checkTimeout time.Duration

func init() {
	checkCmd.Flags().DurationVarP(&checkTimeout, "timeout", "t", 10*time.Second, "Timeout for schema check")
}

func checkDatabaseSchema(parent context.Context, out io.Writer) (int, error) {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return 0, err
	}
	defer s.Close(context.Background())

	if err := s.gateway.Ping(ctx); err != nil {
		return 0, fmt.Errorf("failed to ping database: %w", err)
	}

	st, err := s.runner(out, 0, false).Status(ctx)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(out, "📊 %d applied, %d pending, %d changed, %d failed\n",
		len(st.Applied), len(st.Pending), len(st.Changed), len(st.Failed))

	files, errs := loadDefinitions()
	for _, err := range errs {
		fmt.Fprintf(out, "⚠️  %v\n", err)
	}
	existing, err := introspect.ListCollections(ctx, s.gateway.Database())
	if err != nil {
		return 0, err
	}
	ops := diff.Diff(files, existing, ledgerCollections()...)

	problems := len(st.Failed) + len(st.Orphaned) + len(errs)
	for _, op := range ops {
		switch op.Type {
		case diff.OptionsDrift:
			problems++
			fmt.Fprintf(out, "⚠️  %s: %s\n", op.Collection, op.Detail)
		case diff.CreateCollection:
			fmt.Fprintf(out, "🕒 %s does not exist yet\n", op.Collection)
		case diff.UntrackedCollection:
			fmt.Fprintf(out, "ℹ️  %s has no definition file\n", op.Collection)
		}
	}
	for _, r := range st.Orphaned {
		fmt.Fprintf(out, "⚠️  %s is in the ledger but %s is gone\n", r.Collection, r.File)
	}
	if problems == 0 {
		fmt.Fprintln(out, "✅ Database collections appear to be consistent")
	}
	return problems, nil
}
