package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/runner"
)

var (
	dryRunMigrate      bool
	forceMigrate       bool
	migrateSchema      string
	migrateConcurrency int
)

var errMigrationFailed = errors.New("one or more migrations failed")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the collections defined under app/schemas and database/migrations",
	Long: `Create one collection per definition file. Files the ledger already
records as applied are skipped unless --force is given.

Examples:
  mongrato migrate                     # Every schema, then every migration
  mongrato migrate --schema=shop/Order # One schema and its migration
  mongrato migrate --dry-run           # Show what would be created
  mongrato migrate --concurrency 1     # One collection at a time
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		out := cmd.OutOrStdout()
		r := s.runner(out, migrateConcurrency, forceMigrate)

		if dryRunMigrate {
			plan, err := r.Preview(ctx, migrateSchema)
			if err != nil {
				return fmt.Errorf("dry run failed: %w", err)
			}
			printPlan(out, plan)
			return nil
		}

		var report *runner.Report
		if migrateSchema != "" {
			report, err = r.MigrateNamed(ctx, migrateSchema)
		} else {
			report, err = r.MigrateAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		printReport(out, report)
		if report.Failed() {
			return errMigrationFailed
		}
		return nil
	},
}

func printReport(out io.Writer, report *runner.Report) {
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "✅ No definition files found.")
		return
	}

	for _, o := range report.Outcomes {
		if o.Status == runner.Skipped {
			fmt.Fprintf(out, "   - skipped %s (%s)\n", o.File, o.Reason)
		}
	}

	fmt.Fprintf(out, "\n📊 %d created, %d already existed, %d skipped, %d failed in %v (run %s)\n",
		report.Count(runner.Created), report.Count(runner.AlreadyExists),
		report.Count(runner.Skipped), report.Count(runner.Failed),
		report.Duration.Round(time.Millisecond), report.RunID)

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(out, "❌ Failed migrations:")
		for _, o := range failures {
			fmt.Fprintf(out, "   - %s: %s\n", o.File, o.Reason)
		}
		fmt.Fprintln(out, "💡 Fix the issues and run 'mongrato migrate' again.")
		return
	}
	fmt.Fprintln(out, "✅ All migrations applied.")
}

func printPlan(out io.Writer, plan []runner.Planned) {
	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(out, "\n================ DRY RUN: Migration Preview ================")
	if len(plan) == 0 {
		fmt.Fprintln(out, "✅ No definition files found.")
	}
	for _, p := range plan {
		switch p.Action {
		case runner.ActionCreate:
			green.Fprintf(out, "  ➕ CREATE %s", p.Collection)
			if p.Definition != nil && len(p.Definition.Options) > 0 {
				keys := make([]string, 0, len(p.Definition.Options))
				for k := range p.Definition.Options {
					keys = append(keys, k)
				}
				fmt.Fprintf(out, " (options: %s)", strings.Join(sortedStrings(keys), ", "))
			}
			fmt.Fprintf(out, "  [%s]\n", p.File)
		case runner.ActionExists:
			cyan.Fprintf(out, "  = EXISTS %s  [%s]\n", p.Collection, p.File)
		case runner.ActionApplied:
			cyan.Fprintf(out, "  ✓ APPLIED %s  [%s]\n", p.Collection, p.File)
		case runner.ActionMissing:
			yellow.Fprintf(out, "  ? MISSING %s\n", p.File)
		case runner.ActionInvalid:
			red.Fprintf(out, "  ❌ INVALID %s: %v\n", p.File, p.Err)
		}
	}
	fmt.Fprintln(out, "============================================================")
	fmt.Fprintln(out, "(Dry run only. No collections were created.)")
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRunMigrate, "dry-run", false, "Preview the collections that would be created")
	migrateCmd.Flags().BoolVar(&forceMigrate, "force", false, "Re-apply files the ledger records as applied")
	migrateCmd.Flags().StringVar(&migrateSchema, "schema", "", "Migrate one schema (and its migration) by name")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", 0, "Collections created in parallel (default from config)")
}
