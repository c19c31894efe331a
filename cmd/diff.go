package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/diff"
	"github.com/ridoystarlord/mongrato/introspect"
)

var diffFormat string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between definition files and the database",
	Long: `Show differences between your definition files and the live collections.

Examples:
  mongrato diff                 # Show differences in text format
  mongrato diff --format json   # Machine-readable output
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		defer cancel()

		files, errs := loadDefinitions()
		for _, err := range errs {
			log.Warnw("definition failed to load", "error", err)
		}

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(context.Background())

		existing, err := introspect.ListCollections(ctx, s.gateway.Database())
		if err != nil {
			return fmt.Errorf("error introspecting database: %w", err)
		}

		ops := diff.Diff(files, existing, ledgerCollections()...)
		out := cmd.OutOrStdout()
		if diffFormat == "json" {
			if ops == nil {
				ops = []diff.Operation{}
			}
			return outputJSON(out, ops)
		}
		showTextDiff(out, ops)
		return nil
	},
}

func showTextDiff(out io.Writer, ops []diff.Operation) {
	counts := diff.Counts(ops)
	if counts[diff.CreateCollection]+counts[diff.OptionsDrift]+counts[diff.UntrackedCollection] == 0 {
		fmt.Fprintln(out, "✅ No differences found between definitions and database")
		return
	}

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	blue := color.New(color.FgBlue)

	fmt.Fprintln(out, "📋 Collections:")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	for _, op := range ops {
		switch op.Type {
		case diff.CreateCollection:
			green.Fprintf(out, "  ➕ CREATE %s", op.Collection)
			fmt.Fprintf(out, "  [%s]\n", op.File)
		case diff.OptionsDrift:
			yellow.Fprintf(out, "  ⚡ DRIFT %s: %s\n", op.Collection, op.Detail)
		case diff.UntrackedCollection:
			blue.Fprintf(out, "  ❔ UNTRACKED %s\n", op.Collection)
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 50))
	fmt.Fprintf(out, "📊 %d to create, %d in place, %d drifted, %d untracked\n",
		counts[diff.CreateCollection], counts[diff.CollectionExists],
		counts[diff.OptionsDrift], counts[diff.UntrackedCollection])
}

func init() {
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text, json)")
}
