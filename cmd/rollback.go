package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ridoystarlord/mongrato/ledger"
)

var (
	steps          int
	rollbackYes    bool
	isInteractive  = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	errNotApproved = errors.New("rollback cancelled")
)

func init() {
	rollbackCmd.Flags().IntVarP(&steps, "steps", "s", 1, "Number of migrations to rollback")
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "Do not ask for confirmation")
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Drop the collections created by the last migrations",
	Long: `Drop the collections created by the most recent ledger entries and
remove those entries. Entries that found their collection already in place
are never dropped.

Examples:
  mongrato rollback            # Rollback the last migration
  mongrato rollback --steps=3  # Rollback the last 3 migrations
  mongrato rollback -s 5 -y    # No confirmation prompt
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if steps < 1 {
			return fmt.Errorf("steps must be at least 1")
		}

		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		out := cmd.OutOrStdout()
		if !rollbackYes {
			candidates, err := s.ledger.History(ctx, ledger.Filter{Status: ledger.StatusCreated, Limit: steps})
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Fprintln(out, "✅ No migrations to rollback.")
				return nil
			}
			if !isInteractive() {
				return fmt.Errorf("refusing to drop collections without --yes in a non-interactive session")
			}
			if !confirmRollback(cmd.InOrStdin(), out, candidates) {
				return errNotApproved
			}
		}

		done, err := s.runner(out, 0, false).Rollback(ctx, steps)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}

		switch {
		case len(done) == 0:
			fmt.Fprintln(out, "✅ No migrations to rollback.")
		case len(done) < steps:
			fmt.Fprintf(out, "⚠️  Only %d migrations available, rolled back all.\n", len(done))
		case len(done) == 1:
			fmt.Fprintln(out, "✅ Rolled back 1 migration.")
		default:
			fmt.Fprintf(out, "✅ Rolled back %d migrations.\n", len(done))
		}
		return nil
	},
}

func confirmRollback(in io.Reader, out io.Writer, recs []ledger.Record) bool {
	fmt.Fprintln(out, "The following collections will be dropped:")
	for _, r := range recs {
		fmt.Fprintf(out, "   - %s (%s)\n", r.Collection, r.File)
	}
	fmt.Fprint(out, "Continue? [y/N]: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
