package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied, changed, pending and failed definition files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		st, err := s.runner(cmd.OutOrStdout(), 0, false).Status(ctx)
		if err != nil {
			return fmt.Errorf("status error: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "✅ Applied migrations:")
		for _, r := range st.Applied {
			fmt.Fprintf(out, "   - %s (%s, %s)\n", r.File, r.Collection, r.Status)
		}

		if len(st.Changed) > 0 {
			fmt.Fprintln(out, "\n✏️  Changed since applied (run 'mongrato migrate' to re-apply):")
			for _, r := range st.Changed {
				fmt.Fprintln(out, "   -", r.File)
			}
		}

		if len(st.Failed) > 0 {
			fmt.Fprintln(out, "\n❌ Failed migrations:")
			for _, r := range st.Failed {
				fmt.Fprintf(out, "   - %s: %s\n", r.File, r.Error)
			}
		}

		if len(st.Orphaned) > 0 {
			fmt.Fprintln(out, "\n⚠️  Applied but missing on disk:")
			for _, r := range st.Orphaned {
				fmt.Fprintf(out, "   - %s (%s)\n", r.File, r.Collection)
			}
		}

		fmt.Fprintln(out, "\n🕒 Pending migrations:")
		for _, f := range st.Pending {
			fmt.Fprintln(out, "   -", f)
		}
		return nil
	},
}
