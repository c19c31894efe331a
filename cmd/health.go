package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Long: `Check if the database is accessible and responsive.

Examples:
  mongrato health                # Check default database connection
  mongrato health --timeout 10s  # Set custom timeout
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDatabaseHealth(cmd.Context(), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Database is healthy and accessible")
		return nil
	},
}

var healthTimeout time.Duration

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for health check")
}

func checkDatabaseHealth(parent context.Context, out io.Writer) error {
	ctx, cancel := context.WithTimeout(parent, healthTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if err := s.gateway.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	count, err := s.ledger.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count migrations: %w", err)
	}
	if count == 0 {
		fmt.Fprintln(out, "⚠️  Database is accessible but the ledger is empty")
		fmt.Fprintln(out, "   Run 'mongrato migrate' to apply your definitions")
		return nil
	}
	fmt.Fprintf(out, "📊 Found %d ledger entries in %s\n", count, cfg.DatabaseName)
	return nil
}
