package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/ledger"
)

var (
	historyLimit      int
	historyCollection string
	historyDetailed   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show detailed migration history",
	Long: `Show migration history with timestamps, execution times, and user information.

Examples:
  mongrato history                      # Show all migration history
  mongrato history --limit 10           # Show last 10 migrations
  mongrato history --collection orders  # Show migrations for one collection
  mongrato history --detailed           # Show detailed information
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		history, err := s.ledger.History(ctx, ledger.Filter{Limit: historyLimit, Collection: historyCollection})
		if err != nil {
			return fmt.Errorf("error getting migration history: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintln(out, "📋 No migration history found")
			return nil
		}
		showMigrationHistory(out, history, historyDetailed)
		return nil
	},
}

func showMigrationHistory(out io.Writer, history []ledger.Record, detailed bool) {
	fmt.Fprintln(out, "📋 Migration History")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if detailed {
		showDetailedHistory(out, history)
	} else {
		showSummaryHistory(out, history)
	}
}

func statusIcon(status string) string {
	switch status {
	case ledger.StatusCreated:
		return color.New(color.FgGreen, color.Bold).Sprint("✅")
	case ledger.StatusExists:
		return color.New(color.FgCyan, color.Bold).Sprint("➖")
	case ledger.StatusFailed:
		return color.New(color.FgRed, color.Bold).Sprint("❌")
	}
	return color.New(color.FgYellow, color.Bold).Sprint("⚠️")
}

func showDetailedHistory(out io.Writer, history []ledger.Record) {
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	for i, record := range history {
		fmt.Fprintf(out, "\n%d. %s ", i+1, statusIcon(record.Status))
		blue.Fprintf(out, "%s\n", record.File)

		cyan.Fprintf(out, "   📦 Collection: %s\n", record.Collection)
		if record.Namespace != "" {
			cyan.Fprintf(out, "   🗂  Namespace: %s\n", record.Namespace)
		}
		cyan.Fprintf(out, "   📅 Executed: %s\n", record.AppliedAt.Local().Format("2006-01-02 15:04:05"))
		if record.Duration > 0 {
			cyan.Fprintf(out, "   ⏱️  Duration: %v\n", record.Duration)
		}
		if record.ExecutedBy != "" {
			cyan.Fprintf(out, "   👤 User: %s\n", record.ExecutedBy)
		}
		cyan.Fprintf(out, "   📊 Status: %s\n", record.Status)
		if record.RunID != "" {
			cyan.Fprintf(out, "   🏃 Run: %s\n", record.RunID)
		}
		if record.Status == ledger.StatusFailed && record.Error != "" {
			red.Fprintf(out, "   💥 Error: %s\n", record.Error)
		}
		if record.Checksum != "" {
			cyan.Fprintf(out, "   🔍 Checksum: %s\n", shortChecksum(record.Checksum))
		}
	}
}

func showSummaryHistory(out io.Writer, history []ledger.Record) {
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Fprintf(out, "%-4s %-6s %-25s %-20s %-12s %-10s %s\n", "#", "Status", "File", "Collection", "Duration", "User", "Date")
	fmt.Fprintln(out, strings.Repeat("-", 100))

	var (
		created, exists, failed int
		totalDuration           time.Duration
	)
	for i, record := range history {
		duration := "N/A"
		if record.Duration > 0 {
			duration = record.Duration.String()
		}
		user := record.ExecutedBy
		if user == "" {
			user = "N/A"
		}

		fmt.Fprintf(out, "%-4d %-6s %-25s %-20s %-12s %-10s %s\n",
			i+1,
			statusIcon(record.Status),
			blue.Sprint(truncate(record.File, 25)),
			truncate(record.Collection, 20),
			duration,
			user,
			record.AppliedAt.Local().Format("2006-01-02 15:04"),
		)

		switch record.Status {
		case ledger.StatusCreated:
			created++
		case ledger.StatusExists:
			exists++
		case ledger.StatusFailed:
			failed++
		}
		totalDuration += record.Duration
	}

	fmt.Fprintln(out, strings.Repeat("-", 100))
	fmt.Fprintf(out, "📊 Summary: %d total, %d created, %d already existed, %d failed\n",
		len(history), created, exists, failed)
	if totalDuration > 0 {
		fmt.Fprintf(out, "⏱️  Total execution time: %v\n", totalDuration)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "Limit number of records to show (0 = all)")
	historyCmd.Flags().StringVarP(&historyCollection, "collection", "c", "", "Filter by collection name")
	historyCmd.Flags().BoolVarP(&historyDetailed, "detailed", "d", false, "Show detailed information")
}
