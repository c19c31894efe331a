package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/ledger"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent migration activities",
	Long: `Show recent migration activities and logs.

Examples:
  mongrato log             # Show recent migration logs
  mongrato log --limit 20  # Show last 20 log entries
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context())
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		logs, err := s.ledger.Logs(ctx, logLimit)
		if err != nil {
			return fmt.Errorf("error getting migration logs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(logs) == 0 {
			fmt.Fprintln(out, "📋 No migration logs found")
			return nil
		}
		showMigrationLogs(out, logs)
		return nil
	},
}

func showMigrationLogs(out io.Writer, logs []ledger.Entry) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(out, "📋 Recent Migration Activities")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	for i, entry := range logs {
		fmt.Fprintf(out, "\n%d. ", i+1)

		switch entry.Level {
		case ledger.LevelInfo:
			blue.Fprint(out, "ℹ️  ")
		case ledger.LevelWarn:
			yellow.Fprint(out, "⚠️  ")
		case ledger.LevelError:
			red.Fprint(out, "❌ ")
		case ledger.LevelSuccess:
			green.Fprint(out, "✅ ")
		default:
			fmt.Fprint(out, "📝 ")
		}

		cyan.Fprintf(out, "[%s] ", entry.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprint(out, entry.Message)
		if entry.User != "" {
			fmt.Fprintf(out, " (by %s)", entry.User)
		}
		fmt.Fprintln(out)

		if entry.Details != "" {
			cyan.Fprintf(out, "   📄 Details: %s\n", entry.Details)
		}
	}

	fmt.Fprintln(out, strings.Repeat("-", 60))
	fmt.Fprintf(out, "📊 Showing %d recent log entries\n", len(logs))
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "l", 50, "Limit number of log entries to show")
}
