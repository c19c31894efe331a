package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/introspect"
	"github.com/ridoystarlord/mongrato/validator"
)

var errValidationFailed = errors.New("schema validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate definition files",
	Long: `Validate the definition files under app/schemas and database/migrations.

This command checks:
- Definition syntax (name, options, type)
- Collection names derived from file names
- Field types (one of the known types)
- Collection options (supported keys and value types)
- Collections defined by more than one file
- Database state (when connected to database)

The validator works in two modes:
- Offline: Validates definition files only (no database required)
- Online: Also reports collections that already exist (requires DATABASE_URL)

Examples:
  mongrato validate                  # Validate every definition file
  mongrato validate --format json    # Output validation results as JSON
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, loadErrs := loadDefinitions()
		for _, err := range loadErrs {
			log.Debugw("definition failed to load", "error", err)
		}

		v := &validator.DefinitionValidator{Existing: existingCollections(cmd.Context())}
		result := v.Validate(files)

		out := cmd.OutOrStdout()
		var err error
		if validateFormat == "json" {
			err = outputJSON(out, result)
		} else {
			if len(loadErrs) > 0 {
				fmt.Fprintf(out, "🔴 Load errors (%d):\n", len(loadErrs))
				for i, e := range loadErrs {
					fmt.Fprintf(out, "  %d. %v\n", i+1, e)
				}
				fmt.Fprintln(out)
			}
			err = outputText(out, result)
		}
		if err != nil {
			return err
		}
		if !result.Valid {
			return errValidationFailed
		}
		return nil
	},
}

var validateFormat string

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

// existingCollections returns the live collection names, or nil when no
// database is configured or reachable.
func existingCollections(parent context.Context) map[string]bool {
	if cfg.DatabaseURL == "" {
		log.Debug("DATABASE_URL not set, using offline validation")
		return nil
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Timeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		log.Warnw("database unavailable, using offline validation", "error", err)
		return nil
	}
	defer s.Close(context.Background())

	cols, err := introspect.ListCollections(ctx, s.gateway.Database())
	if err != nil {
		log.Warnw("listing collections failed, using offline validation", "error", err)
		return nil
	}
	return introspect.CollectionNames(cols)
}

func outputJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printIssues(out io.Writer, title string, issues []validator.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
	for i, issue := range issues {
		fmt.Fprintf(out, "  %d. ", i+1)
		if issue.File != "" {
			fmt.Fprintf(out, "[%s]", issue.File)
		}
		if issue.Collection != "" {
			fmt.Fprintf(out, " %s", issue.Collection)
		}
		if issue.Option != "" {
			fmt.Fprintf(out, " (option: %s)", issue.Option)
		}
		fmt.Fprintf(out, ": %s\n", issue.Message)
	}
}

func outputText(out io.Writer, result *validator.ValidationResult) error {
	if result.Valid {
		color.New(color.FgGreen).Fprintln(out, "✅ Schema validation passed!")
	} else {
		color.New(color.FgRed).Fprintln(out, "❌ Schema validation failed!")
	}

	printIssues(out, "🔴 Errors", result.Errors)
	printIssues(out, "🟡 Warnings", result.Warnings)
	printIssues(out, "🔵 Info", result.Info)

	fmt.Fprintf(out, "\n📊 Summary:\n")
	fmt.Fprintf(out, "  • Errors: %d\n", len(result.Errors))
	fmt.Fprintf(out, "  • Warnings: %d\n", len(result.Warnings))
	fmt.Fprintf(out, "  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Fprintf(out, "\n🎉 Your definitions are valid and ready to migrate!\n")
	} else {
		fmt.Fprintf(out, "\n💡 Fix the errors above before running migrate.\n")
	}
	return nil
}
