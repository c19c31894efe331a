package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/schema"
)

var manPage = `mongrato - MongoDB schema scaffolding and migration tool

USAGE
  mongrato <command> [flags]

SCAFFOLDING
  make:schema <name> [--type=<T>]      app/schemas/<path>/<Name>.yaml
  make:migration <name> [--type=<T>]   database/migrations/<path>/<Name>.yaml

  <name> may contain "/" to nest the file; the collection name is the last
  segment lower-cased with an "s" appended unless it already ends in "s".
  <T> is one of: ` + strings.Join(schema.KnownTypes(), ", ") + `

MIGRATING
  migrate                  every schema, then every migration
  migrate --schema=<Name>  one schema and the migration of the same name
  migrate --dry-run        show what would be created
  status                   applied, pending, changed and failed files
  rollback [--steps N]     drop collections created by the last N entries
  history | log | export   inspect the ledger

CHECKING
  validate | diff | check | health

ENVIRONMENT
  DATABASE_URL, DATABASE_NAME, JSON_FAKER_URL, NATS_URL, LEDGER_DATABASE_URL,
  MONGRATO_TIMEOUT, MONGRATO_SCHEMA_DIR, MONGRATO_MIGRATION_DIR,
  MONGRATO_CONCURRENCY, MONGRATO_LEDGER, MONGRATO_LEDGER_COLLECTION
`

var manCmd = &cobra.Command{
	Use:   "man",
	Short: "Print the manual page",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), manPage)
	},
}
