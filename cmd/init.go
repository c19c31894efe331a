package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/generator"
)

const configTemplate = `# mongrato configuration. Environment variables override these values.
database:
  url: ""            # DATABASE_URL, e.g. mongodb://localhost:27017/app
  name: ""           # DATABASE_NAME (default: URL path, then "test")
  timeout: 10s

paths:
  schemas: app/schemas
  migrations: database/migrations

migrate:
  concurrency: 4

ledger:
  backend: mongo      # mongo, postgres or "off"
  collection: schema_migrations
  url: ""            # LEDGER_DATABASE_URL for the postgres backend

events:
  nats_url: ""       # NATS_URL; empty disables events
`

const envTemplate = `DATABASE_URL=mongodb://localhost:27017/app
# DATABASE_NAME=app
# JSON_FAKER_URL=
`

var initExample bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new mongrato project",
	Long: `Create mongrato.yaml, .env.example and the schema and migration directories.

Examples:
  mongrato init                 # Config and directories
  mongrato init --example=false # Skip the example User schema
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		layout := cfg.Layout()

		for _, f := range []struct{ path, content string }{
			{filepath.Join(layout.Root, "mongrato.yaml"), configTemplate},
			{filepath.Join(layout.Root, ".env.example"), envTemplate},
		} {
			if _, err := os.Stat(f.path); err == nil {
				fmt.Fprintf(out, "ℹ️  %s already exists\n", f.path)
				continue
			}
			if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", f.path, err)
			}
			fmt.Fprintf(out, "✅ Created %s\n", f.path)
		}

		for _, dir := range []string{layout.SchemaRoot(), layout.MigrationRoot()} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			fmt.Fprintf(out, "✅ Directory %s ready\n", dir)
		}

		if initExample {
			res, err := generator.New(layout, log).MakeSchema("User", "")
			if err != nil {
				return err
			}
			if res.Status == generator.Created {
				fmt.Fprintf(out, "✅ Created example schema %s\n", res.Path)
			}
		}

		fmt.Fprintln(out, "\n📝 Next steps:")
		fmt.Fprintln(out, "1. Set DATABASE_URL in .env")
		fmt.Fprintln(out, "2. Add definitions with 'mongrato make:schema <Name>'")
		fmt.Fprintln(out, "3. Run 'mongrato migrate'")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initExample, "example", true, "Create an example User schema")
}
