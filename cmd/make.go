package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongrato/generator"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
)

var (
	makeType   string
	makeSchema string
)

var makeSchemaCmd = &cobra.Command{
	Use:   "make:schema <name> [--type=<T>]",
	Short: "Create a collection definition under app/schemas",
	Long: `Create app/schemas/<path>/<Name>.yaml. An existing file is left untouched.

Types: ` + strings.Join(schema.KnownTypes(), ", ") + `

Examples:
  mongrato make:schema Order
  mongrato make:schema shop/order --type=array
  mongrato make:schema --schema=Invoice
`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMake(cmd, args, generator.New(cfg.Layout(), log).MakeSchema)
	},
}

var makeMigrationCmd = &cobra.Command{
	Use:   "make:migration <name> [--type=<T>]",
	Short: "Create a collection definition under database/migrations",
	Long: `Create database/migrations/<path>/<Name>.yaml. An existing file is left untouched.

Examples:
  mongrato make:migration Order
  mongrato make:migration audit/Event --type=timestamp
`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMake(cmd, args, generator.New(cfg.Layout(), log).MakeMigration)
	},
}

type makeFunc func(command, typeFlag string) (generator.Result, error)

// makeArgs returns the name and type flag. The type may also arrive as a
// positional --type=<T> token after "--".
func makeArgs(cmd *cobra.Command, args []string) (string, string, error) {
	var name, typeFlag string
	for _, a := range args {
		if strings.HasPrefix(a, schema.TypeFlagPrefix) {
			typeFlag = a
			continue
		}
		if name != "" {
			return "", "", fmt.Errorf("unexpected argument %q", a)
		}
		name = a
	}
	if name == "" {
		name = makeSchema
	}
	if cmd.Flags().Changed("type") {
		typeFlag = schema.TypeFlagPrefix + makeType
	}
	if strings.TrimSpace(paths.StripSchemaPrefix(name)) == "" {
		return "", "", fmt.Errorf("a name is required, e.g. %s Order", cmd.Name())
	}
	return name, typeFlag, nil
}

func runMake(cmd *cobra.Command, args []string, fn makeFunc) error {
	name, typeFlag, err := makeArgs(cmd, args)
	if err != nil {
		return err
	}
	res, err := fn(name, typeFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch res.Status {
	case generator.Created:
		color.New(color.FgGreen).Fprintf(out, "✅ Created %s (collection %s, type %s)\n", res.Path, res.Collection, res.Type)
	case generator.Exists:
		color.New(color.FgCyan).Fprintf(out, "ℹ️  %s already exists\n", res.Path)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{makeSchemaCmd, makeMigrationCmd} {
		c.Flags().StringVar(&makeType, "type", string(schema.DefaultType), "Field type of the collection")
		c.Flags().StringVar(&makeSchema, "schema", "", "Name, as an alternative to the positional argument")
	}
}
