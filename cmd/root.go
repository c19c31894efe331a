package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridoystarlord/mongrato/config"
	"github.com/ridoystarlord/mongrato/logger"
)

var (
	rootDir    string
	configPath string
	debugMode  bool
	noColor    bool

	cfg *config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "mongrato",
	Short: "MongoDB schema scaffolding and migration tool",
	Long: `mongrato scaffolds collection definition files and applies them to MongoDB.

Examples:

  mongrato init
  mongrato make:schema shop/Order --type=object
  mongrato migrate
  mongrato migrate --schema=shop/Order
  mongrato status
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}

		l, err := logger.New(debugMode)
		if err != nil {
			return err
		}
		log = l

		c, err := config.Load(rootDir, configPath)
		if err != nil {
			return err
		}
		cfg = c
		log.Debugw("configuration loaded", "root", cfg.Root, "database", cfg.DatabaseName, "ledger", cfg.Ledger)
		return nil
	},
}

// Execute runs the CLI
func Execute() {
	err := rootCmd.Execute()
	if log != nil {
		log.Sync()
	}
	if err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root containing app/schemas and database/migrations")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <root>/mongrato.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(makeSchemaCmd)
	rootCmd.AddCommand(makeMigrationCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(manCmd)
}
