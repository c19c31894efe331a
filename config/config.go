// Package config resolves mongrato settings from mongrato.yaml, .env and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/utils"
)

// Ledger backends.
const (
	LedgerMongo    = "mongo"
	LedgerPostgres = "postgres"
	LedgerOff      = "off"
)

// DefaultDatabaseName is used when neither DATABASE_NAME nor the URL path names one.
const DefaultDatabaseName = "test"

type Config struct {
	Root string

	DatabaseURL  string        // DATABASE_URL
	DatabaseName string        // DATABASE_NAME (default: URL path, then "test")
	Timeout      time.Duration // MONGRATO_TIMEOUT (default 10s)

	SchemaDir    string // MONGRATO_SCHEMA_DIR (default "app/schemas")
	MigrationDir string // MONGRATO_MIGRATION_DIR (default "database/migrations")

	Concurrency int // MONGRATO_CONCURRENCY (default 4)

	Ledger          string // MONGRATO_LEDGER: mongo, postgres or off
	LedgerURL       string // LEDGER_DATABASE_URL (postgres ledger)
	LedgerNamespace string // MONGRATO_LEDGER_COLLECTION (default "schema_migrations")

	NATSURL string // NATS_URL (optional, empty = no events)

	JSONFakerURL string // JSON_FAKER_URL, read for the model layer only
}

// Load reads configuration for the project rooted at root. configFile,
// when non-empty, must exist; otherwise <root>/mongrato.yaml is optional.
func Load(root, configFile string) (*Config, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if err := utils.LoadEnv(abs); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("mongrato")
		v.SetConfigType("yaml")
		v.AddConfigPath(abs)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read mongrato.yaml: %w", err)
			}
		}
	}

	c := &Config{
		Root:            abs,
		DatabaseURL:     v.GetString("database.url"),
		DatabaseName:    v.GetString("database.name"),
		Timeout:         v.GetDuration("database.timeout"),
		SchemaDir:       v.GetString("paths.schemas"),
		MigrationDir:    v.GetString("paths.migrations"),
		Concurrency:     v.GetInt("migrate.concurrency"),
		Ledger:          strings.ToLower(v.GetString("ledger.backend")),
		LedgerURL:       v.GetString("ledger.url"),
		LedgerNamespace: v.GetString("ledger.collection"),
		NATSURL:         v.GetString("events.nats_url"),
		JSONFakerURL:    v.GetString("json_faker_url"),
	}

	if c.DatabaseName == "" {
		c.DatabaseName = databaseFromURL(c.DatabaseURL)
	}
	if c.Concurrency < 1 {
		return nil, fmt.Errorf("migrate.concurrency must be at least 1, got %d", c.Concurrency)
	}
	switch c.Ledger {
	case LedgerMongo, LedgerOff:
	case LedgerPostgres:
		if c.LedgerURL == "" {
			return nil, fmt.Errorf("ledger backend postgres requires LEDGER_DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (want mongo, postgres or off)", c.Ledger)
	}

	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.timeout", 10*time.Second)
	v.SetDefault("paths.schemas", paths.DefaultSchemaDir)
	v.SetDefault("paths.migrations", paths.DefaultMigrationDir)
	v.SetDefault("migrate.concurrency", 4)
	v.SetDefault("ledger.backend", LedgerMongo)
	v.SetDefault("ledger.collection", "schema_migrations")
}

func bindEnv(v *viper.Viper) {
	for key, env := range map[string]string{
		"database.url":        "DATABASE_URL",
		"database.name":       "DATABASE_NAME",
		"database.timeout":    "MONGRATO_TIMEOUT",
		"paths.schemas":       "MONGRATO_SCHEMA_DIR",
		"paths.migrations":    "MONGRATO_MIGRATION_DIR",
		"migrate.concurrency": "MONGRATO_CONCURRENCY",
		"ledger.backend":      "MONGRATO_LEDGER",
		"ledger.url":          "LEDGER_DATABASE_URL",
		"ledger.collection":   "MONGRATO_LEDGER_COLLECTION",
		"events.nats_url":     "NATS_URL",
		"json_faker_url":      "JSON_FAKER_URL",
	} {
		// BindEnv only errors when given no key.
		_ = v.BindEnv(key, env)
	}
}

// Layout is the project's schema/migration layout.
func (c *Config) Layout() paths.Layout {
	return paths.Layout{
		Root:         c.Root,
		SchemaDir:    c.SchemaDir,
		MigrationDir: c.MigrationDir,
	}
}

// RequireDatabase errors when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set (in .env, mongrato.yaml or environment)")
	}
	return nil
}

func databaseFromURL(raw string) string {
	if raw == "" {
		return DefaultDatabaseName
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DefaultDatabaseName
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return DefaultDatabaseName
	}
	return name
}
