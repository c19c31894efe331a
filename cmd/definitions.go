package cmd

import (
	"github.com/ridoystarlord/mongrato/config"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/loader"
	"github.com/ridoystarlord/mongrato/schema"
)

// loadDefinitions loads the schema root then the migration root.
func loadDefinitions() ([]schema.File, []error) {
	layout := cfg.Layout()
	files, errs := loader.LoadDir(layout.SchemaRoot(), schema.KindSchema)
	migrations, migErrs := loader.LoadDir(layout.MigrationRoot(), schema.KindMigration)
	return append(files, migrations...), append(errs, migErrs...)
}

// ledgerCollections names the collections the ledger keeps in the target
// database. Other backends keep nothing there.
func ledgerCollections() []string {
	if cfg.Ledger != config.LedgerMongo {
		return nil
	}
	return ledger.Reserved(cfg.LedgerNamespace)
}
