package commands

import (
	"database/sql"

	"github.com/example/vigil/am"
	"github.com/example/vigil/db"
	"github.com/example/vigil/errors"
	"github.com/example/vigil/logger"
)

// openDatabase opens and migrates the database at the configured path.
// If dbPath is non-empty it overrides the config.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := am.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		if err := cfg.EnsureDirs(); err != nil {
			return nil, errors.Wrap(err, "failed to create storage directories")
		}
		dbPath = cfg.DatabasePath()
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	return database, nil
}
