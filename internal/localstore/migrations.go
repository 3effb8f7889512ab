package localstore

import (
	"database/sql"
	"fmt"
)

// schemaStep upgrades the storage file by one version. Steps are applied in
// slice order; the file's version is the number of steps applied so far.
type schemaStep struct {
	name string
	sql  string
}

var schemaSteps = []schemaStep{
	{
		name: "key/value entries",
		sql: `
CREATE TABLE IF NOT EXISTS entries (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`,
	},
}

// currentVersion reads the schema version stored in the sqlite header.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// runMigrations brings the file up to the latest schema. Each step commits
// together with its version bump.
func runMigrations(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(schemaSteps) {
		return fmt.Errorf("storage schema version %d is newer than this client (%d)", current, len(schemaSteps))
	}

	for i := current; i < len(schemaSteps); i++ {
		step, version := schemaSteps[i], i+1
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin schema step %d: %w", version, err)
		}
		if _, err := tx.Exec(step.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema step %d (%s): %w", version, step.name, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema version %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema step %d: %w", version, err)
		}
	}
	return nil
}
