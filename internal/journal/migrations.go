package journal

import (
	"database/sql"
	"fmt"
)

// Migration is one schema step. Versions are applied in ascending order and
// recorded in journal_migrations.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "incidents",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE incidents (
					id      INTEGER PRIMARY KEY AUTOINCREMENT,
					at      INTEGER NOT NULL,
					session TEXT    NOT NULL DEFAULT '',
					topic   TEXT    NOT NULL,
					channel TEXT    NOT NULL DEFAULT '',
					detail  TEXT    NOT NULL DEFAULT ''
				);
				CREATE INDEX idx_incidents_session ON incidents(session);
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "session summaries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE sessions (
					id         TEXT    PRIMARY KEY,
					started_at INTEGER NOT NULL,
					ended_at   INTEGER NOT NULL,
					stats      TEXT    NOT NULL DEFAULT '{}',
					discards   INTEGER NOT NULL DEFAULT 0
				);
			`)
			return err
		},
	},
}

// migrate applies every migration newer than the recorded version, each in
// its own transaction.
func migrate(db *sql.DB, list []Migration) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("journal: create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM journal_migrations").Scan(&current); err != nil {
		return fmt.Errorf("journal: read migration version: %w", err)
	}

	for _, m := range list {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("journal: migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Up(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO journal_migrations (version) VALUES (?)", m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// Version returns the highest applied migration
func (j *Journal) Version() (int, error) {
	var v int
	err := j.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM journal_migrations").Scan(&v)
	return v, err
}
