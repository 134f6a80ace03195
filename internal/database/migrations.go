package database

import (
	"database/sql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		requested INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		rolled_back BOOLEAN DEFAULT FALSE,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	)`,

	`CREATE TABLE IF NOT EXISTS launch_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		instance TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		timed_out BOOLEAN DEFAULT FALSE,
		port INTEGER,
		pid INTEGER,
		elapsed_ms INTEGER,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS rollback_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		config_path TEXT NOT NULL,
		backup_path TEXT,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_launch_results_batch_id ON launch_results(batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_launch_results_instance ON launch_results(instance)`,
	`CREATE INDEX IF NOT EXISTS idx_rollback_errors_batch_id ON rollback_errors(batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at)`,
}

func runMigrations(db *sql.DB) error {
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
