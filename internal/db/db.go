package db

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	db   *sql.DB
	once sync.Once
)

type Config struct {
	Path string
}

func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		db, initErr = sql.Open("sqlite3", cfg.Path)
		if initErr != nil {
			return
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		initErr = runMigrations(db)
	})
	return initErr
}

func GetDB() *sql.DB {
	return db
}

func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

type Migration struct {
	Version string
	SQL     string
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	migrations := make([]Migration, len(builtinMigrations))
	copy(migrations, builtinMigrations)

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
	}

	return nil
}

var builtinMigrations = []Migration{
	{
		Version: "001_initial",
		SQL: `
			CREATE TABLE IF NOT EXISTS print_jobs (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				file_path TEXT NOT NULL,
				queue_name TEXT NOT NULL,
				settings_json TEXT NOT NULL,
				status TEXT NOT NULL,
				remote_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_print_jobs_status ON print_jobs(status);
			CREATE INDEX IF NOT EXISTS idx_print_jobs_created ON print_jobs(created_at);

			CREATE TABLE IF NOT EXISTS drafts (
				file_path TEXT PRIMARY KEY,
				queue_name TEXT NOT NULL DEFAULT '',
				settings_json TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				encrypted INTEGER NOT NULL DEFAULT 0,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS webhooks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				secret TEXT NOT NULL DEFAULT '',
				events_json TEXT NOT NULL DEFAULT '[]',
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS archived_jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				original_job_id TEXT NOT NULL,
				archive_file TEXT NOT NULL,
				archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}
