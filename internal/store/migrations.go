package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial forecast table",
		SQL: `
CREATE TABLE IF NOT EXISTS weather_forecast (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    area_code TEXT NOT NULL,
    date TEXT NOT NULL,
    forecast TEXT NOT NULL,
    temperature_min REAL,
    temperature_max REAL
);

CREATE INDEX IF NOT EXISTS idx_weather_forecast_date ON weather_forecast(date);
`,
	},
	{
		Version:     2,
		Description: "Add area_info table for the office catalog",
		SQL: `
CREATE TABLE IF NOT EXISTS area_info (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "Add ingest_runs table for fetch auditing",
		SQL: `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    area_code TEXT NOT NULL,
    http_status INTEGER,
    response_size_bytes INTEGER,
    records_parsed INTEGER,
    records_stored INTEGER,
    quality_flags INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
`,
	},
	{
		Version:     4,
		Description: "Add raw_payloads table for archived forecast documents",
		SQL: `
CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingest_run_id INTEGER REFERENCES ingest_runs(id),
    fetched_at DATETIME NOT NULL,
    source TEXT NOT NULL,
    area_code TEXT NOT NULL,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE
);
`,
	},
	{
		Version:     5,
		Description: "Add quality_flag_detail to ingest_runs",
		SQL: `
ALTER TABLE ingest_runs ADD COLUMN quality_flag_detail TEXT;
`,
	},
}

// Migrate applies every migration that has not yet been recorded in
// schema_migrations. Each migration runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		if err := ensureMigrationsTable(ctx, conn); err != nil {
			return fmt.Errorf("ensure migrations table: %w", err)
		}

		applied, err := appliedMigrations(ctx, conn)
		if err != nil {
			return fmt.Errorf("get applied migrations: %w", err)
		}

		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}

			s.logger.Info("applying migration", zap.Int("version", m.Version), zap.String("description", m.Description))

			tx, err := conn.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
			}

			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				tx.Rollback()
				return fmt.Errorf("execute migration %d: %w", m.Version, err)
			}

			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
				m.Version, m.Description, time.Now().UTC(),
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit migration %d: %w", m.Version, err)
			}
		}
		return nil
	})
}

func ensureMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func appliedMigrations(ctx context.Context, conn *sql.Conn) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// MigrationVersion returns the highest applied migration, or 0 on a fresh database.
func (s *Store) MigrationVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	})
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
