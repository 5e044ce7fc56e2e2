package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IngestRun represents a single forecast refresh for auditing.
type IngestRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Source            string // "http", "ftp"
	Endpoint          string
	AreaCode          string
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	RecordsParsed     sql.NullInt64
	RecordsStored     sql.NullInt64
	QualityFlags      sql.NullInt64  // Number of flags raised on aligned records
	QualityFlagDetail sql.NullString // JSON array of distinct flag names
	Success           bool
	ErrorMessage      sql.NullString
}

// StartIngestRun creates a new ingest run record and returns it.
func (s *Store) StartIngestRun(ctx context.Context, source, endpoint, areaCode string, startedAt time.Time) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt: startedAt.UTC(),
		Source:    source,
		Endpoint:  endpoint,
		AreaCode:  areaCode,
	}

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO ingest_runs (started_at, source, endpoint, area_code, success)
			VALUES (?, ?, ?, ?, FALSE)
		`, run.StartedAt, run.Source, run.Endpoint, run.AreaCode)
		if err != nil {
			return fmt.Errorf("%w: insert ingest run: %w", ErrStoreUnavailable, err)
		}
		run.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteIngestRun updates the ingest run with results.
func (s *Store) CompleteIngestRun(ctx context.Context, run *IngestRun, finishedAt time.Time) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: finishedAt.UTC(), Valid: true}

	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE ingest_runs SET
				finished_at = ?,
				endpoint = ?,
				http_status = ?,
				response_size_bytes = ?,
				records_parsed = ?,
				records_stored = ?,
				quality_flags = ?,
				quality_flag_detail = ?,
				success = ?,
				error_message = ?
			WHERE id = ?
		`, run.FinishedAt, run.Endpoint, run.HTTPStatus, run.ResponseSizeBytes, run.RecordsParsed,
			run.RecordsStored, run.QualityFlags, run.QualityFlagDetail, run.Success, run.ErrorMessage, run.ID)
		if err != nil {
			return fmt.Errorf("%w: update ingest run: %w", ErrStoreUnavailable, err)
		}
		return nil
	})
}

// GetRecentIngestRuns returns the latest ingest runs, newest first. When
// failedOnly is set only unsuccessful runs are returned.
func (s *Store) GetRecentIngestRuns(ctx context.Context, limit int, failedOnly bool) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var results []IngestRun
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, started_at, finished_at, source, endpoint, area_code,
				   http_status, response_size_bytes, records_parsed, records_stored,
				   quality_flags, quality_flag_detail, success, error_message
			FROM ingest_runs
			WHERE (? = FALSE OR success = FALSE)
			ORDER BY id DESC
			LIMIT ?
		`, failedOnly, limit)
		if err != nil {
			return fmt.Errorf("%w: query ingest runs: %w", ErrStoreUnavailable, err)
		}
		defer rows.Close()

		for rows.Next() {
			var r IngestRun
			if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Endpoint, &r.AreaCode,
				&r.HTTPStatus, &r.ResponseSizeBytes, &r.RecordsParsed, &r.RecordsStored,
				&r.QualityFlags, &r.QualityFlagDetail, &r.Success, &r.ErrorMessage); err != nil {
				return err
			}
			results = append(results, r)
		}
		return rows.Err()
	})
	return results, err
}
