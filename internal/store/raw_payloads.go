package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload represents an archived forecast document.
type RawPayload struct {
	ID          int64
	IngestRunID sql.NullInt64
	FetchedAt   time.Time
	Source      string
	AreaCode    string
	PayloadHash string
}

// StoreRawPayload stores a compressed forecast payload.
// Returns the payload ID, or 0 if the payload was a duplicate (same hash).
func (s *Store) StoreRawPayload(ctx context.Context, runID *int64, source, areaCode string,
	payload []byte, fetchedAt time.Time) (int64, error) {

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	var ingestRunID sql.NullInt64
	if runID != nil {
		ingestRunID = sql.NullInt64{Int64: *runID, Valid: true}
	}

	var id int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO raw_payloads
			(ingest_run_id, fetched_at, source, area_code, payload_compressed, payload_hash)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(payload_hash) DO NOTHING
		`, ingestRunID, fetchedAt.UTC(), source, areaCode, buf.Bytes(), hashHex)
		if err != nil {
			return fmt.Errorf("%w: insert raw payload: %w", ErrStoreUnavailable, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		id, err = result.LastInsertId()
		return err
	})
	return id, err
}

// GetRawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetRawPayload(ctx context.Context, id int64) (*RawPayload, []byte, error) {
	var p RawPayload
	var compressed []byte
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT id, ingest_run_id, fetched_at, source, area_code, payload_compressed, payload_hash
			FROM raw_payloads WHERE id = ?
		`, id).Scan(&p.ID, &p.IngestRunID, &p.FetchedAt, &p.Source, &p.AreaCode, &compressed, &p.PayloadHash)
	})
	if err != nil {
		return nil, nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress payload: %w", err)
	}
	return &p, payload, nil
}
