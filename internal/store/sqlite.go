package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lox/jmaweather/internal/models"
)

var ErrStoreUnavailable = errors.New("forecast store unavailable")

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the SQLite database at path with WAL journaling. The pool is
// limited to one connection so writers are serialized by database/sql.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, pragma, err)
		}
	}
	return db, nil
}

func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("store")}
}

// withConn acquires a dedicated connection for the duration of fn and
// releases it before returning. No handle is held across operations.
func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire connection: %w", ErrStoreUnavailable, err)
	}
	defer conn.Close()
	return fn(conn)
}

// Append inserts one day record for areaCode and returns it with its new id.
// The record's own AreaCode is ignored in favour of areaCode.
func (s *Store) Append(ctx context.Context, areaCode string, rec models.ForecastRecord) (models.StoredForecast, error) {
	rec.AreaCode = areaCode
	var stored models.StoredForecast
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO weather_forecast (area_code, date, forecast, temperature_min, temperature_max)
			VALUES (?, ?, ?, ?, ?)
		`, rec.AreaCode, rec.Date, rec.Weather, rec.TempMin, rec.TempMax)
		if err != nil {
			return fmt.Errorf("%w: insert forecast: %w", ErrStoreUnavailable, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: last insert id: %w", ErrStoreUnavailable, err)
		}
		stored = models.StoredForecast{ID: id, ForecastRecord: rec}
		return nil
	})
	return stored, err
}

// FindByDate returns every stored record whose date equals date exactly, in
// insertion order. It returns an empty slice when nothing matches.
func (s *Store) FindByDate(ctx context.Context, date string) ([]models.StoredForecast, error) {
	return s.queryForecasts(ctx, `
		SELECT id, area_code, date, forecast, temperature_min, temperature_max
		FROM weather_forecast
		WHERE date = ?
		ORDER BY id ASC
	`, date)
}

// FindByArea returns the most recent stored records for areaCode, newest first.
func (s *Store) FindByArea(ctx context.Context, areaCode string, limit int) ([]models.StoredForecast, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.queryForecasts(ctx, `
		SELECT id, area_code, date, forecast, temperature_min, temperature_max
		FROM weather_forecast
		WHERE area_code = ?
		ORDER BY id DESC
		LIMIT ?
	`, areaCode, limit)
}

func (s *Store) queryForecasts(ctx context.Context, query string, args ...any) ([]models.StoredForecast, error) {
	forecasts := []models.StoredForecast{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: query forecasts: %w", ErrStoreUnavailable, err)
		}
		defer rows.Close()

		for rows.Next() {
			var f models.StoredForecast
			if err := rows.Scan(&f.ID, &f.AreaCode, &f.Date, &f.Weather, &f.TempMin, &f.TempMax); err != nil {
				return fmt.Errorf("scan forecast: %w", err)
			}
			forecasts = append(forecasts, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return forecasts, nil
}

// UpsertAreas replaces the names of the given areas in area_info.
func (s *Store) UpsertAreas(ctx context.Context, areas []models.AreaRef) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: begin: %w", ErrStoreUnavailable, err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO area_info (code, name) VALUES (?, ?)
			ON CONFLICT(code) DO UPDATE SET name = excluded.name
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert area: %w", err)
		}
		defer stmt.Close()

		for _, a := range areas {
			if _, err := stmt.ExecContext(ctx, a.Code, a.Name); err != nil {
				return fmt.Errorf("upsert area %s: %w", a.Code, err)
			}
		}
		return tx.Commit()
	})
}

// GetAreas returns the cached area catalog ordered by code.
func (s *Store) GetAreas(ctx context.Context) ([]models.AreaRef, error) {
	areas := []models.AreaRef{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT code, name FROM area_info ORDER BY code`)
		if err != nil {
			return fmt.Errorf("%w: query areas: %w", ErrStoreUnavailable, err)
		}
		defer rows.Close()

		for rows.Next() {
			var a models.AreaRef
			if err := rows.Scan(&a.Code, &a.Name); err != nil {
				return err
			}
			areas = append(areas, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return areas, nil
}
