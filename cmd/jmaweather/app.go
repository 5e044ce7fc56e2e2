package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/httputil"
	"github.com/lox/jmaweather/internal/ingest"
	"github.com/lox/jmaweather/internal/store"
)

// app holds the dependencies shared by every command.
type app struct {
	cli    *CLI
	logger *zap.Logger
	db     *sql.DB
	store  *store.Store
	client *http.Client
}

func newApp(cli *CLI) (*app, error) {
	logger, err := newLogger(cli.LogLevel, cli.LogFormat)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cli.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := store.Open(cli.DB)
	if err != nil {
		return nil, err
	}

	st := store.New(db, logger)
	if err := st.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &app{
		cli:    cli,
		logger: logger,
		db:     db,
		store:  st,
		client: httputil.NewClient(cli.Timeout),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Sync()
}

func (a *app) catalog() *ingest.Catalog {
	return ingest.NewCatalog(a.cli.AreaURL, a.client)
}

// source returns the FTP mirror when one is configured, HTTP otherwise.
func (a *app) source() ingest.Source {
	if a.cli.FTPAddr != "" {
		return ingest.NewFTPSource(a.cli.FTPAddr, a.cli.FTPDir, a.cli.FTPUser, a.cli.FTPPassword, a.cli.Timeout, a.logger)
	}
	return ingest.NewHTTPSource(a.cli.ForecastURL, a.client, a.logger)
}

func (a *app) service() *forecast.Service {
	return forecast.NewService(a.source(), a.store,
		forecast.WithAudit(a.store),
		forecast.WithWindow(a.cli.Window),
		forecast.WithLogger(a.logger),
	)
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
