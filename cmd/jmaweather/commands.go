package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/api"
	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/ingest"
	"github.com/lox/jmaweather/internal/models"
	"github.com/lox/jmaweather/internal/scheduler"
)

type AreasCmd struct {
	CatalogRetries int  `name:"catalog-retries" default:"0" help:"Retry the catalog fetch this many times with exponential backoff."`
	Cached         bool `name:"cached" help:"List areas from the local database without contacting upstream."`
}

func (c *AreasCmd) Run(a *app) error {
	ctx := context.Background()
	if c.Cached {
		areas, err := a.store.GetAreas(ctx)
		if err != nil {
			return err
		}
		printAreas(os.Stdout, areas)
		return nil
	}

	areas, err := listAreas(ctx, a.catalog(), c.CatalogRetries)
	if err != nil {
		cached, cacheErr := a.store.GetAreas(ctx)
		if cacheErr != nil || len(cached) == 0 {
			return err
		}
		a.logger.Warn("area catalog unavailable, showing cached areas", zap.Error(err))
		printAreas(os.Stdout, cached)
		return nil
	}

	if err := a.store.UpsertAreas(ctx, areas); err != nil {
		a.logger.Warn("cache areas", zap.Error(err))
	}
	printAreas(os.Stdout, areas)
	return nil
}

// listAreas fetches the catalog, retrying up to retries times.
func listAreas(ctx context.Context, catalog *ingest.Catalog, retries int) ([]models.AreaRef, error) {
	var areas []models.AreaRef
	op := func() error {
		var err error
		areas, err = catalog.List(ctx)
		return err
	}
	if retries <= 0 {
		return areas, op()
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return areas, backoff.Retry(op, b)
}

type RefreshCmd struct {
	Areas []string `arg:"" name:"area" help:"Area codes to refresh (e.g. 130000)."`
}

func (c *RefreshCmd) Run(a *app) error {
	ctx := context.Background()
	svc := a.service()

	var storeErr error
	for _, area := range c.Areas {
		records, report := svc.RefreshWithReport(ctx, area)
		printRecords(os.Stdout, area, records)
		if report.StoreErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %d of %d records stored: %v\n", area, report.Stored, len(records), report.StoreErr)
			storeErr = errors.Join(storeErr, report.StoreErr)
		}
	}
	return storeErr
}

type QueryCmd struct {
	Date string `arg:"" help:"Date to show (YYYY-MM-DD)."`
}

func (c *QueryCmd) Run(a *app) error {
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %q", c.Date)
	}
	stored, err := a.service().QueryByDate(context.Background(), c.Date)
	if err != nil {
		return err
	}
	printStored(os.Stdout, stored)
	return nil
}

type ReplayCmd struct {
	ID int64 `arg:"" help:"Raw payload ID."`
}

func (c *ReplayCmd) Run(a *app) error {
	meta, payload, err := a.store.GetRawPayload(context.Background(), c.ID)
	if err != nil {
		return fmt.Errorf("load raw payload %d: %w", c.ID, err)
	}
	fmt.Fprintf(os.Stdout, "payload %d fetched %s via %s\n\n", meta.ID, meta.FetchedAt.Format(time.RFC3339), meta.Source)
	printRecords(os.Stdout, meta.AreaCode, forecast.AlignPayload(payload, meta.AreaCode, a.cli.Window))
	return nil
}

type RunsCmd struct {
	Limit  int  `name:"limit" default:"20" help:"Number of runs to show."`
	Failed bool `name:"failed" help:"Only show failed runs."`
}

func (c *RunsCmd) Run(a *app) error {
	runs, err := a.store.GetRecentIngestRuns(context.Background(), c.Limit, c.Failed)
	if err != nil {
		return err
	}
	printRuns(os.Stdout, runs)
	return nil
}

type ServeCmd struct {
	Port     string        `name:"port" default:"8080" env:"PORT" help:"HTTP server port."`
	Areas    []string      `name:"areas" default:"130000" env:"JMA_AREAS" help:"Area codes refreshed on a schedule."`
	Interval time.Duration `name:"interval" default:"3h" env:"JMA_INTERVAL" help:"Refresh interval."`
	NoPoll   bool          `name:"no-poll" help:"Disable scheduled refreshes."`
}

func (c *ServeCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := a.service()
	if !c.NoPoll {
		sched := scheduler.New(c.Areas, c.Interval, svc, a.logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		a.logger.Info("polling disabled (--no-poll)")
	}

	return api.NewServer(a.store, svc, c.Port, a.logger).Run(ctx)
}
