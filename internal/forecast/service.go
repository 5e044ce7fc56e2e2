package forecast

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/ingest"
	"github.com/lox/jmaweather/internal/metrics"
	"github.com/lox/jmaweather/internal/models"
	"github.com/lox/jmaweather/internal/store"
)

// ForecastStore persists aligned records. *store.Store satisfies it.
type ForecastStore interface {
	Append(ctx context.Context, areaCode string, rec models.ForecastRecord) (models.StoredForecast, error)
	FindByDate(ctx context.Context, date string) ([]models.StoredForecast, error)
}

// AuditStore records ingest runs and archives raw payloads.
type AuditStore interface {
	StartIngestRun(ctx context.Context, source, endpoint, areaCode string, startedAt time.Time) (*store.IngestRun, error)
	CompleteIngestRun(ctx context.Context, run *store.IngestRun, finishedAt time.Time) error
	StoreRawPayload(ctx context.Context, runID *int64, source, areaCode string, payload []byte, fetchedAt time.Time) (int64, error)
}

// RefreshReport summarizes the persistence side of a refresh.
type RefreshReport struct {
	Stored   int
	StoreErr error // first append failure; later records were not attempted
	Sentinel bool  // the refresh degraded to an error record
}

type Service struct {
	source ingest.Source
	store  ForecastStore
	audit  AuditStore
	window int
	clock  clockwork.Clock
	logger *zap.Logger
}

type Option func(*Service)

// WithAudit enables ingest run tracking and raw payload archiving.
func WithAudit(a AuditStore) Option {
	return func(s *Service) { s.audit = a }
}

func WithWindow(days int) Option {
	return func(s *Service) { s.window = days }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(source ingest.Source, st ForecastStore, opts ...Option) *Service {
	s := &Service{
		source: source,
		store:  st,
		window: DefaultWindow,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("forecast")
	return s
}

// Refresh fetches, aligns and stores the forecast for one area and returns the
// aligned records. It never fails: fetch problems yield a fetch error record,
// unusable payloads a data error record, and store failures are logged while
// the aligned records are still returned.
func (s *Service) Refresh(ctx context.Context, areaCode string) []models.ForecastRecord {
	records, _ := s.RefreshWithReport(ctx, areaCode)
	return records
}

// RefreshWithReport is Refresh plus a report of what was persisted.
func (s *Service) RefreshWithReport(ctx context.Context, areaCode string) ([]models.ForecastRecord, RefreshReport) {
	log := s.logger.With(zap.String("area", areaCode), zap.String("source", s.source.Name()))
	run := s.startRun(ctx, areaCode)

	raw, result, err := s.source.Fetch(ctx, areaCode)
	if run != nil && result != nil {
		run.Endpoint = result.Endpoint
		run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: result.HTTPStatus > 0}
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(result.ResponseSize), Valid: result.ResponseSize > 0}
	}
	if len(raw) > 0 {
		s.archive(ctx, run, areaCode, raw)
	}

	if err != nil {
		log.Warn("fetch forecast", zap.Error(err))
		return s.sentinel(ctx, run, models.TagFetchError, err.Error())
	}

	records, err := alignPayload(raw, areaCode, s.window)
	if err != nil {
		log.Warn("forecast payload unusable", zap.Int("bytes", len(raw)), zap.Error(err))
		return s.sentinel(ctx, run, models.TagDataError, err.Error())
	}
	metrics.RecordsAligned.WithLabelValues(areaCode).Add(float64(len(records)))

	flagged := 0
	var raised []string
	for _, rec := range records {
		flags := ValidateRecord(rec)
		for _, f := range flags {
			metrics.QualityFlags.WithLabelValues(f).Inc()
			if !slices.Contains(raised, f) {
				raised = append(raised, f)
			}
		}
		if len(flags) > 0 {
			flagged += len(flags)
			log.Info("quality flags", zap.String("date", rec.Date), zap.Strings("flags", flags))
		}
	}

	var report RefreshReport
	for _, rec := range records {
		if _, err := s.store.Append(ctx, areaCode, rec); err != nil {
			metrics.StoreErrors.Inc()
			log.Error("append forecast", zap.String("date", rec.Date), zap.Error(err))
			report.StoreErr = err
			break
		}
		report.Stored++
	}
	metrics.RecordsStored.WithLabelValues(areaCode).Add(float64(report.Stored))
	log.Info("refreshed forecast", zap.Int("records", len(records)), zap.Int("stored", report.Stored))

	if run != nil {
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(records)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(report.Stored), Valid: true}
		run.QualityFlags = sql.NullInt64{Int64: int64(flagged), Valid: true}
		run.QualityFlagDetail = sql.NullString{String: QualityFlagsToJSON(raised), Valid: len(raised) > 0}
		run.Success = report.StoreErr == nil
		if report.StoreErr != nil {
			run.ErrorMessage = sql.NullString{String: report.StoreErr.Error(), Valid: true}
		}
		s.completeRun(ctx, run)
	}
	return records, report
}

// QueryByDate returns every stored record for the exact date string.
func (s *Service) QueryByDate(ctx context.Context, date string) ([]models.StoredForecast, error) {
	return s.store.FindByDate(ctx, date)
}

// AlignPayload parses raw and aligns it; an unparseable payload yields a data
// error record.
func AlignPayload(raw []byte, areaCode string, window int) []models.ForecastRecord {
	records, err := alignPayload(raw, areaCode, window)
	if err != nil {
		return dataError()
	}
	return records
}

func alignPayload(raw []byte, areaCode string, window int) ([]models.ForecastRecord, error) {
	doc, err := ingest.ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return align(doc, areaCode, window)
}

func (s *Service) sentinel(ctx context.Context, run *store.IngestRun, tag, msg string) ([]models.ForecastRecord, RefreshReport) {
	metrics.SentinelRecords.WithLabelValues(tag).Inc()
	if run != nil {
		run.ErrorMessage = sql.NullString{String: msg, Valid: true}
		s.completeRun(ctx, run)
	}
	return []models.ForecastRecord{models.ErrorRecord(tag)}, RefreshReport{Sentinel: true}
}

func (s *Service) startRun(ctx context.Context, areaCode string) *store.IngestRun {
	if s.audit == nil {
		return nil
	}
	run, err := s.audit.StartIngestRun(ctx, s.source.Name(), "", areaCode, s.clock.Now())
	if err != nil {
		s.logger.Warn("start ingest run", zap.String("area", areaCode), zap.Error(err))
		return nil
	}
	return run
}

func (s *Service) completeRun(ctx context.Context, run *store.IngestRun) {
	if err := s.audit.CompleteIngestRun(ctx, run, s.clock.Now()); err != nil {
		s.logger.Warn("complete ingest run", zap.Int64("run", run.ID), zap.Error(err))
	}
}

func (s *Service) archive(ctx context.Context, run *store.IngestRun, areaCode string, raw []byte) {
	if s.audit == nil {
		return
	}
	var runID *int64
	if run != nil {
		runID = &run.ID
	}
	if _, err := s.audit.StoreRawPayload(ctx, runID, s.source.Name(), areaCode, raw, s.clock.Now()); err != nil {
		s.logger.Warn("store raw payload", zap.String("area", areaCode), zap.Error(err))
	}
}
