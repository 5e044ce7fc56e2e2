package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/metrics"
)

const (
	DefaultForecastURLTemplate = "https://www.jma.go.jp/bosai/forecast/data/forecast/%s.json"

	forecastEndpoint = "forecast"
)

var ErrFetch = errors.New("forecast fetch failed")

// StatusError is a non-2xx answer from upstream. The upstream was reachable,
// so it does not count against the circuit breaker.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d", e.Code)
}

// Source returns the raw forecast payload for one area.
type Source interface {
	Fetch(ctx context.Context, areaCode string) ([]byte, *FetchResult, error)
	Name() string
}

// FetchResult describes a single upstream call for the ingest audit log.
type FetchResult struct {
	Endpoint     string
	HTTPStatus   int
	ResponseSize int
}

// HTTPSource fetches forecasts over HTTP. Consecutive transport failures trip a
// circuit breaker so an unreachable upstream fails fast instead of blocking
// every refresh for the full client timeout. Non-2xx statuses are returned as
// *StatusError and leave the breaker closed. The breaker never retries.
type HTTPSource struct {
	client      *http.Client
	urlTemplate string
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

func NewHTTPSource(urlTemplate string, client *http.Client, logger *zap.Logger) *HTTPSource {
	if urlTemplate == "" {
		urlTemplate = DefaultForecastURLTemplate
	}
	s := &HTTPSource{
		client:      client,
		urlTemplate: urlTemplate,
		logger:      logger.Named("source"),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "jma-forecast",
		Timeout: time.Minute,
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			return err == nil || errors.As(err, &statusErr)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

func (s *HTTPSource) Name() string { return "http" }

// URL returns the forecast URL for areaCode.
func (s *HTTPSource) URL(areaCode string) string {
	return fmt.Sprintf(s.urlTemplate, url.PathEscape(areaCode))
}

func (s *HTTPSource) Fetch(ctx context.Context, areaCode string) ([]byte, *FetchResult, error) {
	target := s.URL(areaCode)
	result := &FetchResult{Endpoint: target}
	start := time.Now()
	defer func() {
		metrics.FetchLatency.WithLabelValues(forecastEndpoint).Observe(time.Since(start).Seconds())
	}()

	out, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch forecast: %w", err)
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		result.ResponseSize = len(body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return body, fmt.Errorf("fetch forecast: %w", &StatusError{Code: resp.StatusCode})
		}
		return body, nil
	})

	status := "error"
	if result.HTTPStatus > 0 {
		status = strconv.Itoa(result.HTTPStatus)
	}
	metrics.FetchCallsTotal.WithLabelValues(forecastEndpoint, status).Inc()

	body, _ := out.([]byte)
	if err != nil {
		return body, result, fmt.Errorf("%w: %s: %w", ErrFetch, areaCode, err)
	}
	return body, result, nil
}
