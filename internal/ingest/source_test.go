package ingest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/httputil"
)

func TestHTTPSource_Fetch(t *testing.T) {
	fixture := loadFixture(t, "forecast_130000.json")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast/130000.json", r.URL.Path)
		assert.Equal(t, httputil.UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(fixture)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/forecast/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	body, result, err := src.Fetch(context.Background(), "130000")
	require.NoError(t, err)
	assert.Equal(t, fixture, body)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Equal(t, len(fixture), result.ResponseSize)
	assert.Equal(t, srv.URL+"/forecast/130000.json", result.Endpoint)
}

func TestHTTPSource_FetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	_, result, err := src.Fetch(context.Background(), "999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Equal(t, http.StatusNotFound, result.HTTPStatus)
}

func TestHTTPSource_FetchNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	_, _, err := src.Fetch(context.Background(), "130000")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "err = %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestHTTPSource_StatusErrorsLeaveBreakerClosed(t *testing.T) {
	fixture := loadFixture(t, "forecast_130000.json")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/130000.json" {
			http.NotFound(w, r)
			return
		}
		w.Write(fixture)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	for _, code := range []string{"000001", "000002", "000003", "000004", "000005", "000006"} {
		_, result, err := src.Fetch(context.Background(), code)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, result.HTTPStatus)
	}

	body, result, err := src.Fetch(context.Background(), "130000")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Equal(t, fixture, body)
}

// hangUp accepts the request and drops the connection without a response.
func hangUp(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}
}

func TestHTTPSource_BreakerOpensAfterConsecutiveTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(hangUp(&calls))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	for i := 0; i < 5; i++ {
		_, _, err := src.Fetch(context.Background(), "130000")
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	before := calls.Load()
	require.NotZero(t, before)

	_, _, err := src.Fetch(context.Background(), "130000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, before, calls.Load(), "open breaker must not reach upstream")
}

func TestHTTPSource_URLEscapesCode(t *testing.T) {
	src := NewHTTPSource("", httputil.NewClient(0), zap.NewNop())
	assert.Equal(t, "https://www.jma.go.jp/bosai/forecast/data/forecast/130000.json", src.URL("130000"))
	assert.Equal(t, "https://www.jma.go.jp/bosai/forecast/data/forecast/..%2Fetc.json", src.URL("../etc"))
}

func TestFTPSource_Path(t *testing.T) {
	src := NewFTPSource("mirror.example:21", "pub/forecast", "", "", 0, zap.NewNop())
	assert.Equal(t, "/pub/forecast/130000.json", src.Path("130000"))
	assert.Equal(t, "/pub/forecast/passwd.json", src.Path("../../etc/passwd"))
	assert.Equal(t, "ftp", src.Name())
}

func TestFTPSource_FetchUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	src := NewFTPSource(addr, "forecast", "", "", time.Second, zap.NewNop())
	body, result, err := src.Fetch(context.Background(), "130000")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch), "err = %v", err)
	assert.Nil(t, body)
	require.NotNil(t, result)
	assert.Equal(t, "ftp://"+addr+"/forecast/130000.json", result.Endpoint)
	assert.Zero(t, result.ResponseSize)
}
