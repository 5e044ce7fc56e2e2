package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/api"
	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/httputil"
	"github.com/lox/jmaweather/internal/ingest"
	"github.com/lox/jmaweather/internal/models"
	"github.com/lox/jmaweather/internal/store"
)

// setupServer wires an API server against an in-memory store and an upstream
// that serves the Tokyo fixture for 130000 and 404 for anything else.
func setupServer(t *testing.T) (*api.Server, *store.Store) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, zap.NewNop())
	require.NoError(t, st.Migrate(context.Background()))

	fixture, err := os.ReadFile("../ingest/testdata/forecast_130000.json")
	require.NoError(t, err)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/130000.json" {
			http.NotFound(w, r)
			return
		}
		w.Write(fixture)
	}))
	t.Cleanup(upstream.Close)

	source := ingest.NewHTTPSource(upstream.URL+"/%s.json", httputil.NewClient(5*time.Second), zap.NewNop())
	svc := forecast.NewService(source, st, forecast.WithAudit(st))
	return api.NewServer(st, svc, "8080", zap.NewNop()), st
}

func do(t *testing.T, srv *api.Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

type recordJSON struct {
	ID        int64    `json:"id"`
	AreaCode  string   `json:"area_code"`
	Date      string   `json:"date"`
	Weather   string   `json:"weather"`
	Condition string   `json:"condition"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(t, srv, "GET", "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAreasEndpoint(t *testing.T) {
	srv, st := setupServer(t)
	require.NoError(t, st.UpsertAreas(context.Background(), []models.AreaRef{
		{Code: "270000", Name: "大阪府"},
		{Code: "130000", Name: "東京都"},
	}))

	w := do(t, srv, "GET", "/api/areas")

	require.Equal(t, http.StatusOK, w.Code)
	var areas []struct{ Code, Name string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &areas))
	require.Len(t, areas, 2)
	assert.Equal(t, "130000", areas[0].Code)
	assert.Equal(t, "東京都", areas[0].Name)
}

func TestRefreshThenQueryByDate(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(t, srv, "POST", "/api/refresh/130000")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var refresh struct {
		Records []recordJSON `json:"records"`
		Stored  int          `json:"stored"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refresh))
	assert.Equal(t, 3, refresh.Stored)
	require.Len(t, refresh.Records, 3)
	assert.Equal(t, "clear", refresh.Records[0].Condition)

	w = do(t, srv, "GET", "/api/forecast?date=2024-05-02")
	require.Equal(t, http.StatusOK, w.Code)

	var records []recordJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "130000", records[0].AreaCode)
	assert.Equal(t, "雨", records[0].Weather)
	assert.Equal(t, "rain", records[0].Condition)
	require.NotNil(t, records[0].TempMax)
	assert.Equal(t, 25.0, *records[0].TempMax)
}

func TestRefresh_UpstreamFailure(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(t, srv, "POST", "/api/refresh/999999")

	require.Equal(t, http.StatusBadGateway, w.Code)
	var refresh struct {
		Records []recordJSON `json:"records"`
		Stored  int          `json:"stored"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refresh))
	require.Len(t, refresh.Records, 1)
	assert.Equal(t, "N/A", refresh.Records[0].Date)
	assert.Equal(t, "fetch error", refresh.Records[0].Weather)
	assert.Nil(t, refresh.Records[0].TempMin)
	assert.Zero(t, refresh.Stored)

	w = do(t, srv, "GET", "/api/runs?failed=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"area_code":"999999"`)
}

func TestForecastByDate_Validation(t *testing.T) {
	srv, _ := setupServer(t)

	for _, target := range []string{"/api/forecast", "/api/forecast?date=2024-5-1", "/api/forecast?date=tomorrow"} {
		w := do(t, srv, "GET", target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestForecastByDate_NoMatch(t *testing.T) {
	srv, _ := setupServer(t)

	w := do(t, srv, "GET", "/api/forecast?date=2024-05-09")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestForecastByArea(t *testing.T) {
	srv, _ := setupServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/refresh/130000").Code)

	w := do(t, srv, "GET", "/api/forecast/130000?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var records []recordJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "2024-05-03", records[0].Date)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/forecast/tokyo").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "GET", "/api/forecast/130000?limit=x").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t)
	do(t, srv, "POST", "/api/refresh/130000")

	w := do(t, srv, "GET", "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jmaweather_records_aligned_total")
}
