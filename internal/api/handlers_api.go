package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

type dateQuery struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

type areaQuery struct {
	Area  string `validate:"required,numeric,len=6"`
	Limit int    `validate:"gte=0,lte=365"`
}

type runsQuery struct {
	Limit      int `validate:"gte=0,lte=500"`
	FailedOnly bool
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion(r.Context())
	if err != nil {
		s.logger.Warn("health check", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
}

func (s *Server) handleAPIAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.store.GetAreas(r.Context())
	if err != nil {
		s.logger.Error("get areas", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load areas")
		return
	}
	views := make([]areaView, 0, len(areas))
	for _, a := range areas {
		views = append(views, areaView{Code: a.Code, Name: a.Name})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIForecastByDate(w http.ResponseWriter, r *http.Request) {
	q := dateQuery{Date: r.URL.Query().Get("date")}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	stored, err := s.service.QueryByDate(r.Context(), q.Date)
	if err != nil {
		s.logger.Error("query by date", zap.String("date", q.Date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query forecasts")
		return
	}
	writeJSON(w, http.StatusOK, newStoredViews(stored))
}

func (s *Server) handleAPIForecastByArea(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	q := areaQuery{Area: r.PathValue("area"), Limit: limit}
	if !ok || validate.Struct(q) != nil {
		writeError(w, http.StatusBadRequest, "area must be a 6-digit code and limit 0-365")
		return
	}

	stored, err := s.store.FindByArea(r.Context(), q.Area, q.Limit)
	if err != nil {
		s.logger.Error("find by area", zap.String("area", q.Area), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query forecasts")
		return
	}
	writeJSON(w, http.StatusOK, newStoredViews(stored))
}

// handleAPIRefresh runs a refresh and returns the aligned records. Error
// records are served with 502 since the upstream document was unusable.
func (s *Server) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	q := areaQuery{Area: r.PathValue("area")}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "area must be a 6-digit code")
		return
	}

	records, report := s.service.RefreshWithReport(r.Context(), q.Area)
	view := refreshView{
		AreaCode: q.Area,
		Records:  newRecordViews(records),
		Stored:   report.Stored,
	}
	if report.StoreErr != nil {
		view.StoreError = report.StoreErr.Error()
	}

	status := http.StatusOK
	if report.Sentinel {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, view)
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	q := runsQuery{Limit: limit, FailedOnly: r.URL.Query().Get("failed") == "true"}
	if !ok || validate.Struct(q) != nil {
		writeError(w, http.StatusBadRequest, "limit must be 0-500")
		return
	}

	runs, err := s.store.GetRecentIngestRuns(r.Context(), q.Limit, q.FailedOnly)
	if err != nil {
		s.logger.Error("get ingest runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load ingest runs")
		return
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	writeJSON(w, http.StatusOK, views)
}
