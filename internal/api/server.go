package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/forecast"
	"github.com/lox/jmaweather/internal/store"
)

var validate = validator.New()

type Server struct {
	store   *store.Store
	service *forecast.Service
	port    string
	logger  *zap.Logger
}

func NewServer(store *store.Store, service *forecast.Service, port string, logger *zap.Logger) *Server {
	return &Server{
		store:   store,
		service: service,
		port:    port,
		logger:  logger.Named("api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/areas", s.handleAPIAreas)
	mux.HandleFunc("GET /api/forecast", s.handleAPIForecastByDate)
	mux.HandleFunc("GET /api/forecast/{area}", s.handleAPIForecastByArea)
	mux.HandleFunc("POST /api/refresh/{area}", s.handleAPIRefresh)
	mux.HandleFunc("GET /api/runs", s.handleAPIRuns)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
