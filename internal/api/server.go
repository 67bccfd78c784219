// Package api exposes a small status endpoint alongside the poll loop. It is
// operational surface only; all user traffic flows through the commander.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dkoval/consultbot/internal/convo"
)

type Server struct {
	store   *convo.Store
	port    int
	model   string
	started time.Time
	logger  zerolog.Logger
	srv     *http.Server
}

func NewServer(store *convo.Store, port int, model string, logger zerolog.Logger) *Server {
	return &Server{
		store:   store,
		port:    port,
		model:   model,
		started: time.Now(),
		logger:  logger,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed on a
// clean shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.routes(),
	}
	s.logger.Info().Int("port", s.port).Msg("starting status server")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info().Msg("shutting down status server")
	return s.srv.Shutdown(ctx)
}

type statusResponse struct {
	Status        string `json:"status"`
	Model         string `json:"model"`
	Conversations int    `json:"conversations"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, statusResponse{
		Status:        "ok",
		Model:         s.model,
		Conversations: s.store.Count(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}
