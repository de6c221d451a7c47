package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/domain"
	apimw "github.com/hamed0406/reachability/internal/httpapi/middleware"
	"github.com/hamed0406/reachability/internal/submit"
)

type Submitter interface {
	Submit(ctx context.Context, req submit.Request) (submit.Ack, error)
}

type ResultReader interface {
	Recent(ctx context.Context, n int) ([]domain.ProbeResult, error)
}

type Options struct {
	AllowedOrigins []string
	SubmitRPM      int
	SubmitBurst    int
	RecentLimit    int
}

type Server struct {
	Logger  *zap.Logger
	Submit  Submitter
	Results ResultReader
	Hub     *Hub
	Opts    Options
}

func NewServer(l *zap.Logger, sub Submitter, rr ResultReader, hub *Hub, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{Logger: l, Submit: sub, Results: rr, Hub: hub, Opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.With(apimw.RateLimit(s.Opts.SubmitRPM, s.Opts.SubmitBurst)).Post("/probe", s.handleProbe)
	r.Get("/results", s.handleResults)
	if s.Hub != nil {
		r.Get("/results/stream", s.handleStream)
	}
	return r
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}

	ack, err := s.Submit.Submit(r.Context(), req)
	switch {
	case errors.Is(err, submit.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.Logger.Warn("probe_submit_failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	out, err := s.Results.Recent(r.Context(), s.Opts.RecentLimit)
	if err != nil {
		s.Logger.Warn("results_read_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "results unavailable")
		return
	}
	if out == nil {
		out = []domain.ProbeResult{}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
