package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/internal/priority"
	"github.com/dyike/CortexTrade/internal/storage/sqlite"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/models"
)

// Answerer answers a free-text portfolio question.
type Answerer interface {
	Answer(ctx context.Context, q string) (string, error)
}

// View is the read side of the enriched portfolio.
type View interface {
	Snapshot() []models.EnrichedAsset
	Ticks() []models.Tick
	News() []stream.NewsSummary
}

// History lists stored decisions newest first.
type History interface {
	ListDecisions(ctx context.Context, symbol string, cursor int64, limit int) ([]sqlite.DecisionWithMeta, error)
}

type Deps struct {
	Answerer Answerer
	View     View
	// PortfolioLog receives uploaded holdings as JSON lines. When empty,
	// uploads go straight to Holdings and are not persisted.
	PortfolioLog string
	Holdings     chan<- models.Holding
	History      History
	Scorer       *priority.Scorer
}

type Server struct {
	deps Deps
	http *http.Server
	log  zerolog.Logger
}

func New(addr string, deps Deps, log zerolog.Logger) *Server {
	if deps.Scorer == nil {
		deps.Scorer = priority.NewScorer(priority.DefaultWindow)
	}
	s := &Server{deps: deps, log: log.With().Str("component", "server").Logger()}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /portfolio", s.handleUpload)
	mux.HandleFunc("GET /feed", s.handleFeed)
	mux.HandleFunc("GET /decisions", s.handleDecisions)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return loggingMiddleware(mux, s.log)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("remote", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
