// Package httpapi serves health and survey statistics over HTTP for operators.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/dndsurvey/bot/storage"
	"github.com/m3rciful/dndsurvey/bot/survey"
	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/state"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AnswerLister loads a user's stored answers.
type AnswerLister interface {
	ListAnswers(ctx context.Context, userID int64) ([]storage.AnswerRow, error)
}

// QueueStats reports the state of the event worker pool.
type QueueStats interface {
	Pending() int64
	ErrorCount() uint64
}

// Deps are the sources the server reads from. Nil members are reported as disabled.
type Deps struct {
	DB       Pinger
	Stats    survey.StatsReader
	Answers  AnswerLister
	Sessions survey.SessionCounter
	Queue    QueueStats
	// Log reports log writer counters; nil omits them.
	Log func() logger.WriterStats
	// Token protects everything but /healthz when non-empty.
	Token string
}

// Server is the ops HTTP server.
type Server struct {
	deps Deps
	srv  *http.Server
}

// New builds a server listening on addr.
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", s.health)
	r.Group(func(r chi.Router) {
		r.Use(bearer(s.deps.Token))
		r.Get("/stats", s.stats)
		r.Get("/users/{id}/answers", s.userAnswers)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("http server listening",
			slog.String("event", "http.listen"),
			slog.String("listen", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	database := "disabled"
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.PingContext(ctx); err != nil {
			database = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			database = "ok"
		}
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": map[string]string{"database": database},
	})
}

type queueStats struct {
	Pending int64  `json:"pending"`
	Errors  uint64 `json:"errors"`
}

type statsResponse struct {
	Answers  *survey.Stats       `json:"answers"`
	Sessions map[state.State]int `json:"sessions"`
	Queue    *queueStats         `json:"queue,omitempty"`
	Log      *logger.WriterStats `json:"log,omitempty"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if s.deps.Stats != nil {
		top := 5
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 100 {
				writeError(w, http.StatusBadRequest, "top must be between 0 and 100")
				return
			}
			top = n
		}
		st, err := s.deps.Stats.AnswerStats(r.Context(), top)
		if err != nil {
			logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, "http.stats",
				slog.String("status", "fail"),
				logger.Err(err),
			)
			writeError(w, http.StatusInternalServerError, "stats unavailable")
			return
		}
		resp.Answers = &st
	}
	if s.deps.Sessions != nil {
		resp.Sessions = s.deps.Sessions.Snapshot()
	}
	if s.deps.Queue != nil {
		resp.Queue = &queueStats{Pending: s.deps.Queue.Pending(), Errors: s.deps.Queue.ErrorCount()}
	}
	if s.deps.Log != nil {
		st := s.deps.Log()
		resp.Log = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) userAnswers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Answers == nil {
		writeError(w, http.StatusNotFound, "answers are not stored")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	rows, err := s.deps.Answers.ListAnswers(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "answers unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "answers": rows})
}

func bearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := logger.WithRID(r.Context(), chiMiddleware.GetReqID(r.Context()))
		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogEvent(ctx, logger.HTTP, level, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", ww.Status()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.HTTP.Warn("encode response failed",
			slog.String("event", "http.encode"),
			logger.Err(err),
		)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
