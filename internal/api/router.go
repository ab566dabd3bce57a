package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/account"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/dashboard"
	"github.com/mattmezza/biopatch/internal/insights"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Dashboard over HTTP with JSON bodies.
type Server struct {
	dash     *dashboard.Dashboard
	accounts *account.Registry
	insights *insights.Generator
	clock    clock.Clock
	logger   *zap.Logger
	onEnter  func(user string)
}

func NewServer(dash *dashboard.Dashboard, accounts *account.Registry, gen *insights.Generator, c clock.Clock, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		dash:     dash,
		accounts: accounts,
		insights: gen,
		clock:    c,
		logger:   logger,
	}
}

// OnEnter registers fn to be told who opened the dashboard.
func (s *Server) OnEnter(fn func(user string)) {
	s.onEnter = fn
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/accounts/signup", s.SignupHandler).Methods("POST")
	r.HandleFunc("/accounts/login", s.LoginHandler).Methods("POST")

	r.HandleFunc("/dashboard", s.SnapshotHandler).Methods("GET")
	r.HandleFunc("/dashboard/enter", s.EnterHandler).Methods("POST")
	r.HandleFunc("/dashboard/leave", s.LeaveHandler).Methods("POST")

	r.HandleFunc("/alerts/{condition}/approve", s.ApproveNowHandler).Methods("POST")
	r.HandleFunc("/alerts/{condition}/reject", s.RejectNowHandler).Methods("POST")
	r.HandleFunc("/issues/{id}/approve", s.ApproveIssueHandler).Methods("POST")

	r.HandleFunc("/actions/diagnostics", s.DiagnosticsHandler).Methods("POST")
	r.HandleFunc("/actions/export", s.ExportHandler).Methods("POST")

	r.HandleFunc("/insights", s.InsightsHandler).Methods("GET")
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
