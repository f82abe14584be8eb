// Package server exposes the dispatch vocabulary over HTTP.
//
//	GET /?action=<command>   run a command, respond with its text output
//	GET /                    menu of commands and suites
//	GET /metrics             Prometheus metrics
//	GET /health              liveness
//
// Runs are serialized: one run at a time against the target database.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// OutcomeHeader carries "pass" or "fail" for dispatched commands.
const OutcomeHeader = "X-Testkit-Outcome"

// RunnerFunc builds a runner writing its output to out.
type RunnerFunc func(out io.Writer) *runner.Runner

// Options configures a Server.
type Options struct {
	Addr string
	// Token, when set, is required as a bearer token on every route
	// except /health.
	Token string
	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the HTTP dispatcher.
type Server struct {
	newRunner RunnerFunc
	opts      Options
	router    chi.Router
	srv       *http.Server
	logger    *slog.Logger

	mu sync.Mutex
}

// New creates a Server.
func New(newRunner RunnerFunc, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		newRunner: newRunner,
		opts:      opts,
		logger:    opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(TokenMiddleware(opts.Token))

	r.Get("/health", s.health)
	r.Get("/", s.dispatch)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	s.router = r
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called. It returns http.ErrServerClosed
// after a graceful stop, including a Stop that happened before Start.
func (s *Server) Start() error {
	s.logger.Info("testkit server listening", "addr", s.opts.Addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server. Safe to call before Start.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// DecodeAction undoes a second layer of percent-encoding left by clients
// that encode suite names twice. Values that do not decode are kept.
func DecodeAction(action string) string {
	if !strings.Contains(action, "%") {
		return action
	}
	if decoded, err := url.QueryUnescape(action); err == nil {
		return decoded
	}
	return action
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		s.menu(w)
		return
	}
	action = DecodeAction(action)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out bytes.Buffer
	o, err := s.newRunner(&out).Dispatch(r.Context(), action)
	if err != nil {
		s.logger.Error("dispatch failed", "action", action, "error", err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if o.OK {
		w.Header().Set(OutcomeHeader, "pass")
	} else {
		w.Header().Set(OutcomeHeader, "fail")
	}
	w.WriteHeader(statusFor(err))
	_, _ = w.Write(out.Bytes())
	if err != nil {
		fmt.Fprintf(w, "\nError: %v\n", err)
	}
}

// statusFor maps a dispatch error to an HTTP status. Failed tests are
// not errors and answer 200.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, runner.ErrUnknownSuite):
		return http.StatusNotFound
	case testerr.IsFatal(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
