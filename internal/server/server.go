// Package server exposes the aggregated metrics over HTTP: the HTML
// dashboard, a JSON API, a health check and Prometheus metrics.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/naka-gawa/velocity-dashboard/internal/dashboard"
	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// PRSource computes pull request metrics.
type PRSource interface {
	Aggregate(ctx context.Context, days int, repoNames []string) (domain.PRMetrics, error)
}

// CommitSource computes commit metrics.
type CommitSource interface {
	Aggregate(ctx context.Context, days int, repoNames []string) (domain.CommitMetrics, error)
}

// VelocitySource computes the team velocity summary.
type VelocitySource interface {
	Summarize(ctx context.Context, days int, repoNames []string) (domain.VelocityMetrics, error)
}

// CoverageSource computes prompt coverage.
type CoverageSource interface {
	Aggregate(ctx context.Context, days int, project string) (domain.CoverageMetrics, error)
}

// TestResultSource computes test execution metrics.
type TestResultSource interface {
	Aggregate(ctx context.Context, days int, project string) (domain.TestResults, error)
}

// Sources are the aggregations served. Coverage and Tests are nil when no run
// source is configured.
type Sources struct {
	PRs      PRSource
	Commits  CommitSource
	Velocity VelocitySource
	Coverage CoverageSource
	Tests    TestResultSource
}

// Options control what the server serves by default.
type Options struct {
	Title     string
	APIPrefix string
	Days      int
	Repos     []string
	Project   string
}

// Server serves the dashboard.
type Server struct {
	sources Sources
	opts    Options
	metrics *metrics
	logger  *slog.Logger
}

// New creates a Server.
func New(sources Sources, opts Options, logger *slog.Logger) *Server {
	return &Server{
		sources: sources,
		opts:    opts,
		metrics: newMetrics(),
		logger:  logger,
	}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware, s.recoveryMiddleware)

	r.Get("/", s.handleDashboard)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	prefix := strings.TrimRight(s.opts.APIPrefix, "/")
	r.Get(prefix+"/velocity", s.handleVelocity)
	r.Get(prefix+"/prs", s.handlePRs)
	r.Get(prefix+"/commits", s.handleCommits)
	r.Get(prefix+"/coverage", s.handleCoverage)
	r.Get(prefix+"/tests", s.handleTests)
	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("shutdown complete")
	return nil
}

// days returns the ?days= override or the configured default.
func (s *Server) days(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return s.opts.Days, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("days must be a positive integer, got %q", raw)
	}
	return days, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleVelocity(w http.ResponseWriter, r *http.Request) {
	serveAggregation(s, w, r, "velocity", func(ctx context.Context, days int) (domain.VelocityMetrics, error) {
		return s.sources.Velocity.Summarize(ctx, days, s.opts.Repos)
	})
}

func (s *Server) handlePRs(w http.ResponseWriter, r *http.Request) {
	serveAggregation(s, w, r, "prs", func(ctx context.Context, days int) (domain.PRMetrics, error) {
		return s.sources.PRs.Aggregate(ctx, days, s.opts.Repos)
	})
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	serveAggregation(s, w, r, "commits", func(ctx context.Context, days int) (domain.CommitMetrics, error) {
		return s.sources.Commits.Aggregate(ctx, days, s.opts.Repos)
	})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	if s.sources.Coverage == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt coverage is not configured")
		return
	}
	serveAggregation(s, w, r, "coverage", func(ctx context.Context, days int) (domain.CoverageMetrics, error) {
		return s.sources.Coverage.Aggregate(ctx, days, r.URL.Query().Get("project"))
	})
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	if s.sources.Tests == nil {
		writeError(w, http.StatusServiceUnavailable, "test results are not configured")
		return
	}
	serveAggregation(s, w, r, "tests", func(ctx context.Context, days int) (domain.TestResults, error) {
		return s.sources.Tests.Aggregate(ctx, days, r.URL.Query().Get("project"))
	})
}

// serveAggregation runs one aggregation, records its duration and writes the
// result as JSON.
func serveAggregation[T any](s *Server, w http.ResponseWriter, r *http.Request, name string,
	aggregate func(ctx context.Context, days int) (T, error)) {
	days, err := s.days(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := timed(s, name, func() (T, error) { return aggregate(r.Context(), days) })
	if errors.Is(err, usecase.ErrProjectRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("aggregation failed", "aggregation", name, "days", days, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to aggregate %s", name))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func timed[T any](s *Server, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	s.metrics.observeAggregation(name, err, time.Since(start))
	return result, err
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	days, err := s.days(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	velocity, err := timed(s, "velocity", func() (domain.VelocityMetrics, error) {
		return s.sources.Velocity.Summarize(ctx, days, s.opts.Repos)
	})
	if err != nil {
		s.logger.Error("aggregation failed", "aggregation", "velocity", "days", days, "error", err)
		writeError(w, http.StatusBadGateway, "failed to aggregate velocity")
		return
	}
	data := dashboard.Data{Title: s.opts.Title, Days: days, Velocity: velocity}

	if s.sources.Coverage != nil {
		coverage, err := timed(s, "coverage", func() (domain.CoverageMetrics, error) {
			return s.sources.Coverage.Aggregate(ctx, days, s.opts.Project)
		})
		if err != nil {
			s.logger.Warn("omitting prompt coverage", "error", err)
		} else {
			data.Coverage = &coverage
		}
	}
	if s.sources.Tests != nil {
		tests, err := timed(s, "tests", func() (domain.TestResults, error) {
			return s.sources.Tests.Aggregate(ctx, days, s.opts.Project)
		})
		if err != nil {
			s.logger.Warn("omitting test results", "error", err)
		} else {
			data.Tests = &tests
		}
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, data); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
