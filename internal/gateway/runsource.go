package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

// ErrRunSourceUnavailable is returned when a component needs LangSmith but it was not configured.
var ErrRunSourceUnavailable = errors.New("run source unavailable")

// RunFetcher lists LLM run records for a project.
type RunFetcher interface {
	ListPromptRuns(ctx context.Context, project string, since time.Time) ([]domain.PromptRunRecord, error)
	ListTestRuns(ctx context.Context, project string, since time.Time) ([]domain.TestRunRecord, error)
}

// RunSource is either an available RunFetcher or the reason none is available.
type RunSource struct {
	fetcher RunFetcher
	reason  string
}

// Available wraps a configured fetcher.
func Available(f RunFetcher) RunSource {
	return RunSource{fetcher: f}
}

// Unavailable records why no fetcher could be built.
func Unavailable(reason string) RunSource {
	return RunSource{reason: reason}
}

// Fetcher returns the wrapped fetcher and whether it is available.
func (s RunSource) Fetcher() (RunFetcher, bool) {
	return s.fetcher, s.fetcher != nil
}

// Reason explains an unavailable source. It is empty for available sources.
func (s RunSource) Reason() string {
	if s.fetcher != nil {
		return ""
	}
	if s.reason == "" {
		return "not configured"
	}
	return s.reason
}
