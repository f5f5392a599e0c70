// Package usecase contains the business logic of the application: the
// aggregators that turn raw record streams into dashboard metrics.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Option configures an aggregator.
type Option func(*options)

type options struct {
	now         func() time.Time
	concurrency int
}

// WithClock replaces time.Now, e.g. for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithConcurrency bounds the number of repositories fetched at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// windowStart returns the beginning of a look-back window of the given number of days.
func windowStart(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// repositoryScan fetches records from every repository of an organization,
// or from an explicit allow-list.
type repositoryScan struct {
	fetcher     gateway.Fetcher
	org         string
	concurrency int
	logger      *slog.Logger
}

// collect runs fetch for each repository with bounded concurrency. A repository
// that cannot be fetched is logged and skipped. Records keep repository order.
func collect[T any](ctx context.Context, s repositoryScan, repoNames []string, kind string,
	fetch func(ctx context.Context, repo string) ([]T, error)) ([]T, error) {
	repos := repoNames
	if len(repos) == 0 {
		var err error
		repos, err = s.fetcher.ListRepositories(ctx, s.org)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", s.org, err)
		}
	}
	s.logger.Debug("fetching records", "kind", kind, "org", s.org, "repositories", len(repos))

	perRepo := make([][]T, len(repos))
	var eg errgroup.Group
	eg.SetLimit(max(s.concurrency, 1))
	for i, repo := range repos {
		eg.Go(func() error {
			records, err := fetch(ctx, repo)
			if err != nil {
				s.logger.Warn("skipping repository", "kind", kind, "repo", repo, "error", err)
				return nil
			}
			perRepo[i] = records
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []T
	for _, records := range perRepo {
		all = append(all, records...)
	}
	s.logger.Debug("fetched records", "kind", kind, "count", len(all))
	return all, nil
}
