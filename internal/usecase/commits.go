package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
)

// UnknownAuthor is the by-author key for commits whose linked account has no login.
const UnknownAuthor = "unknown"

// CommitAggregator computes commit metrics for an organization.
type CommitAggregator struct {
	scan repositoryScan
	now  func() time.Time
}

// NewCommitAggregator creates a new CommitAggregator instance.
func NewCommitAggregator(fetcher gateway.Fetcher, org string, logger *slog.Logger, opts ...Option) *CommitAggregator {
	o := newOptions(opts)
	return &CommitAggregator{
		scan: repositoryScan{fetcher: fetcher, org: org, concurrency: o.concurrency, logger: logger},
		now:  o.now,
	}
}

// Aggregate fetches commits authored in the last days days and summarizes them.
// The window is applied by the record source.
func (a *CommitAggregator) Aggregate(ctx context.Context, days int, repoNames []string) (domain.CommitMetrics, error) {
	since := windowStart(a.now(), days)
	records, err := collect(ctx, a.scan, repoNames, "commits",
		func(ctx context.Context, repo string) ([]domain.CommitRecord, error) {
			return a.scan.fetcher.FetchCommits(ctx, a.scan.org, repo, since)
		})
	if err != nil {
		return domain.CommitMetrics{}, err
	}
	return SummarizeCommits(records), nil
}

// SummarizeCommits tallies commits that are linked to an account. Commits
// without an account are skipped; a linked account without a login is
// tallied under UnknownAuthor.
func SummarizeCommits(records []domain.CommitRecord) domain.CommitMetrics {
	m := domain.CommitMetrics{
		CommitsByAuthor: map[string]int{},
		CommitsByRepo:   map[string]int{},
	}
	daily := map[string]int{}
	for _, c := range records {
		if c.Account == nil {
			continue
		}
		m.TotalCommits++

		author := UnknownAuthor
		if c.Account.Login != "" {
			author = c.Account.Login
		}
		m.CommitsByAuthor[author]++
		m.CommitsByRepo[c.Repository]++
		daily[c.AuthoredAt.UTC().Format(domain.DateLayout)]++
	}

	m.DailyCommits = make([]domain.DailyCount, 0, len(daily))
	for date, count := range daily {
		m.DailyCommits = append(m.DailyCommits, domain.DailyCount{Date: date, Count: count})
	}
	sort.Slice(m.DailyCommits, func(i, j int) bool {
		return m.DailyCommits[i].Date < m.DailyCommits[j].Date
	})
	return m
}
