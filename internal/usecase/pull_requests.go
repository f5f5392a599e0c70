package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
)

// PRAggregator computes pull request metrics for an organization.
type PRAggregator struct {
	scan repositoryScan
	now  func() time.Time
}

// NewPRAggregator creates a new PRAggregator instance.
func NewPRAggregator(fetcher gateway.Fetcher, org string, logger *slog.Logger, opts ...Option) *PRAggregator {
	o := newOptions(opts)
	return &PRAggregator{
		scan: repositoryScan{fetcher: fetcher, org: org, concurrency: o.concurrency, logger: logger},
		now:  o.now,
	}
}

// Aggregate fetches pull requests of the given repositories (all repositories
// of the organization when repoNames is empty) and summarizes those created
// in the last days days.
func (a *PRAggregator) Aggregate(ctx context.Context, days int, repoNames []string) (domain.PRMetrics, error) {
	since := windowStart(a.now(), days)
	records, err := collect(ctx, a.scan, repoNames, "pull_requests",
		func(ctx context.Context, repo string) ([]domain.PullRequestRecord, error) {
			return a.scan.fetcher.FetchPullRequests(ctx, a.scan.org, repo, since)
		})
	if err != nil {
		return domain.PRMetrics{}, err
	}
	return SummarizePullRequests(records, since), nil
}

// SummarizePullRequests tallies pull requests created at or after since.
//
// A closed pull request that was not merged counts toward TotalPRs but toward
// neither MergedPRs nor OpenPRs.
func SummarizePullRequests(records []domain.PullRequestRecord, since time.Time) domain.PRMetrics {
	m := domain.PRMetrics{
		PRCycleTimes: []float64{},
		PRsByAuthor:  map[string]int{},
		PRsByRepo:    map[string]int{},
	}
	created := map[string]int{}
	merged := map[string]int{}
	for _, pr := range records {
		if pr.CreatedAt.Before(since) {
			continue
		}
		m.TotalPRs++
		created[pr.CreatedAt.UTC().Format(domain.DateLayout)]++

		switch pr.State {
		case domain.PRStateOpen:
			m.OpenPRs++
		case domain.PRStateMerged:
			m.MergedPRs++
			if pr.MergedAt != nil {
				m.PRCycleTimes = append(m.PRCycleTimes, pr.MergedAt.Sub(pr.CreatedAt).Hours())
				merged[pr.MergedAt.UTC().Format(domain.DateLayout)]++
			}
		}

		if pr.Author != "" {
			m.PRsByAuthor[pr.Author]++
		}
		if pr.Repository != "" {
			m.PRsByRepo[pr.Repository]++
		}
	}
	m.AvgPRCycleTimeHours = mean(m.PRCycleTimes)
	m.DailyPRs = dailyPRs(created, merged)
	return m
}

// dailyPRs merges per-day created and merged tallies into an ascending series.
func dailyPRs(created, merged map[string]int) []domain.DailyPRCount {
	days := make([]domain.DailyPRCount, 0, len(created)+len(merged))
	for date, n := range created {
		days = append(days, domain.DailyPRCount{Date: date, Created: n, Merged: merged[date]})
	}
	for date, n := range merged {
		if _, ok := created[date]; !ok {
			days = append(days, domain.DailyPRCount{Date: date, Merged: n})
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// mean returns the arithmetic mean of values, or 0 for an empty slice.
func mean(values []float64) float64 {
	avg, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return avg
}

// percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	rounded, err := stats.Round(float64(part)/float64(whole)*100, 2)
	if err != nil {
		return 0
	}
	return rounded
}
