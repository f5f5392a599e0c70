package usecase

import (
	"context"
	"log/slog"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"golang.org/x/sync/errgroup"
)

const hoursPerDay = 24

// VelocitySummarizer combines pull request and commit metrics into the team velocity summary.
type VelocitySummarizer struct {
	prs     *PRAggregator
	commits *CommitAggregator
	logger  *slog.Logger
}

// NewVelocitySummarizer creates a new VelocitySummarizer instance.
func NewVelocitySummarizer(prs *PRAggregator, commits *CommitAggregator, logger *slog.Logger) *VelocitySummarizer {
	return &VelocitySummarizer{prs: prs, commits: commits, logger: logger}
}

// Summarize fetches pull request and commit metrics concurrently and combines them.
func (v *VelocitySummarizer) Summarize(ctx context.Context, days int, repoNames []string) (domain.VelocityMetrics, error) {
	v.logger.Debug("starting velocity aggregation", "days", days, "repositories", repoNames)

	var prMetrics domain.PRMetrics
	var commitMetrics domain.CommitMetrics

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		prMetrics, err = v.prs.Aggregate(egCtx, days, repoNames)
		return err
	})
	eg.Go(func() error {
		var err error
		commitMetrics, err = v.commits.Aggregate(egCtx, days, repoNames)
		return err
	})
	if err := eg.Wait(); err != nil {
		return domain.VelocityMetrics{}, err
	}

	v.logger.Debug("velocity aggregation complete",
		"total_prs", prMetrics.TotalPRs,
		"total_commits", commitMetrics.TotalCommits,
	)
	return CombineVelocity(prMetrics, commitMetrics, days), nil
}

// CombineVelocity derives the velocity summary from metrics of the same window.
func CombineVelocity(prs domain.PRMetrics, commits domain.CommitMetrics, days int) domain.VelocityMetrics {
	contributors := make(map[string]struct{}, len(prs.PRsByAuthor)+len(commits.CommitsByAuthor))
	for author := range prs.PRsByAuthor {
		contributors[author] = struct{}{}
	}
	for author := range commits.CommitsByAuthor {
		contributors[author] = struct{}{}
	}

	var dailyCommits float64
	if days > 0 {
		dailyCommits = float64(commits.TotalCommits) / float64(days)
	}

	return domain.VelocityMetrics{
		PRCycleTimeDays:    prs.AvgPRCycleTimeHours / hoursPerDay,
		DailyCommits:       dailyCommits,
		ActiveContributors: len(contributors),
		PRsMerged:          prs.MergedPRs,
		PRsOpen:            prs.OpenPRs,
		TotalCommits:       commits.TotalCommits,
		PRsByAuthor:        prs.PRsByAuthor,
		CommitsByAuthor:    commits.CommitsByAuthor,
		DailyCommitsData:   commits.DailyCommits,
		DailyPRsData:       prs.DailyPRs,
	}
}
