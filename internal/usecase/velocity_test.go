package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/logging"
)

func TestCombineVelocity(t *testing.T) {
	prs := domain.PRMetrics{
		MergedPRs:           12,
		OpenPRs:             4,
		AvgPRCycleTimeHours: 60,
		PRsByAuthor:         map[string]int{"alice": 5, "bob": 7},
		DailyPRs:            []domain.DailyPRCount{{Date: "2024-06-01", Created: 3, Merged: 2}},
	}
	commits := domain.CommitMetrics{
		TotalCommits:    90,
		CommitsByAuthor: map[string]int{"bob": 40, "carol": 50},
		DailyCommits:    []domain.DailyCount{{Date: "2024-06-01", Count: 90}},
	}

	testCases := []struct {
		name          string
		days          int
		expectedDaily float64
	}{
		{name: "average over the window", days: 30, expectedDaily: 3},
		{name: "zero days", days: 0, expectedDaily: 0},
		{name: "negative days", days: -5, expectedDaily: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CombineVelocity(prs, commits, tc.days)
			assert.InDelta(t, 2.5, got.PRCycleTimeDays, 1e-9)
			assert.InDelta(t, tc.expectedDaily, got.DailyCommits, 1e-9)
			assert.Equal(t, 3, got.ActiveContributors)
			assert.Equal(t, 12, got.PRsMerged)
			assert.Equal(t, 4, got.PRsOpen)
			assert.Equal(t, 90, got.TotalCommits)
			assert.Equal(t, prs.PRsByAuthor, got.PRsByAuthor)
			assert.Equal(t, commits.CommitsByAuthor, got.CommitsByAuthor)
			assert.Equal(t, commits.DailyCommits, got.DailyCommitsData)
			assert.Equal(t, prs.DailyPRs, got.DailyPRsData)
		})
	}
}

func TestVelocitySummarizer_Summarize(t *testing.T) {
	since := windowStart(testNow, 10)
	created := testNow.Add(-72 * time.Hour)

	t.Run("combines both aggregations", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchPullRequests", mock.Anything, "acme", "api", since).Return([]domain.PullRequestRecord{
			mergedPR("api", "alice", created, 48*time.Hour),
			{Repository: "api", Author: "bob", State: domain.PRStateOpen, CreatedAt: created},
		}, nil)
		fetcher.On("FetchCommits", mock.Anything, "acme", "api", since).Return([]domain.CommitRecord{
			commit("api", "carol", created),
			commit("api", "alice", created),
		}, nil)

		summarizer := NewVelocitySummarizer(
			NewPRAggregator(fetcher, "acme", logging.Discard(), testClock),
			NewCommitAggregator(fetcher, "acme", logging.Discard(), testClock),
			logging.Discard(),
		)
		got, err := summarizer.Summarize(context.Background(), 10, []string{"api"})
		require.NoError(t, err)

		assert.InDelta(t, 2.0, got.PRCycleTimeDays, 1e-9)
		assert.InDelta(t, 0.2, got.DailyCommits, 1e-9)
		assert.Equal(t, 3, got.ActiveContributors)
		assert.Equal(t, 1, got.PRsMerged)
		assert.Equal(t, 1, got.PRsOpen)
		fetcher.AssertExpectations(t)
	})

	t.Run("fails when the organization cannot be listed", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("ListRepositories", mock.Anything, "acme").Return(nil, errors.New("bad credentials"))

		summarizer := NewVelocitySummarizer(
			NewPRAggregator(fetcher, "acme", logging.Discard(), testClock),
			NewCommitAggregator(fetcher, "acme", logging.Discard(), testClock),
			logging.Discard(),
		)
		_, err := summarizer.Summarize(context.Background(), 10, nil)
		assert.Error(t, err)
	})
}
