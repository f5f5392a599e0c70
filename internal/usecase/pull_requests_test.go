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

func mergedPR(repo, author string, created time.Time, cycle time.Duration) domain.PullRequestRecord {
	merged := created.Add(cycle)
	return domain.PullRequestRecord{Repository: repo, Author: author, State: domain.PRStateMerged, CreatedAt: created, MergedAt: &merged}
}

func TestSummarizePullRequests(t *testing.T) {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		records  []domain.PullRequestRecord
		expected domain.PRMetrics
	}{
		{
			name: "one merged and one open pull request",
			records: []domain.PullRequestRecord{
				mergedPR("api", "alice", created, 2*time.Hour),
				{Repository: "api", Author: "bob", State: domain.PRStateOpen, CreatedAt: created},
			},
			expected: domain.PRMetrics{
				TotalPRs:            2,
				MergedPRs:           1,
				OpenPRs:             1,
				AvgPRCycleTimeHours: 2.0,
				PRCycleTimes:        []float64{2.0},
				PRsByAuthor:         map[string]int{"alice": 1, "bob": 1},
				PRsByRepo:           map[string]int{"api": 2},
				DailyPRs:            []domain.DailyPRCount{{Date: "2024-06-10", Created: 2, Merged: 1}},
			},
		},
		{
			name: "closed without merge counts only toward the total",
			records: []domain.PullRequestRecord{
				{Repository: "web", Author: "carol", State: domain.PRStateUnmerged, CreatedAt: created},
			},
			expected: domain.PRMetrics{
				TotalPRs:     1,
				PRCycleTimes: []float64{},
				PRsByAuthor:  map[string]int{"carol": 1},
				PRsByRepo:    map[string]int{"web": 1},
				DailyPRs:     []domain.DailyPRCount{{Date: "2024-06-10", Created: 1}},
			},
		},
		{
			name: "records outside the window are excluded entirely",
			records: []domain.PullRequestRecord{
				mergedPR("api", "alice", since.Add(-time.Second), time.Hour),
				{Repository: "api", Author: "bob", State: domain.PRStateOpen, CreatedAt: since},
			},
			expected: domain.PRMetrics{
				TotalPRs:     1,
				OpenPRs:      1,
				PRCycleTimes: []float64{},
				PRsByAuthor:  map[string]int{"bob": 1},
				PRsByRepo:    map[string]int{"api": 1},
				DailyPRs:     []domain.DailyPRCount{{Date: "2024-06-01", Created: 1}},
			},
		},
		{
			name: "merged without merge timestamp has no cycle time",
			records: []domain.PullRequestRecord{
				{Repository: "api", Author: "alice", State: domain.PRStateMerged, CreatedAt: created},
				mergedPR("api", "alice", created, 4*time.Hour),
				mergedPR("web", "bob", created, 8*time.Hour),
			},
			expected: domain.PRMetrics{
				TotalPRs:            3,
				MergedPRs:           3,
				AvgPRCycleTimeHours: 6.0,
				PRCycleTimes:        []float64{4.0, 8.0},
				PRsByAuthor:         map[string]int{"alice": 2, "bob": 1},
				PRsByRepo:           map[string]int{"api": 2, "web": 1},
				DailyPRs:            []domain.DailyPRCount{{Date: "2024-06-10", Created: 3, Merged: 2}},
			},
		},
		{
			name: "unknown author is not tallied by author",
			records: []domain.PullRequestRecord{
				{Repository: "api", State: domain.PRStateOpen, CreatedAt: created},
			},
			expected: domain.PRMetrics{
				TotalPRs:     1,
				OpenPRs:      1,
				PRCycleTimes: []float64{},
				PRsByAuthor:  map[string]int{},
				PRsByRepo:    map[string]int{"api": 1},
				DailyPRs:     []domain.DailyPRCount{{Date: "2024-06-10", Created: 1}},
			},
		},
		{
			name:    "no records",
			records: nil,
			expected: domain.PRMetrics{
				PRCycleTimes: []float64{},
				PRsByAuthor:  map[string]int{},
				PRsByRepo:    map[string]int{},
				DailyPRs:     []domain.DailyPRCount{},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SummarizePullRequests(tc.records, since)
			assert.Equal(t, tc.expected, got)

			// Tally conservation: by-author and by-repo sums match their predicates.
			var withAuthor, withRepo int
			for _, r := range tc.records {
				if r.CreatedAt.Before(since) {
					continue
				}
				if r.Author != "" {
					withAuthor++
				}
				if r.Repository != "" {
					withRepo++
				}
			}
			assert.Equal(t, withAuthor, sum(got.PRsByAuthor))
			assert.Equal(t, withRepo, sum(got.PRsByRepo))

			// Idempotence.
			assert.Equal(t, got, SummarizePullRequests(tc.records, since))
		})
	}
}

func TestSummarizePullRequests_DailySeries(t *testing.T) {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)

	records := []domain.PullRequestRecord{
		mergedPR("api", "alice", day1, 36*time.Hour),
		mergedPR("api", "bob", day2, time.Hour),
		{Repository: "web", Author: "carol", State: domain.PRStateOpen, CreatedAt: day2},
	}

	got := SummarizePullRequests(records, since)

	assert.Equal(t, []domain.DailyPRCount{
		{Date: "2024-06-03", Created: 1},
		{Date: "2024-06-04", Created: 2, Merged: 1},
		{Date: "2024-06-05", Merged: 1},
	}, got.DailyPRs)
}

func TestPRAggregator_Aggregate(t *testing.T) {
	since := windowStart(testNow, 30)
	created := testNow.Add(-48 * time.Hour)

	testCases := []struct {
		name        string
		repoNames   []string
		setup       func(f *mockFetcher)
		expectTotal int
		expectRepos map[string]int
		expectError bool
	}{
		{
			name: "scans every repository of the organization",
			setup: func(f *mockFetcher) {
				f.On("ListRepositories", mock.Anything, "acme").Return([]string{"api", "web"}, nil)
				f.On("FetchPullRequests", mock.Anything, "acme", "api", since).Return([]domain.PullRequestRecord{
					mergedPR("api", "alice", created, time.Hour),
				}, nil)
				f.On("FetchPullRequests", mock.Anything, "acme", "web", since).Return([]domain.PullRequestRecord{
					{Repository: "web", Author: "bob", State: domain.PRStateOpen, CreatedAt: created},
					{Repository: "web", Author: "bob", State: domain.PRStateOpen, CreatedAt: since.Add(-time.Hour)},
				}, nil)
			},
			expectTotal: 2,
			expectRepos: map[string]int{"api": 1, "web": 1},
		},
		{
			name:      "inaccessible repository in the allow-list is skipped",
			repoNames: []string{"api", "private"},
			setup: func(f *mockFetcher) {
				f.On("FetchPullRequests", mock.Anything, "acme", "api", since).Return([]domain.PullRequestRecord{
					mergedPR("api", "alice", created, time.Hour),
				}, nil)
				f.On("FetchPullRequests", mock.Anything, "acme", "private", since).Return(nil, errors.New("404 Not Found"))
			},
			expectTotal: 1,
			expectRepos: map[string]int{"api": 1},
		},
		{
			name: "listing failure propagates",
			setup: func(f *mockFetcher) {
				f.On("ListRepositories", mock.Anything, "acme").Return(nil, errors.New("bad credentials"))
			},
			expectError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			tc.setup(fetcher)
			aggregator := NewPRAggregator(fetcher, "acme", logging.Discard(), testClock, WithConcurrency(2))

			got, err := aggregator.Aggregate(context.Background(), 30, tc.repoNames)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectTotal, got.TotalPRs)
				assert.Equal(t, tc.expectRepos, got.PRsByRepo)
			}
			fetcher.AssertExpectations(t)
		})
	}
}

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
