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
	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
	"github.com/naka-gawa/velocity-dashboard/internal/logging"
)

func ptrFloat(f float64) *float64 { return &f }

func ptrTime(t time.Time) *time.Time { return &t }

func TestClassifyTestRun(t *testing.T) {
	testCases := []struct {
		name     string
		run      domain.TestRunRecord
		expected domain.TestStatus
	}{
		{name: "error wins over score", run: domain.TestRunRecord{Error: true, Score: ptrFloat(0.9)}, expected: domain.TestError},
		{name: "no score passes", run: domain.TestRunRecord{}, expected: domain.TestPassed},
		{name: "score above threshold", run: domain.TestRunRecord{Score: ptrFloat(0.51)}, expected: domain.TestPassed},
		{name: "score at threshold fails", run: domain.TestRunRecord{Score: ptrFloat(0.5)}, expected: domain.TestFailed},
		{name: "zero score fails", run: domain.TestRunRecord{Score: ptrFloat(0)}, expected: domain.TestFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyTestRun(tc.run))
		})
	}
}

func TestSummarizeTestRuns(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	runs := []domain.TestRunRecord{
		{ID: "r1", Name: "test_a", Score: ptrFloat(0.9), StartTime: ptrTime(start), EndTime: ptrTime(start.Add(2 * time.Second))},
		{ID: "r2", Name: "test_b", Score: ptrFloat(0.2), StartTime: ptrTime(start), EndTime: ptrTime(start.Add(4 * time.Second))},
		{ID: "r3", Name: "test_c", Error: true},
		{ID: "r4", Name: "test_b", Error: true, StartTime: ptrTime(start)},
		{ID: "r5", Score: ptrFloat(0.1)},
	}

	got := SummarizeTestRuns(runs)

	assert.Equal(t, 5, got.TotalTests)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 2, got.Failed)
	assert.Equal(t, 2, got.Error)
	assert.Equal(t, got.TotalTests, got.Passed+got.Failed+got.Error)
	assert.Equal(t, 20.0, got.PassRate)
	assert.Equal(t, []float64{2, 4}, got.ExecutionTimes)
	assert.InDelta(t, 3.0, got.AvgExecutionTime, 1e-9)

	// Ties keep first-seen order.
	assert.Equal(t, []domain.TestCaseFailures{
		{TestCase: "test_b", Count: 2},
		{TestCase: "test_c", Count: 1},
		{TestCase: "unnamed_test", Count: 1},
	}, got.FailuresByTestCase)

	require.Len(t, got.TestHistory, 5)
	assert.Equal(t, "r1", got.TestHistory[0].RunID)
	assert.Equal(t, domain.TestPassed, got.TestHistory[0].Status)
	require.NotNil(t, got.TestHistory[0].ExecutionTime)
	assert.InDelta(t, 2.0, *got.TestHistory[0].ExecutionTime, 1e-9)
	assert.Nil(t, got.TestHistory[3].ExecutionTime)
	assert.Equal(t, &start, got.TestHistory[3].Timestamp)
	assert.Nil(t, got.TestHistory[2].Timestamp)
	assert.Equal(t, "unnamed_test", got.TestHistory[4].TestCase)

	assert.Equal(t, got, SummarizeTestRuns(runs))
}

func TestSummarizeTestRuns_PassRateUnrounded(t *testing.T) {
	runs := []domain.TestRunRecord{
		{ID: "r1", Name: "test_a"},
		{ID: "r2", Name: "test_b", Error: true},
		{ID: "r3", Name: "test_c", Score: ptrFloat(0.1)},
	}

	got := SummarizeTestRuns(runs)

	assert.Equal(t, float64(1)/float64(3)*100, got.PassRate)
	assert.NotEqual(t, 33.33, got.PassRate)
}

func TestSummarizeTestRuns_FailuresSortedByCount(t *testing.T) {
	runs := []domain.TestRunRecord{
		{Name: "x", Error: true},
		{Name: "y", Error: true},
		{Name: "y", Error: true},
		{Name: "z", Error: true},
		{Name: "z", Error: true},
		{Name: "z", Error: true},
		{Name: "w", Error: true},
	}
	got := SummarizeTestRuns(runs)
	assert.Equal(t, []domain.TestCaseFailures{
		{TestCase: "z", Count: 3},
		{TestCase: "y", Count: 2},
		{TestCase: "x", Count: 1},
		{TestCase: "w", Count: 1},
	}, got.FailuresByTestCase)
}

func TestSummarizeTestRuns_Empty(t *testing.T) {
	got := SummarizeTestRuns(nil)
	assert.Equal(t, domain.TestResults{
		ExecutionTimes:     []float64{},
		FailuresByTestCase: []domain.TestCaseFailures{},
		TestHistory:        []domain.TestHistoryEntry{},
	}, got)
}

func TestNewTestResultAggregator_Unavailable(t *testing.T) {
	_, err := NewTestResultAggregator(gateway.Unavailable(""), "evals", logging.Discard())
	assert.ErrorIs(t, err, gateway.ErrRunSourceUnavailable)
}

func TestTestResultAggregator_Aggregate(t *testing.T) {
	since := windowStart(testNow, 14)

	testCases := []struct {
		name     string
		runs     []domain.TestRunRecord
		fetchErr error
		check    func(t *testing.T, got domain.TestResults)
	}{
		{
			name: "summarizes fetched runs",
			runs: []domain.TestRunRecord{
				{Name: "test_a", Score: ptrFloat(1)},
				{Name: "test_b", Score: ptrFloat(0)},
			},
			check: func(t *testing.T, got domain.TestResults) {
				assert.Equal(t, 2, got.TotalTests)
				assert.Equal(t, 50.0, got.PassRate)
			},
		},
		{
			name:     "fetch failure returns the fallback",
			fetchErr: errors.New("503 Service Unavailable"),
			check: func(t *testing.T, got domain.TestResults) {
				assert.Equal(t, FallbackTestResults(), got)
				assert.Equal(t, 150, got.TotalTests)
				assert.Equal(t, 92.0, got.PassRate)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runs := new(mockRunFetcher)
			runs.On("ListTestRuns", mock.Anything, "evals", since).Return(tc.runs, tc.fetchErr)
			aggregator, err := NewTestResultAggregator(gateway.Available(runs), "evals", logging.Discard(), testClock)
			require.NoError(t, err)

			got, err := aggregator.Aggregate(context.Background(), 14, "")
			require.NoError(t, err)
			tc.check(t, got)
			runs.AssertExpectations(t)
		})
	}
}
