package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
)

const (
	passThreshold   = 0.5
	unnamedTestCase = "unnamed_test"
)

// TestResultAggregator computes test execution metrics from test-tagged runs.
type TestResultAggregator struct {
	runs    gateway.RunFetcher
	project string
	now     func() time.Time
	logger  *slog.Logger
}

// NewTestResultAggregator returns an error wrapping gateway.ErrRunSourceUnavailable
// when source is unavailable.
func NewTestResultAggregator(source gateway.RunSource, project string, logger *slog.Logger, opts ...Option) (*TestResultAggregator, error) {
	runs, ok := source.Fetcher()
	if !ok {
		return nil, fmt.Errorf("test results: %w: %s", gateway.ErrRunSourceUnavailable, source.Reason())
	}
	o := newOptions(opts)
	return &TestResultAggregator{runs: runs, project: project, now: o.now, logger: logger}, nil
}

// Aggregate computes test metrics over the test runs of the last days days.
// Fetch failures yield FallbackTestResults.
func (a *TestResultAggregator) Aggregate(ctx context.Context, days int, project string) (domain.TestResults, error) {
	project, err := resolveProject(project, a.project)
	if err != nil {
		return domain.TestResults{}, err
	}
	runs, err := a.runs.ListTestRuns(ctx, project, windowStart(a.now(), days))
	if err != nil {
		a.logger.Error("error fetching test results, using fallback metrics", "project", project, "error", err)
		return FallbackTestResults(), nil
	}
	return SummarizeTestRuns(runs), nil
}

// ClassifyTestRun returns error for errored runs, otherwise passed when the
// evaluation score exceeds 0.5 or when there is no score at all.
func ClassifyTestRun(run domain.TestRunRecord) domain.TestStatus {
	switch {
	case run.Error:
		return domain.TestError
	case run.Score == nil:
		return domain.TestPassed
	case *run.Score > passThreshold:
		return domain.TestPassed
	default:
		return domain.TestFailed
	}
}

// SummarizeTestRuns classifies each run and aggregates the outcomes.
func SummarizeTestRuns(runs []domain.TestRunRecord) domain.TestResults {
	r := domain.TestResults{
		TotalTests:     len(runs),
		ExecutionTimes: []float64{},
		TestHistory:    make([]domain.TestHistoryEntry, 0, len(runs)),
	}

	var failureOrder []string
	failures := map[string]int{}
	for _, run := range runs {
		status := ClassifyTestRun(run)
		switch status {
		case domain.TestPassed:
			r.Passed++
		case domain.TestFailed:
			r.Failed++
		case domain.TestError:
			r.Error++
		}

		var execTime *float64
		if run.StartTime != nil && run.EndTime != nil {
			seconds := run.EndTime.Sub(*run.StartTime).Seconds()
			execTime = &seconds
			r.ExecutionTimes = append(r.ExecutionTimes, seconds)
		}

		testCase := run.Name
		if testCase == "" {
			testCase = unnamedTestCase
		}
		if status != domain.TestPassed {
			if _, seen := failures[testCase]; !seen {
				failureOrder = append(failureOrder, testCase)
			}
			failures[testCase]++
		}

		r.TestHistory = append(r.TestHistory, domain.TestHistoryEntry{
			TestCase:      testCase,
			Status:        status,
			Timestamp:     run.StartTime,
			ExecutionTime: execTime,
			RunID:         run.ID,
		})
	}

	if r.TotalTests > 0 {
		r.PassRate = float64(r.Passed) / float64(r.TotalTests) * 100
	}
	r.AvgExecutionTime = mean(r.ExecutionTimes)

	r.FailuresByTestCase = make([]domain.TestCaseFailures, 0, len(failureOrder))
	for _, testCase := range failureOrder {
		r.FailuresByTestCase = append(r.FailuresByTestCase, domain.TestCaseFailures{TestCase: testCase, Count: failures[testCase]})
	}
	sort.SliceStable(r.FailuresByTestCase, func(i, j int) bool {
		return r.FailuresByTestCase[i].Count > r.FailuresByTestCase[j].Count
	})
	return r
}
