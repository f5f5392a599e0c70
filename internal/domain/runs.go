package domain

import (
	"slices"
	"time"
)

// TestTag marks a run as belonging to a test execution.
const TestTag = "test"

// PromptRunRecord is a single LLM run as recorded by the observability platform.
type PromptRunRecord struct {
	ID       string
	Template string
	Error    bool
	Tags     []string
}

// HasTag reports whether the run carries the given tag.
func (r PromptRunRecord) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// TestRunRecord is a single test-tagged run.
type TestRunRecord struct {
	ID    string
	Name  string
	Error bool
	// Score is the evaluation score in [0,1], nil when the run was not evaluated.
	Score     *float64
	StartTime *time.Time
	EndTime   *time.Time
}

// TestStatus is the outcome classification of a test run.
type TestStatus string

const (
	TestPassed TestStatus = "passed"
	TestFailed TestStatus = "failed"
	TestError  TestStatus = "error"
)

// PromptTemplateStats summarizes the runs that share a prompt template.
type PromptTemplateStats struct {
	ID       string `json:"id"`
	Template string `json:"template"`
	Runs     int    `json:"runs"`
	Success  int    `json:"success"`
	Errors   int    `json:"errors"`
	Tested   bool   `json:"tested"`
}

// CoverageMetrics describes how much of the prompt inventory is exercised by tests.
type CoverageMetrics struct {
	PromptCoverage     float64               `json:"prompt_coverage"`
	TestSuccessRate    float64               `json:"test_success_rate"`
	PromptsTracked     int                   `json:"prompts_tracked"`
	PromptsTested      int                   `json:"prompts_tested"`
	TotalRuns          int                   `json:"total_runs"`
	SuccessfulRuns     int                   `json:"successful_runs"`
	ErrorRuns          int                   `json:"error_runs"`
	RegressionFailures int                   `json:"regression_failures"`
	PromptTemplates    []PromptTemplateStats `json:"prompt_templates"`
}

// TestCaseFailures is the number of failed or errored runs of one test case.
type TestCaseFailures struct {
	TestCase string `json:"test_case"`
	Count    int    `json:"count"`
}

// TestHistoryEntry is one classified test run.
type TestHistoryEntry struct {
	TestCase      string     `json:"test_case"`
	Status        TestStatus `json:"status"`
	Timestamp     *time.Time `json:"timestamp"`
	ExecutionTime *float64   `json:"execution_time"`
	RunID         string     `json:"run_id"`
}

// TestResults holds test execution statistics for a look-back window.
type TestResults struct {
	TotalTests       int       `json:"total_tests"`
	Passed           int       `json:"passed"`
	Failed           int       `json:"failed"`
	Error            int       `json:"error"`
	PassRate         float64   `json:"pass_rate"`
	AvgExecutionTime float64   `json:"avg_execution_time"`
	ExecutionTimes   []float64 `json:"execution_times"`
	// FailuresByTestCase is ordered by descending count.
	FailuresByTestCase []TestCaseFailures `json:"failures_by_test_case"`
	TestHistory        []TestHistoryEntry `json:"test_history"`
}
