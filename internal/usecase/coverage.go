package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
)

// ErrProjectRequired is returned when neither the call nor the aggregator names a project.
var ErrProjectRequired = errors.New("project name is required")

// CoverageAggregator computes prompt coverage from LLM runs.
type CoverageAggregator struct {
	runs    gateway.RunFetcher
	project string
	now     func() time.Time
	logger  *slog.Logger
}

// NewCoverageAggregator returns an error wrapping gateway.ErrRunSourceUnavailable
// when source is unavailable.
func NewCoverageAggregator(source gateway.RunSource, project string, logger *slog.Logger, opts ...Option) (*CoverageAggregator, error) {
	runs, ok := source.Fetcher()
	if !ok {
		return nil, fmt.Errorf("prompt coverage: %w: %s", gateway.ErrRunSourceUnavailable, source.Reason())
	}
	o := newOptions(opts)
	return &CoverageAggregator{runs: runs, project: project, now: o.now, logger: logger}, nil
}

// Aggregate computes coverage over the LLM runs of the last days days. An
// empty project falls back to the aggregator's default project; if both are
// empty a configuration error is returned. Fetch failures never surface:
// they yield FallbackCoverage.
func (a *CoverageAggregator) Aggregate(ctx context.Context, days int, project string) (domain.CoverageMetrics, error) {
	project, err := resolveProject(project, a.project)
	if err != nil {
		return domain.CoverageMetrics{}, err
	}
	runs, err := a.runs.ListPromptRuns(ctx, project, windowStart(a.now(), days))
	if err != nil {
		a.logger.Error("error fetching prompt coverage, using fallback metrics", "project", project, "error", err)
		return FallbackCoverage(), nil
	}
	return SummarizeCoverage(runs), nil
}

// SummarizeCoverage groups runs by prompt template and computes coverage and
// success rate. Runs without a template are ignored.
func SummarizeCoverage(runs []domain.PromptRunRecord) domain.CoverageMetrics {
	var order []string
	groups := map[string]*domain.PromptTemplateStats{}
	for _, run := range runs {
		if run.Template == "" {
			continue
		}
		id := templateID(run.Template)
		group, ok := groups[id]
		if !ok {
			group = &domain.PromptTemplateStats{ID: id, Template: run.Template}
			groups[id] = group
			order = append(order, id)
		}
		group.Runs++
		if run.Error {
			group.Errors++
		} else {
			group.Success++
		}
		if run.HasTag(domain.TestTag) {
			group.Tested = true
		}
	}

	m := domain.CoverageMetrics{PromptTemplates: make([]domain.PromptTemplateStats, 0, len(order))}
	for _, id := range order {
		group := groups[id]
		m.PromptTemplates = append(m.PromptTemplates, *group)
		if group.Tested {
			m.PromptsTested++
		}
		m.TotalRuns += group.Runs
		m.SuccessfulRuns += group.Success
	}
	m.PromptsTracked = len(order)
	m.ErrorRuns = m.TotalRuns - m.SuccessfulRuns
	m.PromptCoverage = percent(m.PromptsTested, m.PromptsTracked)
	m.TestSuccessRate = percent(m.SuccessfulRuns, m.TotalRuns)
	// Regression detection needs a historical baseline, which is not kept.
	m.RegressionFailures = 0
	return m
}

// templateID identifies a prompt template by the SHA-256 of its text.
func templateID(template string) string {
	sum := sha256.Sum256([]byte(template))
	return hex.EncodeToString(sum[:])
}

func resolveProject(requested, fallback string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: pass it explicitly or set LANGSMITH_PROJECT", ErrProjectRequired)
}
