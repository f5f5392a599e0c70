// Package report formats metric values as plain-text tables for the terminal.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

const shortIDLength = 12

// ErrUnsupported is returned by WriteTable for values it has no layout for.
var ErrUnsupported = errors.New("no table layout for value")

// Output formats accepted by Write.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Write renders v to w in the named format.
func Write(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	case FormatTable:
		return WriteTable(w, v)
	default:
		return fmt.Errorf("unknown output format %q, want %s or %s", format, FormatJSON, FormatTable)
	}
}

// WriteTable renders one of the domain metric values as tables.
func WriteTable(w io.Writer, v any) error {
	var tables []string
	switch m := v.(type) {
	case domain.VelocityMetrics:
		tables = velocityTables(m)
	case domain.PRMetrics:
		tables = prTables(m)
	case domain.CommitMetrics:
		tables = commitTables(m)
	case domain.CoverageMetrics:
		tables = coverageTables(m)
	case domain.TestResults:
		tables = testTables(m)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
	_, err := fmt.Fprintln(w, strings.Join(tables, "\n\n"))
	return err
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	return tbl
}

func summary(title string, rows ...table.Row) string {
	tbl := newTable(title)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows(rows)
	return tbl.Render()
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f)
}

type tally struct {
	key   string
	count int
}

// ranked orders a tally by count descending, then key.
func ranked(m map[string]int) []tally {
	out := make([]tally, 0, len(m))
	for k, v := range m {
		out = append(out, tally{key: k, count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func tallyTable(title, keyHeader string, m map[string]int) string {
	tbl := newTable(title)
	tbl.AppendHeader(table.Row{keyHeader, "Count"})
	for _, t := range ranked(m) {
		tbl.AppendRow(table.Row{t.key, count(t.count)})
	}
	return tbl.Render()
}

func velocityTables(m domain.VelocityMetrics) []string {
	authors := map[string]struct{}{}
	for a := range m.PRsByAuthor {
		authors[a] = struct{}{}
	}
	for a := range m.CommitsByAuthor {
		authors[a] = struct{}{}
	}
	names := make([]string, 0, len(authors))
	for a := range authors {
		names = append(names, a)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := m.CommitsByAuthor[names[i]], m.CommitsByAuthor[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	contributors := newTable("Contributors")
	contributors.AppendHeader(table.Row{"Author", "PRs", "Commits"})
	for _, a := range names {
		contributors.AppendRow(table.Row{a, count(m.PRsByAuthor[a]), count(m.CommitsByAuthor[a])})
	}

	return []string{
		summary("Team velocity",
			table.Row{"PR cycle time (days)", fmt.Sprintf("%.2f", m.PRCycleTimeDays)},
			table.Row{"Commits per day", fmt.Sprintf("%.2f", m.DailyCommits)},
			table.Row{"Active contributors", count(m.ActiveContributors)},
			table.Row{"PRs merged", count(m.PRsMerged)},
			table.Row{"PRs open", count(m.PRsOpen)},
			table.Row{"Total commits", count(m.TotalCommits)},
		),
		contributors.Render(),
	}
}

func prTables(m domain.PRMetrics) []string {
	return []string{
		summary("Pull requests",
			table.Row{"Total", count(m.TotalPRs)},
			table.Row{"Merged", count(m.MergedPRs)},
			table.Row{"Open", count(m.OpenPRs)},
			table.Row{"Average cycle time (hours)", fmt.Sprintf("%.2f", m.AvgPRCycleTimeHours)},
		),
		tallyTable("Pull requests by repository", "Repository", m.PRsByRepo),
		tallyTable("Pull requests by author", "Author", m.PRsByAuthor),
	}
}

func commitTables(m domain.CommitMetrics) []string {
	daily := newTable("Daily commits")
	daily.AppendHeader(table.Row{"Date", "Commits"})
	for _, d := range m.DailyCommits {
		daily.AppendRow(table.Row{d.Date, count(d.Count)})
	}
	return []string{
		summary("Commits", table.Row{"Total", count(m.TotalCommits)}),
		tallyTable("Commits by repository", "Repository", m.CommitsByRepo),
		tallyTable("Commits by author", "Author", m.CommitsByAuthor),
		daily.Render(),
	}
}

func coverageTables(m domain.CoverageMetrics) []string {
	templates := newTable("Prompt templates")
	templates.AppendHeader(table.Row{"ID", "Runs", "Success", "Errors", "Tested"})
	for _, t := range m.PromptTemplates {
		id := t.ID
		if len(id) > shortIDLength {
			id = id[:shortIDLength]
		}
		templates.AppendRow(table.Row{id, count(t.Runs), count(t.Success), count(t.Errors), t.Tested})
	}
	return []string{
		summary("Prompt coverage",
			table.Row{"Coverage", percent(m.PromptCoverage)},
			table.Row{"Success rate", percent(m.TestSuccessRate)},
			table.Row{"Prompts tracked", count(m.PromptsTracked)},
			table.Row{"Prompts tested", count(m.PromptsTested)},
			table.Row{"Total runs", count(m.TotalRuns)},
			table.Row{"Successful runs", count(m.SuccessfulRuns)},
			table.Row{"Error runs", count(m.ErrorRuns)},
			table.Row{"Regression failures", count(m.RegressionFailures)},
		),
		templates.Render(),
	}
}

func testTables(m domain.TestResults) []string {
	failures := newTable("Failures by test case")
	failures.AppendHeader(table.Row{"Test case", "Failures"})
	for _, f := range m.FailuresByTestCase {
		failures.AppendRow(table.Row{f.TestCase, count(f.Count)})
	}
	return []string{
		summary("Test results",
			table.Row{"Total", count(m.TotalTests)},
			table.Row{"Passed", count(m.Passed)},
			table.Row{"Failed", count(m.Failed)},
			table.Row{"Error", count(m.Error)},
			table.Row{"Pass rate", percent(m.PassRate)},
			table.Row{"Average execution (s)", fmt.Sprintf("%.2f", m.AvgExecutionTime)},
		),
		failures.Render(),
	}
}
