// Package dashboard renders the aggregated metrics as a single HTML page of
// go-echarts charts.
package dashboard

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/naka-gawa/velocity-dashboard/internal/domain"
)

const (
	chartWidth  = "100%"
	chartHeight = "420px"
	topAuthors  = 15

	colorGood   = "#2ecc71"
	colorBad    = "#e74c3c"
	colorMain   = "#4C78A8"
	colorAccent = "#F58518"
)

// Data is everything the page can show. Coverage and Tests are nil when the
// run source is unavailable; their charts are then omitted.
type Data struct {
	Title    string
	Days     int
	Velocity domain.VelocityMetrics
	Coverage *domain.CoverageMetrics
	Tests    *domain.TestResults
}

// Render writes the dashboard page to w.
func Render(w io.Writer, data Data) error {
	page := components.NewPage()
	page.PageTitle = data.Title
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		velocityChart(data),
		commitsByAuthorChart(data.Velocity),
	)
	if data.Coverage != nil {
		page.AddCharts(coverageChart(*data.Coverage))
	}
	if data.Tests != nil {
		page.AddCharts(
			testOutcomeChart(*data.Tests),
			failuresChart(*data.Tests),
		)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

// VelocityCards returns the headline figures shown above the activity chart.
func VelocityCards(v domain.VelocityMetrics) string {
	return fmt.Sprintf("PR cycle time %.1f days | %.1f commits/day | %d active contributors | %d merged, %d open PRs",
		v.PRCycleTimeDays, v.DailyCommits, v.ActiveContributors, v.PRsMerged, v.PRsOpen)
}

func initOpts() charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight})
}

func title(text, subtitle string) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{Title: text, Subtitle: subtitle, Left: "center"})
}

func tooltip(trigger string) charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: trigger})
}

func velocityChart(data Data) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(),
		title(fmt.Sprintf("Activity over time (last %d days)", data.Days), VelocityCards(data.Velocity)),
		tooltip("axis"),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
	)

	days := activityByDay(data.Velocity)
	dates := make([]string, len(days))
	commits := make([]opts.LineData, len(days))
	created := make([]opts.LineData, len(days))
	merged := make([]opts.LineData, len(days))
	for i, d := range days {
		dates[i] = d.date
		commits[i] = opts.LineData{Value: d.commits}
		created[i] = opts.LineData{Value: d.created}
		merged[i] = opts.LineData{Value: d.merged}
	}
	smooth := charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})
	line.SetXAxis(dates).
		AddSeries("Commits", commits, smooth, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorMain})).
		AddSeries("PRs created", created, smooth, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAccent})).
		AddSeries("PRs merged", merged, smooth, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorGood}))
	return line
}

type dayActivity struct {
	date    string
	commits int
	created int
	merged  int
}

// activityByDay joins the commit and pull request series on date, ascending.
// A date missing from one series counts zero there.
func activityByDay(v domain.VelocityMetrics) []dayActivity {
	byDate := map[string]*dayActivity{}
	entry := func(date string) *dayActivity {
		d, ok := byDate[date]
		if !ok {
			d = &dayActivity{date: date}
			byDate[date] = d
		}
		return d
	}
	for _, c := range v.DailyCommitsData {
		entry(c.Date).commits += c.Count
	}
	for _, p := range v.DailyPRsData {
		d := entry(p.Date)
		d.created += p.Created
		d.merged += p.Merged
	}

	days := make([]dayActivity, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}

type authorCount struct {
	author string
	count  int
}

// rankAuthors sorts by count descending then name, keeping the top limit entries.
func rankAuthors(byAuthor map[string]int, limit int) []authorCount {
	ranked := make([]authorCount, 0, len(byAuthor))
	for author, count := range byAuthor {
		ranked = append(ranked, authorCount{author: author, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].author < ranked[j].author
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func commitsByAuthorChart(v domain.VelocityMetrics) *charts.Bar {
	ranked := rankAuthors(v.CommitsByAuthor, topAuthors)
	labels := make([]string, len(ranked))
	commits := make([]opts.BarData, len(ranked))
	prs := make([]opts.BarData, len(ranked))
	for i, r := range ranked {
		labels[i] = r.author
		commits[i] = opts.BarData{Value: r.count}
		prs[i] = opts.BarData{Value: v.PRsByAuthor[r.author]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(),
		title("Contributions by author", fmt.Sprintf("%d commits in total", v.TotalCommits)),
		tooltip("axis"),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"}}),
	)
	bar.SetXAxis(labels).
		AddSeries("Commits", commits, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorMain})).
		AddSeries("Pull requests", prs)
	return bar
}

func coverageChart(c domain.CoverageMetrics) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts(),
		title("Prompt test coverage",
			fmt.Sprintf("%.2f%% of %d prompts tested | %d regression failures", c.PromptCoverage, c.PromptsTracked, c.RegressionFailures)),
		tooltip("item"),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	pie.AddSeries("Prompts", []opts.PieData{
		{Name: "Tested", Value: c.PromptsTested, ItemStyle: &opts.ItemStyle{Color: colorGood}},
		{Name: "Untested", Value: c.PromptsTracked - c.PromptsTested, ItemStyle: &opts.ItemStyle{Color: colorBad}},
	}).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c} ({d}%)"}),
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}),
	)
	return pie
}

func testOutcomeChart(r domain.TestResults) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(),
		title("Test outcomes",
			fmt.Sprintf("%.2f%% pass rate | %.2fs average execution", r.PassRate, r.AvgExecutionTime)),
		tooltip("axis"),
	)
	bar.SetXAxis([]string{"Passed", "Failed", "Error"}).
		AddSeries("Tests", []opts.BarData{
			{Value: r.Passed, ItemStyle: &opts.ItemStyle{Color: colorGood}},
			{Value: r.Failed, ItemStyle: &opts.ItemStyle{Color: colorBad}},
			{Value: r.Error, ItemStyle: &opts.ItemStyle{Color: "#f39c12"}},
		})
	return bar
}

func failuresChart(r domain.TestResults) *charts.Bar {
	labels := make([]string, len(r.FailuresByTestCase))
	values := make([]opts.BarData, len(r.FailuresByTestCase))
	for i, f := range r.FailuresByTestCase {
		labels[i] = f.TestCase
		values[i] = opts.BarData{Value: f.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(),
		title("Failures by test case", fmt.Sprintf("%d of %d tests did not pass", r.Failed+r.Error, r.TotalTests)),
		tooltip("axis"),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"}}),
	)
	bar.SetXAxis(labels).
		AddSeries("Failures", values, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBad}))
	return bar
}
