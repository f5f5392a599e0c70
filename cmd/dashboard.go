package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/velocity-dashboard/internal/dashboard"
	"github.com/naka-gawa/velocity-dashboard/internal/usecase"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Renders the metrics as an HTML dashboard",
	Long: `Aggregates every metric and renders a self-contained HTML page of charts.
Prompt coverage and test result charts are included only when LangSmith is
configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := collectDashboardData(cmd.Context())
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if err := writeDashboard(cmd.OutOrStdout(), out, data); err != nil {
			return err
		}
		logger.Info("dashboard rendered", "out", out)
		return nil
	},
}

// writeDashboard renders data to path, or to stdout when path is empty or "-".
func writeDashboard(stdout io.Writer, path string, data dashboard.Data) (err error) {
	if path == "" || path == "-" {
		return dashboard.Render(stdout, data)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return dashboard.Render(f, data)
}

func collectDashboardData(ctx context.Context) (dashboard.Data, error) {
	aggs, err := newGitHubAggregators()
	if err != nil {
		return dashboard.Data{}, err
	}
	velocity, err := aggs.velocity.Summarize(ctx, cfg.LookbackDays, cfg.GitHubRepos)
	if err != nil {
		return dashboard.Data{}, fmt.Errorf("failed to aggregate velocity: %w", err)
	}
	data := dashboard.Data{Title: cfg.AppName, Days: cfg.LookbackDays, Velocity: velocity}

	source := newRunSource()
	if _, ok := source.Fetcher(); !ok {
		logger.Info("LangSmith is not configured, omitting prompt metrics", "reason", source.Reason())
		return data, nil
	}

	coverageAgg, err := usecase.NewCoverageAggregator(source, cfg.LangSmithProject, logger)
	if err != nil {
		return dashboard.Data{}, err
	}
	coverage, err := coverageAgg.Aggregate(ctx, cfg.LookbackDays, "")
	if err != nil {
		return dashboard.Data{}, err
	}
	data.Coverage = &coverage

	testAgg, err := usecase.NewTestResultAggregator(source, cfg.LangSmithProject, logger)
	if err != nil {
		return dashboard.Data{}, err
	}
	tests, err := testAgg.Aggregate(ctx, cfg.LookbackDays, "")
	if err != nil {
		return dashboard.Data{}, err
	}
	data.Tests = &tests
	return data, nil
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().String("out", "-", "Output HTML file, - for stdout")
}
