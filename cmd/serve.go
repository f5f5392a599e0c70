package cmd

import (
	"github.com/spf13/cobra"

	"github.com/naka-gawa/velocity-dashboard/internal/server"
	"github.com/naka-gawa/velocity-dashboard/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the dashboard and a JSON API over HTTP",
	Long: `Starts an HTTP server with the HTML dashboard at /, the metrics as JSON
under the API prefix (/api/v1/velocity, /prs, /commits, /coverage, /tests;
each accepts ?days=N), a health check at /healthz and Prometheus metrics at
/metrics. Every request recomputes the metrics from the upstream APIs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs, err := newGitHubAggregators()
		if err != nil {
			return err
		}
		sources := server.Sources{PRs: aggs.prs, Commits: aggs.commits, Velocity: aggs.velocity}

		runSource := newRunSource()
		if _, ok := runSource.Fetcher(); ok {
			coverage, err := usecase.NewCoverageAggregator(runSource, cfg.LangSmithProject, logger)
			if err != nil {
				return err
			}
			tests, err := usecase.NewTestResultAggregator(runSource, cfg.LangSmithProject, logger)
			if err != nil {
				return err
			}
			sources.Coverage = coverage
			sources.Tests = tests
		} else {
			logger.Warn("LangSmith is not configured, prompt endpoints will return 503", "reason", runSource.Reason())
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ListenAddr
		}
		srv := server.New(sources, server.Options{
			Title:     cfg.AppName,
			APIPrefix: cfg.APIPrefix,
			Days:      cfg.LookbackDays,
			Repos:     cfg.GitHubRepos,
			Project:   cfg.LangSmithProject,
		}, logger)
		return srv.Run(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from LISTEN_ADDR, 127.0.0.1:8080)")
}
