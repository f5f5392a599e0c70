package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/velocity-dashboard/internal/gateway"
	"github.com/naka-gawa/velocity-dashboard/internal/report"
	"github.com/naka-gawa/velocity-dashboard/internal/usecase"
)

const langSmithTimeout = time.Minute

type githubAggregators struct {
	prs      *usecase.PRAggregator
	commits  *usecase.CommitAggregator
	velocity *usecase.VelocitySummarizer
}

// newGitHubAggregators validates the GitHub settings and wires the aggregators
// to a GitHub gateway.
func newGitHubAggregators() (githubAggregators, error) {
	if err := cfg.ValidateGitHub(); err != nil {
		return githubAggregators{}, err
	}
	gw, err := gateway.NewGitHubGateway(cfg.GitHubToken, gateway.GitHubOptions{
		APIURL:     cfg.GitHubAPIURL,
		GraphQLURL: cfg.GitHubGraphQLURL,
	}, logger)
	if err != nil {
		return githubAggregators{}, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	concurrency := usecase.WithConcurrency(cfg.FetchConcurrency)
	prs := usecase.NewPRAggregator(gw, cfg.GitHubOrg, logger, concurrency)
	commits := usecase.NewCommitAggregator(gw, cfg.GitHubOrg, logger, concurrency)
	return githubAggregators{
		prs:      prs,
		commits:  commits,
		velocity: usecase.NewVelocitySummarizer(prs, commits, logger),
	}, nil
}

// newRunSource returns the LangSmith run source, or Unavailable with the
// reason when it is not configured.
func newRunSource() gateway.RunSource {
	if err := cfg.ValidateLangSmith(); err != nil {
		return gateway.Unavailable(err.Error())
	}
	gw, err := gateway.NewLangSmithGateway(cfg.LangSmithAPIKey, cfg.LangSmithEndpoint,
		&http.Client{Timeout: langSmithTimeout}, logger)
	if err != nil {
		return gateway.Unavailable(err.Error())
	}
	return gateway.Available(gw)
}

// writeResult prints v in the format chosen with --output.
func writeResult(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return report.Write(cmd.OutOrStdout(), format, v)
}
