package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var velocityCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Prints the team velocity summary",
	Long: `Aggregates pull requests and commits of the organization over the
look-back window and prints PR cycle time, commits per day, active
contributors and the per-author tallies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs, err := newGitHubAggregators()
		if err != nil {
			return err
		}
		metrics, err := aggs.velocity.Summarize(cmd.Context(), cfg.LookbackDays, cfg.GitHubRepos)
		if err != nil {
			return fmt.Errorf("failed to aggregate velocity: %w", err)
		}
		return writeResult(cmd, metrics)
	},
}

var prsCmd = &cobra.Command{
	Use:   "prs",
	Short: "Prints pull request metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs, err := newGitHubAggregators()
		if err != nil {
			return err
		}
		metrics, err := aggs.prs.Aggregate(cmd.Context(), cfg.LookbackDays, cfg.GitHubRepos)
		if err != nil {
			return fmt.Errorf("failed to aggregate pull requests: %w", err)
		}
		return writeResult(cmd, metrics)
	},
}

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Prints commit metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs, err := newGitHubAggregators()
		if err != nil {
			return err
		}
		metrics, err := aggs.commits.Aggregate(cmd.Context(), cfg.LookbackDays, cfg.GitHubRepos)
		if err != nil {
			return fmt.Errorf("failed to aggregate commits: %w", err)
		}
		return writeResult(cmd, metrics)
	},
}

func init() {
	rootCmd.AddCommand(velocityCmd, prsCmd, commitsCmd)
}
