package cmd

import (
	"github.com/spf13/cobra"

	"github.com/naka-gawa/velocity-dashboard/internal/usecase"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Prints prompt test coverage from LangSmith",
	Long: `Groups the LLM runs of the LangSmith project by prompt template and
reports how many templates have at least one test-tagged run. When LangSmith
cannot be reached, placeholder metrics are printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		aggregator, err := usecase.NewCoverageAggregator(newRunSource(), cfg.LangSmithProject, logger)
		if err != nil {
			return err
		}
		metrics, err := aggregator.Aggregate(cmd.Context(), cfg.LookbackDays, "")
		if err != nil {
			return err
		}
		return writeResult(cmd, metrics)
	},
}

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Prints prompt test results from LangSmith",
	Long: `Classifies the test-tagged runs of the LangSmith project as passed, failed
or error and reports pass rate, execution times and the failing test cases.
When LangSmith cannot be reached, placeholder metrics are printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		aggregator, err := usecase.NewTestResultAggregator(newRunSource(), cfg.LangSmithProject, logger)
		if err != nil {
			return err
		}
		results, err := aggregator.Aggregate(cmd.Context(), cfg.LookbackDays, "")
		if err != nil {
			return err
		}
		return writeResult(cmd, results)
	},
}

func init() {
	rootCmd.AddCommand(coverageCmd, testsCmd)
}
