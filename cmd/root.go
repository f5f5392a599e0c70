// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/velocity-dashboard/internal/config"
	"github.com/naka-gawa/velocity-dashboard/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  = logging.Discard()
	logFile *os.File
)

// flagBindings maps configuration keys to the persistent flags that override them.
var flagBindings = map[string]string{
	config.KeyGitHubOrg:        "org",
	config.KeyLangSmithProject: "project",
	config.KeyLookbackDays:     "days",
	config.KeyLogLevel:         "log-level",
	config.KeyLogFormat:        "log-format",
	config.KeyLogDir:           "log-dir",
}

var rootCmd = &cobra.Command{
	Use:   "velocity-dashboard",
	Short: "Engineering velocity and AI prompt-testing metrics from GitHub and LangSmith.",
	Long: `velocity-dashboard aggregates pull request and commit activity of a GitHub
organization together with prompt coverage and test results recorded in
LangSmith. Metrics are printed as JSON, rendered as an HTML dashboard,
or served over HTTP.

Settings are read from the environment (GITHUB_TOKEN, GITHUB_ORG,
LANGSMITH_API_KEY, LANGSMITH_PROJECT, ...), from an optional .env file,
and from flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		if err := bindFlags(cmd, v); err != nil {
			return err
		}
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		if repos, _ := cmd.Flags().GetStringSlice("repo"); len(repos) > 0 {
			cfg.GitHubRepos = repos
		}

		var w io.Writer = os.Stderr
		if cfg.LogDir != "" {
			logFile, err = logging.OpenDailyFile(cfg.LogDir, time.Now())
			if err != nil {
				return err
			}
			w = io.MultiWriter(os.Stderr, logFile)
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err = logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.EffectiveLogFormat(), Verbose: verbose, Writer: w})
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			"app", cfg.AppName,
			"environment", cfg.Environment,
			"org", cfg.GitHubOrg,
			"repositories", cfg.GitHubRepos,
			"days", cfg.LookbackDays,
			"langsmith", cfg.HasLangSmith(),
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogFile()
	},
}

func closeLogFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for key, name := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = closeLogFile()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: .env in the working directory, if present)")
	pf.BoolP("verbose", "v", false, "Enable verbose/debug logging")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-dir", "", "Also write logs to a daily YYYYMMDD.log file in this directory (env LOG_DIR)")
	pf.String("log-format", "", "Log format: text or json (default: json in production, text otherwise)")
	pf.StringP("org", "o", "", "Target GitHub organization (env GITHUB_ORG)")
	pf.String("project", "", "LangSmith project name (env LANGSMITH_PROJECT)")
	pf.IntP("days", "d", 30, "Look-back window in days (env LOOKBACK_DAYS)")
	pf.StringP("output", "O", "json", "Output format: json or table")
	pf.StringSliceP("repo", "r", nil, "Repository to include; repeatable (default: every repository of the organization)")
}
