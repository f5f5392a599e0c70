// Package config builds the application configuration from a config file,
// environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Keys understood by Load. Each key is also read from the environment
// variable of the same name in upper case (e.g. github_token -> GITHUB_TOKEN).
const (
	KeyAppName          = "app_name"
	KeyEnvironment      = "environment"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyLogDir           = "log_dir"
	KeyGitHubToken      = "github_token"
	KeyGitHubOrg        = "github_org"
	KeyGitHubRepos      = "github_repos"
	KeyGitHubAPIURL     = "github_api_url"
	KeyGitHubGraphQLURL = "github_graphql_url"
	KeyLangSmithAPIKey  = "langsmith_api_key"
	KeyLangSmithProject = "langsmith_project"
	KeyLangSmithURL     = "langsmith_endpoint"
	KeyLookbackDays     = "lookback_days"
	KeyListenAddr       = "listen_addr"
	KeyAPIPrefix        = "api_prefix"
	KeyFetchConcurrency = "fetch_concurrency"
)

// ErrMissingSetting is wrapped by every validation error about a required setting.
var ErrMissingSetting = errors.New("missing required setting")

// Config holds the application configuration. It is built once at startup
// and passed to the components that need it.
type Config struct {
	AppName     string
	Environment string
	LogLevel    string
	LogFormat   string
	// LogDir enables a daily log file in this directory when set.
	LogDir      string

	GitHubToken      string
	GitHubOrg        string
	GitHubRepos      []string
	GitHubAPIURL     string
	GitHubGraphQLURL string

	LangSmithAPIKey   string
	LangSmithProject  string
	LangSmithEndpoint string

	LookbackDays     int
	ListenAddr       string
	APIPrefix        string
	FetchConcurrency int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppName, "AI Velocity Dashboard")
	v.SetDefault(KeyEnvironment, "development")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "")
	v.SetDefault(KeyLogDir, "")
	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyGitHubOrg, "")
	v.SetDefault(KeyGitHubRepos, "")
	v.SetDefault(KeyGitHubAPIURL, "")
	v.SetDefault(KeyGitHubGraphQLURL, "")
	v.SetDefault(KeyLangSmithAPIKey, "")
	v.SetDefault(KeyLangSmithProject, "")
	v.SetDefault(KeyLangSmithURL, "https://api.smith.langchain.com/api/v1")
	v.SetDefault(KeyLookbackDays, 30)
	v.SetDefault(KeyListenAddr, "127.0.0.1:8080")
	v.SetDefault(KeyAPIPrefix, "/api/v1")
	v.SetDefault(KeyFetchConcurrency, 4)
}

// NewViper returns a viper instance with defaults and environment binding set up.
// If configFile is empty, a ".env" file in the working directory is read when present.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return v, nil
		}
		configFile = ".env"
	}

	v.SetConfigFile(configFile)
	if filepath.Base(configFile) == ".env" {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return v, nil
}

// Load builds a Config from v. It does not validate credentials; callers
// check the settings they need with ValidateGitHub and ValidateLangSmith.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppName:           v.GetString(KeyAppName),
		Environment:       strings.ToLower(v.GetString(KeyEnvironment)),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
		LogDir:            v.GetString(KeyLogDir),
		GitHubToken:       v.GetString(KeyGitHubToken),
		GitHubOrg:         v.GetString(KeyGitHubOrg),
		GitHubRepos:       SplitList(v.GetString(KeyGitHubRepos)),
		GitHubAPIURL:      v.GetString(KeyGitHubAPIURL),
		GitHubGraphQLURL:  v.GetString(KeyGitHubGraphQLURL),
		LangSmithAPIKey:   v.GetString(KeyLangSmithAPIKey),
		LangSmithProject:  v.GetString(KeyLangSmithProject),
		LangSmithEndpoint: strings.TrimRight(v.GetString(KeyLangSmithURL), "/"),
		LookbackDays:      v.GetInt(KeyLookbackDays),
		ListenAddr:        v.GetString(KeyListenAddr),
		APIPrefix:         "/" + strings.Trim(v.GetString(KeyAPIPrefix), "/"),
		FetchConcurrency:  v.GetInt(KeyFetchConcurrency),
	}

	if cfg.LookbackDays < 1 {
		return Config{}, fmt.Errorf("%s must be a positive number of days, got %d", KeyLookbackDays, cfg.LookbackDays)
	}
	if cfg.FetchConcurrency < 1 {
		return Config{}, fmt.Errorf("%s must be at least 1, got %d", KeyFetchConcurrency, cfg.FetchConcurrency)
	}
	return cfg, nil
}

// ValidateGitHub returns a configuration error if the GitHub credentials are incomplete.
func (c Config) ValidateGitHub() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("%w: GitHub token is required, set GITHUB_TOKEN", ErrMissingSetting)
	}
	if c.GitHubOrg == "" {
		return fmt.Errorf("%w: GitHub organization is required, set GITHUB_ORG or --org", ErrMissingSetting)
	}
	return nil
}

// ValidateLangSmith returns a configuration error if the LangSmith settings are incomplete.
func (c Config) ValidateLangSmith() error {
	if c.LangSmithAPIKey == "" {
		return fmt.Errorf("%w: LangSmith API key is required, set LANGSMITH_API_KEY", ErrMissingSetting)
	}
	if c.LangSmithProject == "" {
		return fmt.Errorf("%w: LangSmith project is required, set LANGSMITH_PROJECT or --project", ErrMissingSetting)
	}
	return nil
}

// HasLangSmith reports whether LangSmith credentials are configured.
func (c Config) HasLangSmith() bool {
	return c.ValidateLangSmith() == nil
}

func (c Config) IsProduction() bool  { return c.Environment == "production" }
func (c Config) IsDevelopment() bool { return c.Environment == "development" }

// EffectiveLogFormat returns the configured log format, falling back to json
// in production and text elsewhere.
func (c Config) EffectiveLogFormat() string {
	switch {
	case c.LogFormat != "":
		return c.LogFormat
	case c.IsProduction():
		return "json"
	default:
		return "text"
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
