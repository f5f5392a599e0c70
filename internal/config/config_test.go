package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, "AI Velocity Dashboard", cfg.AppName)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "https://api.smith.langchain.com/api/v1", cfg.LangSmithEndpoint)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.HasLangSmith())
	assert.Empty(t, cfg.GitHubRepos)
	assert.Empty(t, cfg.LogDir)
}

func TestLoad_Overrides(t *testing.T) {
	v := newTestViper()
	v.Set(KeyGitHubRepos, " api , web,,")
	v.Set(KeyAPIPrefix, "api/v2/")
	v.Set(KeyEnvironment, "Production")
	v.Set(KeyLogDir, "logs")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "web"}, cfg.GitHubRepos)
	assert.Equal(t, "/api/v2", cfg.APIPrefix)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "logs", cfg.LogDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  int
	}{
		{name: "zero lookback days", key: KeyLookbackDays, val: 0},
		{name: "negative lookback days", key: KeyLookbackDays, val: -3},
		{name: "zero concurrency", key: KeyFetchConcurrency, val: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestViper()
			v.Set(tc.key, tc.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         Config
		githubErr   bool
		langsmithOK bool
	}{
		{name: "nothing configured", cfg: Config{}, githubErr: true},
		{name: "token without org", cfg: Config{GitHubToken: "t"}, githubErr: true},
		{name: "github complete", cfg: Config{GitHubToken: "t", GitHubOrg: "o"}},
		{
			name:        "langsmith complete",
			cfg:         Config{GitHubToken: "t", GitHubOrg: "o", LangSmithAPIKey: "k", LangSmithProject: "p"},
			langsmithOK: true,
		},
		{name: "langsmith key without project", cfg: Config{LangSmithAPIKey: "k"}, githubErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.ValidateGitHub()
			if tc.githubErr {
				assert.ErrorIs(t, err, ErrMissingSetting)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.langsmithOK, tc.cfg.HasLangSmith())
		})
	}
}

func TestConfig_EffectiveLogFormat(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{name: "development default", cfg: Config{Environment: "development"}, expected: "text"},
		{name: "production default", cfg: Config{Environment: "production"}, expected: "json"},
		{name: "explicit format wins", cfg: Config{Environment: "production", LogFormat: "text"}, expected: "text"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.cfg.EffectiveLogFormat())
		})
	}
}

func TestNewViper_EnvironmentAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GITHUB_ORG=file-org\nLOOKBACK_DAYS=14\n"), 0o600))
	t.Setenv("GITHUB_TOKEN", "env-token")

	v, err := NewViper(envFile)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.GitHubToken)
	assert.Equal(t, "file-org", cfg.GitHubOrg)
	assert.Equal(t, 14, cfg.LookbackDays)
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
