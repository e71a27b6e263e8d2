package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
criteria:
  - id: go-berlin
    keywords: [golang]
notification:
  type: log
`

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, minimal)

	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, 70, cfg.Scoring.MinScore)
	assert.True(t, cfg.Scoring.Prefilter)
	assert.Equal(t, 24*time.Hour, cfg.Scoring.CacheTTL)
	assert.Equal(t, 85, cfg.Scoring.AlertThreshold)
	assert.Equal(t, time.Hour, cfg.Pipeline.FreshWindow)
	assert.True(t, cfg.Pipeline.SendAlerts)
	assert.Equal(t, 5*time.Minute, cfg.Scraper.LoginTimeout)
	assert.Equal(t, 2, cfg.Scraper.MaxRetries)
	assert.Equal(t, defaultOpenAIBaseURL, cfg.AI.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "agent.db"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(dir, "data", "agent.lock"), cfg.Lock.Path)
	assert.Equal(t, "console", cfg.Logging.Format)

	require.Len(t, cfg.Criteria, 1)
	assert.True(t, cfg.Criteria[0].Enabled, "criteria are enabled unless disabled")
	assert.Equal(t, "go-berlin", cfg.Criteria[0].DisplayName())
}

func TestLoad_FullConfigWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	path := writeConfig(t, `
criteria:
  - id: go-berlin
    label: Go in Berlin
    keywords: [golang, backend]
    location: Berlin
    remote: hybrid
    seniority: senior
    employment: full-time
  - id: rust
    keywords: [rust]
    enabled: false
filters:
  exclude_titles: [intern]
profile:
  path: cv.md
  version: v3
scoring:
  min_score: 60
  prefilter: false
  cache_ttl: 12h
pipeline:
  fresh_window: 3h
  send_alerts: false
ai:
  api_key: ${TEST_OPENAI_KEY}
  timeout: 10s
notification:
  type: telegram
  bot_token: ${TEST_BOT_TOKEN}
  chat_id: "42"
storage:
  driver: memory
  encryption_key: correct-horse-battery
schedule:
  cron: "*/30 * * * *"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	c, ok := cfg.FindCriteria("go-berlin")
	require.True(t, ok)
	assert.Equal(t, model.RemoteHybrid, c.Remote)
	assert.Equal(t, model.SenioritySenior, c.Seniority)
	assert.Equal(t, model.EmploymentFullTime, c.Employment)
	assert.Len(t, cfg.EnabledCriteria(), 1)

	assert.Equal(t, []string{"intern"}, cfg.ExcludeTitles)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "cv.md"), cfg.Profile.Path)
	assert.Equal(t, 60, cfg.Scoring.MinScore)
	assert.False(t, cfg.Scoring.Prefilter)
	assert.Equal(t, 12*time.Hour, cfg.Scoring.CacheTTL)
	assert.Equal(t, 3*time.Hour, cfg.Pipeline.FreshWindow)
	assert.False(t, cfg.Pipeline.SendAlerts)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.NoError(t, cfg.RequireAI())
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "123:abc", cfg.Notification.BotToken)
	assert.Equal(t, "*/30 * * * *", cfg.Schedule.Cron)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, minimal+"ai:\n  api_key: ${DOTENV_TEST_KEY}\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("DOTENV_TEST_KEY=from-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("DOTENV_TEST_KEY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.AI.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Equal(t, model.KindConfigMissing, model.KindOf(err))
	assert.Equal(t, model.StageConfig, model.StageOf(err))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    model.Kind
	}{
		{"broken yaml", "criteria: [broken", model.KindConfigInvalid},
		{"no criteria", "notification:\n  type: log\n", model.KindConfigInvalid},
		{"all disabled", "criteria:\n  - id: a\n    keywords: [x]\n    enabled: false\nnotification:\n  type: log\n", model.KindConfigInvalid},
		{"missing keywords", "criteria:\n  - id: a\nnotification:\n  type: log\n", model.KindConfigInvalid},
		{"duplicate id", "criteria:\n  - id: a\n    keywords: [x]\n  - id: a\n    keywords: [y]\nnotification:\n  type: log\n", model.KindConfigInvalid},
		{"bad remote", "criteria:\n  - id: a\n    keywords: [x]\n    remote: sometimes\nnotification:\n  type: log\n", model.KindConfigInvalid},
		{"bad duration", minimal + "pipeline:\n  fresh_window: soon\n", model.KindConfigInvalid},
		{"min score range", minimal + "scoring:\n  min_score: 120\n", model.KindConfigInvalid},
		{"telegram without token", "criteria:\n  - id: a\n    keywords: [x]\n", model.KindConfigMissing},
		{"slack bad url", "criteria:\n  - id: a\n    keywords: [x]\nnotification:\n  type: slack\n  webhook_url: https://example.com/hook\n", model.KindConfigInvalid},
		{"redis without url", minimal + "storage:\n  driver: redis\n", model.KindConfigMissing},
		{"short encryption key", minimal + "storage:\n  encryption_key: short\n", model.KindConfigInvalid},
		{"unknown notifier", "criteria:\n  - id: a\n    keywords: [x]\nnotification:\n  type: email\n", model.KindConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.want, model.KindOf(err), "error: %v", err)
		})
	}
}

func TestRequireAI(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, model.KindConfigMissing, model.KindOf(cfg.RequireAI()))
}

func TestLoadProfile(t *testing.T) {
	path := writeConfig(t, minimal+"profile:\n  path: cv.md\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	_, _, err = cfg.LoadProfile()
	assert.Equal(t, model.KindConfigMissing, model.KindOf(err), "profile file absent")

	require.NoError(t, os.WriteFile(cfg.Profile.Path, []byte("  Go engineer, 8 years  \n"), 0644))
	text, v1, err := cfg.LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "Go engineer, 8 years", text)
	assert.Len(t, v1, 12)

	require.NoError(t, os.WriteFile(cfg.Profile.Path, []byte("Rust engineer"), 0644))
	_, v2, err := cfg.LoadProfile()
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2, "editing the profile changes its version")

	cfg.Profile.Version = "pinned"
	_, v3, err := cfg.LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "pinned", v3)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "config.yaml", ResolvePath(""))

	t.Setenv(EnvConfigPath, "/etc/agent.yaml")
	assert.Equal(t, "/etc/agent.yaml", ResolvePath(""))
	assert.Equal(t, "flag.yaml", ResolvePath("flag.yaml"))
}
