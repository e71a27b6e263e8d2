// Package config loads the agent's YAML configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "JOBAGENT_CONFIG"

const (
	defaultConfigPath    = "config.yaml"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-mini"
	defaultDataDir       = "data"
)

// Config is the root configuration for the job agent.
type Config struct {
	// Dir is the directory of the config file; relative paths resolve against it.
	Dir           string
	Criteria      []model.JobCriteria
	ExcludeTitles []string
	Profile       ProfileConfig
	Scoring       ScoringConfig
	Pipeline      PipelineConfig
	AI            AIConfig
	Scraper       ScraperConfig
	Notification  NotificationConfig
	Storage       StorageConfig
	Lock          LockConfig
	Schedule      ScheduleConfig
	Logging       LoggingConfig
}

// ProfileConfig points at the candidate profile used for scoring.
type ProfileConfig struct {
	Path    string
	Version string // derived from the file contents when empty
}

// ScoringConfig controls the scoring stage.
type ScoringConfig struct {
	MinScore       int
	Prefilter      bool
	CacheTTL       time.Duration
	AlertThreshold int
}

// PipelineConfig controls a full run.
type PipelineConfig struct {
	FreshWindow time.Duration // postings older than this are ignored
	SendAlerts  bool
}

// AIConfig configures the OpenAI-compatible model.
type AIConfig struct {
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration // per-request timeout
	MinDelay time.Duration // minimum gap between model calls
}

// ScraperConfig configures the networking-site adapter.
type ScraperConfig struct {
	BaseURL      string
	UserAgent    string
	SessionTTL   time.Duration
	LoginTimeout time.Duration
	MinDelay     time.Duration
	MaxRetries   int
	MaxPages     int
	Timeout      time.Duration
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string // "telegram", "slack" or "log"
	BotToken   string
	ChatID     string
	WebhookURL string
	MinDelay   time.Duration
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver        string // "sqlite", "redis" or "memory"
	Path          string
	RedisURL      string
	EncryptionKey string
}

// LockConfig locates the singleton lock file.
type LockConfig struct {
	Path string
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron string
}

// LoggingConfig selects level and handler.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Criteria     []rawCriteria     `yaml:"criteria"`
	Filters      rawFilterConfig   `yaml:"filters"`
	Profile      rawProfileConfig  `yaml:"profile"`
	Scoring      rawScoringConfig  `yaml:"scoring"`
	Pipeline     rawPipelineConfig `yaml:"pipeline"`
	AI           rawAIConfig       `yaml:"ai"`
	Scraper      rawScraperConfig  `yaml:"scraper"`
	Notification rawNotification   `yaml:"notification"`
	Storage      rawStorageConfig  `yaml:"storage"`
	Lock         LockConfig        `yaml:"lock"`
	Schedule     rawScheduleConfig `yaml:"schedule"`
	Logging      rawLoggingConfig  `yaml:"logging"`
}

type rawCriteria struct {
	ID         string   `yaml:"id"`
	Label      string   `yaml:"label"`
	Keywords   []string `yaml:"keywords"`
	Location   string   `yaml:"location"`
	Remote     string   `yaml:"remote"`
	Seniority  string   `yaml:"seniority"`
	Employment string   `yaml:"employment"`
	Enabled    *bool    `yaml:"enabled"`
}

type rawFilterConfig struct {
	ExcludeTitles []string `yaml:"exclude_titles"`
}

type rawProfileConfig struct {
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
}

type rawScoringConfig struct {
	MinScore       *int   `yaml:"min_score"`
	Prefilter      *bool  `yaml:"prefilter"`
	CacheTTL       string `yaml:"cache_ttl"`
	AlertThreshold *int   `yaml:"alert_threshold"`
}

type rawPipelineConfig struct {
	FreshWindow string `yaml:"fresh_window"`
	SendAlerts  *bool  `yaml:"send_alerts"`
}

type rawAIConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
	MinDelay string `yaml:"min_delay"`
}

type rawScraperConfig struct {
	BaseURL      string `yaml:"base_url"`
	UserAgent    string `yaml:"user_agent"`
	SessionTTL   string `yaml:"session_ttl"`
	LoginTimeout string `yaml:"login_timeout"`
	MinDelay     string `yaml:"min_delay"`
	MaxRetries   *int   `yaml:"max_retries"`
	MaxPages     int    `yaml:"max_pages"`
	Timeout      string `yaml:"timeout"`
}

type rawNotification struct {
	Type       string `yaml:"type"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	WebhookURL string `yaml:"webhook_url"`
	MinDelay   string `yaml:"min_delay"`
}

type rawStorageConfig struct {
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	RedisURL      string `yaml:"redis_url"`
	EncryptionKey string `yaml:"encryption_key"`
}

type rawScheduleConfig struct {
	Cron string `yaml:"cron"`
}

type rawLoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ResolvePath picks the config file: the flag value, then $JOBAGENT_CONFIG, then ./config.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return defaultConfigPath
}

// Load reads the .env file next to the config (if any), expands environment
// variables in the YAML at path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewError(model.StageConfig, model.KindConfigInvalid, "load .env", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewError(model.StageConfig, model.KindConfigMissing, "config file not found: "+path, err)
		}
		return nil, model.NewError(model.StageConfig, model.KindConfigInvalid, "read config", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, invalid("parse config: %v", err)
	}

	cfg, err := build(raw, dir)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(raw rawConfig, dir string) (*Config, error) {
	var err error
	cfg := &Config{
		Dir:           dir,
		ExcludeTitles: raw.Filters.ExcludeTitles,
		Profile:       ProfileConfig{Path: raw.Profile.Path, Version: raw.Profile.Version},
		Scoring: ScoringConfig{
			MinScore:       intOr(raw.Scoring.MinScore, 70),
			Prefilter:      boolOr(raw.Scoring.Prefilter, true),
			AlertThreshold: intOr(raw.Scoring.AlertThreshold, 85),
		},
		Pipeline: PipelineConfig{SendAlerts: boolOr(raw.Pipeline.SendAlerts, true)},
		AI: AIConfig{
			BaseURL: strOr(raw.AI.BaseURL, defaultOpenAIBaseURL),
			Model:   strOr(raw.AI.Model, defaultModel),
			APIKey:  raw.AI.APIKey,
		},
		Scraper: ScraperConfig{
			BaseURL:    raw.Scraper.BaseURL,
			UserAgent:  raw.Scraper.UserAgent,
			MaxRetries: intOr(raw.Scraper.MaxRetries, 2),
			MaxPages:   raw.Scraper.MaxPages,
		},
		Notification: NotificationConfig{
			Type:       strOr(strings.ToLower(raw.Notification.Type), "telegram"),
			BotToken:   raw.Notification.BotToken,
			ChatID:     raw.Notification.ChatID,
			WebhookURL: raw.Notification.WebhookURL,
		},
		Storage: StorageConfig{
			Driver:        strOr(strings.ToLower(raw.Storage.Driver), "sqlite"),
			Path:          resolve(dir, strOr(raw.Storage.Path, filepath.Join(defaultDataDir, "agent.db"))),
			RedisURL:      raw.Storage.RedisURL,
			EncryptionKey: raw.Storage.EncryptionKey,
		},
		Lock:     LockConfig{Path: resolve(dir, strOr(raw.Lock.Path, filepath.Join(defaultDataDir, "agent.lock")))},
		Schedule: ScheduleConfig{Cron: strOr(raw.Schedule.Cron, "0 */2 * * *")},
		Logging: LoggingConfig{
			Level:  strOr(strings.ToLower(raw.Logging.Level), "info"),
			Format: strOr(strings.ToLower(raw.Logging.Format), "console"),
		},
	}
	if cfg.Profile.Path != "" {
		cfg.Profile.Path = resolve(dir, cfg.Profile.Path)
	}

	durations := []struct {
		field string
		raw   string
		def   time.Duration
		dst   *time.Duration
	}{
		{"scoring.cache_ttl", raw.Scoring.CacheTTL, 24 * time.Hour, &cfg.Scoring.CacheTTL},
		{"pipeline.fresh_window", raw.Pipeline.FreshWindow, time.Hour, &cfg.Pipeline.FreshWindow},
		{"ai.timeout", raw.AI.Timeout, 60 * time.Second, &cfg.AI.Timeout},
		{"ai.min_delay", raw.AI.MinDelay, time.Second, &cfg.AI.MinDelay},
		{"scraper.session_ttl", raw.Scraper.SessionTTL, 7 * 24 * time.Hour, &cfg.Scraper.SessionTTL},
		{"scraper.login_timeout", raw.Scraper.LoginTimeout, 5 * time.Minute, &cfg.Scraper.LoginTimeout},
		{"scraper.min_delay", raw.Scraper.MinDelay, 2 * time.Second, &cfg.Scraper.MinDelay},
		{"scraper.timeout", raw.Scraper.Timeout, 30 * time.Second, &cfg.Scraper.Timeout},
		{"notification.min_delay", raw.Notification.MinDelay, time.Second, &cfg.Notification.MinDelay},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.field, d.raw, d.def); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	for i, rc := range raw.Criteria {
		c, err := buildCriteria(i, rc)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, invalid("criteria[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		cfg.Criteria = append(cfg.Criteria, c)
	}
	return cfg, nil
}

func buildCriteria(i int, rc rawCriteria) (model.JobCriteria, error) {
	c := model.JobCriteria{
		ID:       strings.TrimSpace(rc.ID),
		Label:    strings.TrimSpace(rc.Label),
		Keywords: rc.Keywords,
		Location: strings.TrimSpace(rc.Location),
		Enabled:  boolOr(rc.Enabled, true),
	}
	if c.ID == "" {
		return c, invalid("criteria[%d]: id is required", i)
	}
	if len(c.Keywords) == 0 {
		return c, invalid("criteria %q: at least one keyword is required", c.ID)
	}
	if rc.Remote != "" {
		if c.Remote = model.ParseRemotePolicy(rc.Remote); c.Remote == model.RemoteUnknown {
			return c, invalid("criteria %q: unknown remote policy %q", c.ID, rc.Remote)
		}
	}
	if rc.Seniority != "" {
		if c.Seniority = model.ParseSeniority(rc.Seniority); c.Seniority == model.SeniorityUnknown {
			return c, invalid("criteria %q: unknown seniority %q", c.ID, rc.Seniority)
		}
	}
	if rc.Employment != "" {
		if c.Employment = model.ParseEmploymentType(rc.Employment); c.Employment == model.EmploymentUnknown {
			return c, invalid("criteria %q: unknown employment type %q", c.ID, rc.Employment)
		}
	}
	return c, nil
}

func validate(cfg *Config) error {
	enabled := 0
	for _, c := range cfg.Criteria {
		if c.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return invalid("at least one criteria must be enabled")
	}

	if cfg.Scoring.MinScore < 0 || cfg.Scoring.MinScore > 100 {
		return invalid("scoring.min_score must be between 0 and 100, got %d", cfg.Scoring.MinScore)
	}
	if cfg.Scoring.AlertThreshold < 0 || cfg.Scoring.AlertThreshold > 100 {
		return invalid("scoring.alert_threshold must be between 0 and 100, got %d", cfg.Scoring.AlertThreshold)
	}
	if cfg.Pipeline.FreshWindow <= 0 {
		return invalid("pipeline.fresh_window must be positive, got %v", cfg.Pipeline.FreshWindow)
	}
	if cfg.Scraper.MaxRetries < 0 {
		return invalid("scraper.max_retries must not be negative")
	}

	switch cfg.Notification.Type {
	case "telegram":
		if cfg.Notification.BotToken == "" || cfg.Notification.ChatID == "" {
			return missing("notification.bot_token and notification.chat_id are required when type is \"telegram\"")
		}
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return missing("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return invalid("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case "log":
	default:
		return invalid("notification.type must be telegram, slack or log, got %q", cfg.Notification.Type)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "redis":
		if cfg.Storage.RedisURL == "" {
			return missing("storage.redis_url is required when driver is \"redis\"")
		}
	default:
		return invalid("storage.driver must be sqlite, redis or memory, got %q", cfg.Storage.Driver)
	}
	if k := cfg.Storage.EncryptionKey; k != "" && len(k) < 16 {
		return invalid("storage.encryption_key must be at least 16 characters")
	}

	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	return nil
}

// RequireAI reports a config-missing error when the model cannot be called.
// Only commands that extract or score need it.
func (c *Config) RequireAI() error {
	if c.AI.APIKey == "" {
		return missing("ai.api_key is required (set OPENAI_API_KEY and reference it as ${OPENAI_API_KEY})")
	}
	return nil
}

// EnabledCriteria returns the criteria to run, in file order.
func (c *Config) EnabledCriteria() []model.JobCriteria {
	var out []model.JobCriteria
	for _, cr := range c.Criteria {
		if cr.Enabled {
			out = append(out, cr)
		}
	}
	return out
}

// FindCriteria looks up a criteria by id.
func (c *Config) FindCriteria(id string) (model.JobCriteria, bool) {
	for _, cr := range c.Criteria {
		if cr.ID == id {
			return cr, true
		}
	}
	return model.JobCriteria{}, false
}

// LoadProfile reads the candidate profile. The version is the configured one
// or, when unset, a short content hash, so editing the file invalidates cached scores.
func (c *Config) LoadProfile() (text, version string, err error) {
	if c.Profile.Path == "" {
		return "", "", missing("profile.path is required for scoring")
	}
	data, err := os.ReadFile(c.Profile.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", model.NewError(model.StageConfig, model.KindConfigMissing, "profile not found: "+c.Profile.Path, err)
		}
		return "", "", model.NewError(model.StageConfig, model.KindConfigInvalid, "read profile", err)
	}
	text = strings.TrimSpace(string(data))
	if text == "" {
		return "", "", invalid("profile %s is empty", c.Profile.Path)
	}
	version = c.Profile.Version
	if version == "" {
		sum := sha256.Sum256([]byte(text))
		version = hex.EncodeToString(sum[:6])
	}
	return text, version, nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalid("parse %s %q: %v", field, raw, err)
	}
	return d, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func strOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func invalid(format string, args ...any) error {
	return model.NewError(model.StageConfig, model.KindConfigInvalid, fmt.Sprintf(format, args...), nil)
}

func missing(msg string) error {
	return model.NewError(model.StageConfig, model.KindConfigMissing, msg, nil)
}
