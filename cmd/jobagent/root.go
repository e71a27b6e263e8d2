package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/adapter"
	"github.com/PaterSantyago/agent-null-null-job/internal/ai"
	"github.com/PaterSantyago/agent-null-null-job/internal/config"
	"github.com/PaterSantyago/agent-null-null-job/internal/extract"
	"github.com/PaterSantyago/agent-null-null-job/internal/lock"
	"github.com/PaterSantyago/agent-null-null-job/internal/logging"
	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/notifier"
	"github.com/PaterSantyago/agent-null-null-job/internal/pipeline"
	"github.com/PaterSantyago/agent-null-null-job/internal/ratelimit"
	"github.com/PaterSantyago/agent-null-null-job/internal/retry"
	"github.com/PaterSantyago/agent-null-null-job/internal/scoring"
	"github.com/PaterSantyago/agent-null-null-job/internal/scrape"
	"github.com/PaterSantyago/agent-null-null-job/internal/session"
	"github.com/PaterSantyago/agent-null-null-job/internal/store"
	"github.com/PaterSantyago/agent-null-null-job/internal/ui"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "jobagent",
	Short:         "Find, score and report fresh job postings",
	Long:          "jobagent scrapes new postings for each configured search, structures and scores them against your profile, and sends a digest.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvConfigPath+" env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// appOptions selects what newApp sets up.
type appOptions struct {
	// lock takes the host-wide run lock before the store is touched.
	lock bool
	// quiet discards log output (TUI commands).
	quiet bool
}

// app holds what every command shares: config, logger, store and lock.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	lock   *lock.Lock
	client *http.Client
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(config.ResolvePath(cfgPath))
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Debug: debug})
	if opts.quiet {
		logger = logging.Discard()
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.Scraper.Timeout},
	}

	if opts.lock {
		a.lock, err = lock.Acquire(cfg.Lock.Path)
		if err != nil {
			return nil, err
		}
	}

	a.store, err = store.Open(ctx, store.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		RedisURL:      cfg.Storage.RedisURL,
		RedisPrefix:   "jobagent:",
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("config loaded",
		"config", cfg.Dir,
		"criteria", len(cfg.EnabledCriteria()),
		"storage", cfg.Storage.Driver,
		"notifier", cfg.Notification.Type,
	)
	return a, nil
}

// Close closes the store and then releases the lock.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
	if err := a.lock.Release(); err != nil {
		a.logger.Warn("releasing lock", "error", err)
	}
}

// criteria returns the named criteria, or every enabled one when id is empty.
func (a *app) criteria(id string) ([]model.JobCriteria, error) {
	if id == "" {
		return a.cfg.EnabledCriteria(), nil
	}
	c, ok := a.cfg.FindCriteria(id)
	if !ok {
		return nil, model.NewError(model.StageConfig, model.KindConfigInvalid, fmt.Sprintf("unknown criteria %q", id), nil)
	}
	return []model.JobCriteria{c}, nil
}

func (a *app) notifier() model.Notifier {
	n := a.cfg.Notification
	var inner model.Notifier
	switch n.Type {
	case "telegram":
		inner = notifier.NewTelegramNotifier("", n.BotToken, n.ChatID, a.client, a.logger)
	case "slack":
		inner = notifier.NewSlackNotifier(n.WebhookURL, a.client, a.logger)
	default:
		inner = notifier.NewLogNotifier(a.logger)
	}
	return ratelimit.NewRateLimitedNotifier(inner, ratelimit.NewLimiter(n.MinDelay), n.Type)
}

func (a *app) scraper() model.Scraper {
	s := a.cfg.Scraper
	li := adapter.NewLinkedInScraper(adapter.Options{
		BaseURL:      s.BaseURL,
		UserAgent:    s.UserAgent,
		SessionTTL:   s.SessionTTL,
		LoginTimeout: s.LoginTimeout,
		MinDelay:     s.MinDelay,
		MaxPages:     s.MaxPages,
	}, a.client, ui.CookiePrompt(adapter.LoginURL(s.BaseURL), adapter.SessionCookieName), nil, a.logger)
	return retry.NewRetryScraper(li, retry.Policy{MaxRetries: s.MaxRetries, BaseDelay: retry.DefaultPolicy.BaseDelay}, a.logger)
}

func (a *app) llm() (model.LLM, error) {
	if err := a.cfg.RequireAI(); err != nil {
		return nil, err
	}
	c := a.cfg.AI
	provider := ai.NewOpenAIProvider(c.BaseURL, c.APIKey, c.Model, &http.Client{Timeout: c.Timeout})
	return ratelimit.NewRateLimitedLLM(ai.NewService(provider, a.logger), ratelimit.NewLimiter(c.MinDelay), "openai"), nil
}

func (a *app) sessions(scraper model.Scraper) *session.Manager {
	return session.NewManager(a.store, scraper, nil, a.logger)
}

// orchestrator wires the pipeline around n. The model is only required when
// needAI is set.
func (a *app) orchestrator(n model.Notifier, needAI bool) (*pipeline.Orchestrator, error) {
	llm, err := a.llm()
	if err != nil && needAI {
		return nil, err
	}
	scraper := a.scraper()
	cfg := a.cfg
	return pipeline.New(pipeline.Stages{
		Auth:       a.sessions(scraper),
		Scrape:     scrape.NewCoordinator(scraper, a.store, cfg.ExcludeTitles, adapter.SourceName, nil, a.logger),
		Extract:    extract.NewStage(llm, a.logger),
		Score:      scoring.NewStage(llm, a.store, cfg.Scoring.CacheTTL, nil, a.logger),
		Notify:     notifier.NewDispatcher(n, a.logger),
		Store:      a.store,
		Profile:    cfg.LoadProfile,
		FreshSince: cfg.Pipeline.FreshWindow,
	}, pipeline.Settings{
		MinScore:       cfg.Scoring.MinScore,
		UsePrefilter:   cfg.Scoring.Prefilter,
		SendAlerts:     cfg.Pipeline.SendAlerts,
		AlertThreshold: cfg.Scoring.AlertThreshold,
	}, a.logger), nil
}

// alertFailure sends a best-effort error alert for a failed run.
func (a *app) alertFailure(ctx context.Context, n model.Notifier, run model.JobRun, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	fields := map[string]string{
		"run_id":   run.ID,
		"criteria": run.CriteriaID,
		"stage":    string(model.StageOf(err)),
		"kind":     string(model.KindOf(err)),
		"found":    fmt.Sprint(run.JobsFound),
		"scored":   fmt.Sprint(run.JobsScored),
	}
	if h := hint(err); h != "" {
		fields["hint"] = h
	}
	if aerr := n.SendErrorAlert(ctx, err.Error(), fields); aerr != nil {
		a.logger.Warn("error alert failed", "run_id", run.ID, "error", aerr)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM so deferred cleanup, the
// lock release included, still runs.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
