// Package retry retries transient scraper failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure RetryScraper implements model.Scraper.
var _ model.Scraper = (*RetryScraper)(nil)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int
	// BaseDelay is the delay before the first retry, doubled on each subsequent retry.
	BaseDelay time.Duration
}

// DefaultPolicy is used when a zero Policy is supplied.
var DefaultPolicy = Policy{MaxRetries: 2, BaseDelay: 5 * time.Second}

// RetryScraper is a decorator that retries transient failures of the
// non-interactive Scraper calls. Login is never retried.
type RetryScraper struct {
	inner  model.Scraper
	policy Policy
	logger *slog.Logger
}

// NewRetryScraper wraps a Scraper with retry logic.
func NewRetryScraper(inner model.Scraper, policy Policy, logger *slog.Logger) *RetryScraper {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy.BaseDelay
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &RetryScraper{inner: inner, policy: policy, logger: logger}
}

func (r *RetryScraper) CheckAuth(ctx context.Context) (bool, error) {
	return Do(ctx, r.policy, r.logger.With("op", "check_auth"), r.inner.CheckAuth)
}

func (r *RetryScraper) Login(ctx context.Context) (model.AuthSession, error) {
	return r.inner.Login(ctx)
}

func (r *RetryScraper) IsLoggedIn(ctx context.Context, session model.AuthSession) (bool, error) {
	return Do(ctx, r.policy, r.logger.With("op", "is_logged_in"), func(ctx context.Context) (bool, error) {
		return r.inner.IsLoggedIn(ctx, session)
	})
}

func (r *RetryScraper) ScrapeJobs(ctx context.Context, criteria model.JobCriteria, session model.AuthSession) ([]model.Job, error) {
	return Do(ctx, r.policy, r.logger.With("op", "scrape_jobs", "criteria", criteria.ID), func(ctx context.Context) ([]model.Job, error) {
		return r.inner.ScrapeJobs(ctx, criteria, session)
	})
}

// Do runs fn, retrying on transient errors. On final failure the result of
// the last attempt is returned alongside its error, so partial results survive.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err == nil || !IsRetryable(err) {
		return result, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := backoffDelay(p.BaseDelay, attempt, lastErr)

		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			stage := model.StageOf(lastErr)
			if stage == "" {
				stage = model.StageScrape
			}
			return result, model.NewError(stage, model.KindTimeout, "retry cancelled", ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		lastErr = err
	}

	return result, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: base * 2^(attempt-1)
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// IsRetryable returns true if the error represents a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *model.Error
	if errors.As(err, &typed) {
		switch typed.Kind {
		case model.KindRateLimited, model.KindNetwork, model.KindTimeout:
			return true
		case model.KindUnknown:
			// fall through to the HTTP status
		default:
			return false
		}
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Untyped non-HTTP errors (network, DNS, etc.) are retryable.
	return typed == nil
}
