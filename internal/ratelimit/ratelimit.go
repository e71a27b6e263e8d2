// Package ratelimit spaces out calls to external APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Limiter enforces a minimum delay between calls sharing the same key.
type Limiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	minDelay time.Duration
}

// NewLimiter creates a limiter that enforces minDelay between consecutive
// calls with the same key. A zero minDelay never blocks.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last call for key.
// Returns an error if the context is cancelled while waiting.
func (r *Limiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	now := time.Now()
	last, ok := r.lastCall[key]
	if !ok || now.Sub(last) >= r.minDelay {
		r.lastCall[key] = now
		r.mu.Unlock()
		return nil
	}

	// Reserve the next slot so concurrent callers queue behind this one.
	next := last.Add(r.minDelay)
	r.lastCall[key] = next
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(next.Sub(now)):
		return nil
	}
}

// Ensure RateLimitedLLM implements model.LLM.
var _ model.LLM = (*RateLimitedLLM)(nil)

// RateLimitedLLM is a decorator that waits for the limiter before every model call.
type RateLimitedLLM struct {
	inner   model.LLM
	limiter *Limiter
	key     string
}

// NewRateLimitedLLM wraps an LLM. All wrappers using the same API key should
// share one limiter and key.
func NewRateLimitedLLM(inner model.LLM, limiter *Limiter, key string) *RateLimitedLLM {
	return &RateLimitedLLM{inner: inner, limiter: limiter, key: key}
}

func (l *RateLimitedLLM) ExtractJobData(ctx context.Context, rawText string) (model.Job, error) {
	if err := l.limiter.Wait(ctx, l.key); err != nil {
		return model.Job{}, model.NewError(model.StageExtract, model.KindTimeout, "waiting for llm rate limit", err)
	}
	return l.inner.ExtractJobData(ctx, rawText)
}

func (l *RateLimitedLLM) ScoreJob(ctx context.Context, job model.Job, profileText string) (model.ScoreResult, error) {
	if err := l.limiter.Wait(ctx, l.key); err != nil {
		return model.ScoreResult{}, model.NewError(model.StageScore, model.KindTimeout, "waiting for llm rate limit", err)
	}
	return l.inner.ScoreJob(ctx, job, profileText)
}

func (l *RateLimitedLLM) PrefilterJob(ctx context.Context, job model.Job, profileText string) (bool, error) {
	if err := l.limiter.Wait(ctx, l.key); err != nil {
		return false, model.NewError(model.StageScore, model.KindTimeout, "waiting for llm rate limit", err)
	}
	return l.inner.PrefilterJob(ctx, job, profileText)
}

// Ensure RateLimitedNotifier implements model.Notifier.
var _ model.Notifier = (*RateLimitedNotifier)(nil)

// RateLimitedNotifier spaces out messages to one chat or channel.
type RateLimitedNotifier struct {
	inner   model.Notifier
	limiter *Limiter
	key     string
}

func NewRateLimitedNotifier(inner model.Notifier, limiter *Limiter, key string) *RateLimitedNotifier {
	return &RateLimitedNotifier{inner: inner, limiter: limiter, key: key}
}

func (n *RateLimitedNotifier) wait(ctx context.Context) error {
	if err := n.limiter.Wait(ctx, n.key); err != nil {
		return model.NewError(model.StageNotify, model.KindRateLimited, "waiting for notifier rate limit", err)
	}
	return nil
}

func (n *RateLimitedNotifier) SendJobDigest(ctx context.Context, d model.Digest) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	return n.inner.SendJobDigest(ctx, d)
}

func (n *RateLimitedNotifier) SendJobAlert(ctx context.Context, job model.Job, score int) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	return n.inner.SendJobAlert(ctx, job, score)
}

func (n *RateLimitedNotifier) SendStatusUpdate(ctx context.Context, text string) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	return n.inner.SendStatusUpdate(ctx, text)
}

func (n *RateLimitedNotifier) SendErrorAlert(ctx context.Context, text string, fields map[string]string) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	return n.inner.SendErrorAlert(ctx, text, fields)
}
