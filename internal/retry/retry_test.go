package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockScraper calls a function on each ScrapeJobs invocation, tracking call count.
type mockScraper struct {
	calls      int
	loginCalls int
	fn         func(attempt int) ([]model.Job, error)
}

func (m *mockScraper) CheckAuth(context.Context) (bool, error) { return true, nil }

func (m *mockScraper) Login(context.Context) (model.AuthSession, error) {
	m.loginCalls++
	return model.AuthSession{}, errors.New("closed window")
}

func (m *mockScraper) IsLoggedIn(context.Context, model.AuthSession) (bool, error) { return true, nil }

func (m *mockScraper) ScrapeJobs(context.Context, model.JobCriteria, model.AuthSession) ([]model.Job, error) {
	m.calls++
	return m.fn(m.calls)
}

var fastPolicy = Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond}

func scrape(rs *RetryScraper, ctx context.Context) ([]model.Job, error) {
	return rs.ScrapeJobs(ctx, model.JobCriteria{ID: "c"}, model.AuthSession{})
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	jobs := []model.Job{{ID: "1", Title: "Engineer"}}
	mock := &mockScraper{fn: func(_ int) ([]model.Job, error) {
		return jobs, nil
	}}

	got, err := scrape(NewRetryScraper(mock, fastPolicy, discardLogger()), context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected jobs: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockScraper{fn: func(attempt int) ([]model.Job, error) {
		if attempt == 1 {
			return nil, model.NewError(model.StageScrape, model.KindNetwork, "search",
				&model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")})
		}
		return []model.Job{{ID: "1"}}, nil
	}}

	got, err := scrape(NewRetryScraper(mock, fastPolicy, discardLogger()), context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryPermanentKinds(t *testing.T) {
	for _, kind := range []model.Kind{model.KindCaptcha, model.KindAuthRequired, model.KindLayoutDrift} {
		t.Run(string(kind), func(t *testing.T) {
			mock := &mockScraper{fn: func(_ int) ([]model.Job, error) {
				return nil, model.NewError(model.StageScrape, kind, "blocked", nil)
			}}

			_, err := scrape(NewRetryScraper(mock, fastPolicy, discardLogger()), context.Background())
			if model.KindOf(err) != kind {
				t.Fatalf("KindOf(err) = %q, want %q", model.KindOf(err), kind)
			}
			if mock.calls != 1 {
				t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
			}
		})
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockScraper{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	_, err := scrape(NewRetryScraper(mock, fastPolicy, discardLogger()), context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_GivesUpAfterMaxRetriesKeepingPartialResult(t *testing.T) {
	mock := &mockScraper{fn: func(attempt int) ([]model.Job, error) {
		return []model.Job{{ID: "partial"}}, model.NewError(model.StageScrape, model.KindRateLimited, "429", nil)
	}}

	got, err := scrape(NewRetryScraper(mock, fastPolicy, discardLogger()), context.Background())
	if model.KindOf(err) != model.KindRateLimited {
		t.Fatalf("expected rate-limited after max retries, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "partial" {
		t.Fatalf("expected partial result from last attempt, got %v", got)
	}
	// 1 initial + 2 retries = 3
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", mock.calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	mock := &mockScraper{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel immediately so the backoff sleep is interrupted.
	cancel()

	_, err := scrape(NewRetryScraper(mock, Policy{MaxRetries: 2, BaseDelay: time.Second}, discardLogger()), ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// An untyped transport error still yields a classifiable scrape error.
	if model.StageOf(err) != model.StageScrape || model.KindOf(err) != model.KindTimeout {
		t.Fatalf("expected scrape/timeout, got %s/%s", model.StageOf(err), model.KindOf(err))
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", mock.calls)
	}
}

func TestRetry_CancellationKeepsTypedStage(t *testing.T) {
	mock := &mockScraper{fn: func(_ int) ([]model.Job, error) {
		return nil, model.NewError(model.StageAuth, model.KindNetwork, "probe session", errors.New("connection reset"))
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scrape(NewRetryScraper(mock, Policy{MaxRetries: 2, BaseDelay: time.Second}, discardLogger()), ctx)
	if model.StageOf(err) != model.StageAuth || model.KindOf(err) != model.KindTimeout {
		t.Fatalf("expected auth/timeout, got %s/%s", model.StageOf(err), model.KindOf(err))
	}
}

func TestRetry_LoginIsNotRetried(t *testing.T) {
	mock := &mockScraper{}
	_, _ = NewRetryScraper(mock, fastPolicy, discardLogger()).Login(context.Background())
	if mock.loginCalls != 1 {
		t.Fatalf("expected 1 login call, got %d", mock.loginCalls)
	}
}

func TestBackoffDelay_PrefersRetryAfter(t *testing.T) {
	err := model.NewError(model.StageScrape, model.KindRateLimited, "429", &model.HTTPError{StatusCode: 429, RetryAfter: 42 * time.Second})
	if got := backoffDelay(time.Second, 1, err); got != 42*time.Second {
		t.Errorf("backoffDelay = %v, want 42s", got)
	}
	if got := backoffDelay(time.Second, 3, errors.New("x")); got < 2800*time.Millisecond || got > 5200*time.Millisecond {
		t.Errorf("backoffDelay(attempt 3) = %v, want 4s ±30%%", got)
	}
}
