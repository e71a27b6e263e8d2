package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "llm"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "llm"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "llm"); err != nil {
		t.Fatalf("llm wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "telegram"); err != nil {
		t.Fatalf("telegram wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected telegram wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ZeroDelayNeverBlocks(t *testing.T) {
	limiter := NewLimiter(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background(), "llm"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero delay limiter blocked for %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5 * time.Second)

	// First call to seed the last-call time.
	if err := limiter.Wait(context.Background(), "llm"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "llm"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type recordingLLM struct {
	calls int
}

func (f *recordingLLM) ExtractJobData(context.Context, string) (model.Job, error) {
	f.calls++
	return model.Job{}, nil
}

func (f *recordingLLM) ScoreJob(context.Context, model.Job, string) (model.ScoreResult, error) {
	f.calls++
	return model.ScoreResult{Score: 50}, nil
}

func (f *recordingLLM) PrefilterJob(context.Context, model.Job, string) (bool, error) {
	f.calls++
	return true, nil
}

func TestRateLimitedLLM_WaitsBeforeDelegating(t *testing.T) {
	inner := &recordingLLM{}
	llm := NewRateLimitedLLM(inner, NewLimiter(100*time.Millisecond), "llm")
	ctx := context.Background()

	if _, err := llm.PrefilterJob(ctx, model.Job{}, "cv"); err != nil {
		t.Fatalf("prefilter: %v", err)
	}

	start := time.Now()
	if _, err := llm.ScoreJob(ctx, model.Job{}, "cv"); err != nil {
		t.Fatalf("score: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second call, got %v", elapsed)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestRateLimitedLLM_CancelledWaitSkipsCall(t *testing.T) {
	inner := &recordingLLM{}
	limiter := NewLimiter(5 * time.Second)
	llm := NewRateLimitedLLM(inner, limiter, "llm")
	_, _ = llm.ExtractJobData(context.Background(), "seed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := llm.ExtractJobData(ctx, "text")
	if model.StageOf(err) != model.StageExtract {
		t.Fatalf("expected extract-stage error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

type countingNotifier struct{ sent int }

func (c *countingNotifier) SendJobDigest(context.Context, model.Digest) error { c.sent++; return nil }
func (c *countingNotifier) SendJobAlert(context.Context, model.Job, int) error {
	c.sent++
	return nil
}
func (c *countingNotifier) SendStatusUpdate(context.Context, string) error { c.sent++; return nil }
func (c *countingNotifier) SendErrorAlert(context.Context, string, map[string]string) error {
	c.sent++
	return nil
}

func TestRateLimitedNotifier_SpacesMessages(t *testing.T) {
	inner := &countingNotifier{}
	n := NewRateLimitedNotifier(inner, NewLimiter(60*time.Millisecond), "chat")
	ctx := context.Background()

	start := time.Now()
	_ = n.SendJobDigest(ctx, model.Digest{})
	_ = n.SendJobAlert(ctx, model.Job{}, 90)
	_ = n.SendJobAlert(ctx, model.Job{}, 91)
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three messages took %v, want >= 100ms", elapsed)
	}
	if inner.sent != 3 {
		t.Errorf("sent = %d, want 3", inner.sent)
	}
}
