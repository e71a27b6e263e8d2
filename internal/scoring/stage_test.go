package scoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/store"
)

// fakeLLM returns per-job scores and prefilter verdicts.
type fakeLLM struct {
	scores       map[string]int
	scoreErr     error
	prefilter    map[string]bool
	prefilterErr error
	scoreCalls   int
	prefCalls    int
}

func (f *fakeLLM) ExtractJobData(context.Context, string) (model.Job, error) {
	return model.Job{}, errors.New("not used")
}

func (f *fakeLLM) ScoreJob(_ context.Context, job model.Job, _ string) (model.ScoreResult, error) {
	f.scoreCalls++
	if f.scoreErr != nil {
		return model.ScoreResult{}, f.scoreErr
	}
	return model.ScoreResult{Score: f.scores[job.ID], Rationale: "because", Gaps: []string{"k8s"}}, nil
}

func (f *fakeLLM) PrefilterJob(_ context.Context, job model.Job, _ string) (bool, error) {
	f.prefCalls++
	if f.prefilterErr != nil {
		return false, f.prefilterErr
	}
	v, ok := f.prefilter[job.ID]
	return !ok || v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newStage(llm model.LLM, st model.ScoreStore) *Stage {
	return NewStage(llm, st, 0, func() time.Time { return fixedNow }, discardLogger())
}

func jobs(ids ...string) []model.Job {
	out := make([]model.Job, len(ids))
	for i, id := range ids {
		out[i] = model.Job{ID: id, Title: "Engineer " + id}
	}
	return out
}

func TestScore_ThresholdIsInclusiveAndBelowIsRecorded(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	llm := &fakeLLM{scores: map[string]int{"low": 69, "edge": 70}}

	got, err := newStage(llm, st).Score(ctx, jobs("low", "edge"), "cv", "v1", 70, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "edge", got[0].ID)
	assert.Equal(t, 70, *got[0].Score)
	assert.Equal(t, []string{"k8s"}, got[0].Gaps)

	low, err := st.ListScores(ctx, "low")
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, 69, low[0].Score)
	assert.Equal(t, "v1", low[0].ProfileVersion)
}

func TestScore_CacheReuse(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		age       time.Duration
		wantCalls int
	}{
		{"fresh same version reused", "v1", 23 * time.Hour, 0},
		{"stale same version rescored", "v1", 25 * time.Hour, 1},
		{"fresh other version rescored", "v0", time.Hour, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.New(store.NewMemoryKV())
			require.NoError(t, st.AppendScore(ctx, model.JobScore{
				JobID: "j1", Score: 90, ProfileVersion: tt.version, ScoredAt: fixedNow.Add(-tt.age),
			}))
			llm := &fakeLLM{scores: map[string]int{"j1": 40}}

			got, err := newStage(llm, st).Score(ctx, jobs("j1"), "cv", "v1", 0, true)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, llm.scoreCalls)
			if tt.wantCalls == 0 {
				assert.Equal(t, 0, llm.prefCalls, "cache hit must skip the prefilter too")
				require.Len(t, got, 1)
				assert.Equal(t, 90, *got[0].Score)
			}
		})
	}
}

func TestScore_CachedScoreStillFiltered(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	require.NoError(t, st.AppendScore(ctx, model.JobScore{JobID: "j1", Score: 50, ProfileVersion: "v1", ScoredAt: fixedNow}))

	got, err := newStage(&fakeLLM{}, st).Score(ctx, jobs("j1"), "cv", "v1", 70, false)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = newStage(&fakeLLM{}, st).Score(ctx, jobs("j1"), "cv", "v1", 40, false)
	require.NoError(t, err)
	assert.Len(t, got, 1, "lower threshold reuses the recorded score")
}

func TestScore_PrefilterRejectsWithoutScoring(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	llm := &fakeLLM{scores: map[string]int{"a": 90, "b": 90}, prefilter: map[string]bool{"a": false}}

	got, err := newStage(llm, st).Score(ctx, jobs("a", "b"), "cv", "v1", 0, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, 1, llm.scoreCalls)

	history, _ := st.ListScores(ctx, "a")
	assert.Empty(t, history, "prefiltered job gets no score record")
}

func TestScore_PrefilterErrorFailsOpen(t *testing.T) {
	llm := &fakeLLM{scores: map[string]int{"a": 80}, prefilterErr: errors.New("503")}

	got, err := newStage(llm, store.New(store.NewMemoryKV())).Score(context.Background(), jobs("a"), "cv", "v1", 0, true)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, llm.scoreCalls)
}

func TestScore_ScoringErrorIsFatal(t *testing.T) {
	quota := model.NewError(model.StageScore, model.KindRateLimited, "quota exhausted", nil)
	llm := &fakeLLM{scoreErr: quota}

	_, err := newStage(llm, store.New(store.NewMemoryKV())).Score(context.Background(), jobs("a", "b"), "cv", "v1", 0, false)
	require.Error(t, err)
	assert.Equal(t, model.KindRateLimited, model.KindOf(err))
	assert.Equal(t, 1, llm.scoreCalls, "batch stops at the first failure")
}

func TestScore_OutOfRangeScoreRejected(t *testing.T) {
	llm := &fakeLLM{scores: map[string]int{"a": 130}}

	_, err := newStage(llm, store.New(store.NewMemoryKV())).Score(context.Background(), jobs("a"), "cv", "v1", 0, false)
	assert.Equal(t, model.KindInvalidResponse, model.KindOf(err))
}

// cancellingLLM cancels the run mid-call and fails like an HTTP client would.
type cancellingLLM struct {
	*fakeLLM
	cancel context.CancelFunc
}

func (c *cancellingLLM) ScoreJob(ctx context.Context, _ model.Job, _ string) (model.ScoreResult, error) {
	c.cancel()
	return model.ScoreResult{}, model.NewError(model.StageScore, model.KindAPIError, "post chat completion", ctx.Err())
}

func TestScore_CancellationIsTimeout(t *testing.T) {
	t.Run("before a job", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		llm := &fakeLLM{}

		_, err := newStage(llm, store.New(store.NewMemoryKV())).Score(ctx, jobs("a"), "cv", "v1", 0, false)
		require.Error(t, err)
		assert.Equal(t, model.KindTimeout, model.KindOf(err))
		assert.Equal(t, model.StageScore, model.StageOf(err))
		assert.Zero(t, llm.scoreCalls)
	})

	t.Run("during a call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		llm := &cancellingLLM{fakeLLM: &fakeLLM{}, cancel: cancel}

		_, err := newStage(llm, store.New(store.NewMemoryKV())).Score(ctx, jobs("a", "b"), "cv", "v1", 0, false)
		require.Error(t, err)
		assert.Equal(t, model.KindTimeout, model.KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
