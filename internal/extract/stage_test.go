package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// scriptedLLM fails extraction for contents listed in failures. A count of -1
// fails forever; otherwise the content fails that many times then succeeds.
type scriptedLLM struct {
	failures map[string]int
	calls    map[string]int
}

func newScriptedLLM(failures map[string]int) *scriptedLLM {
	return &scriptedLLM{failures: failures, calls: map[string]int{}}
}

func (s *scriptedLLM) ExtractJobData(_ context.Context, raw string) (model.Job, error) {
	s.calls[raw]++
	if n, ok := s.failures[raw]; ok && (n < 0 || s.calls[raw] <= n) {
		return model.Job{}, model.NewError(model.StageExtract, model.KindSchemaValidation, "bad output", nil)
	}
	return model.Job{Title: "title of " + raw, Company: "Acme"}, nil
}

func (s *scriptedLLM) ScoreJob(context.Context, model.Job, string) (model.ScoreResult, error) {
	return model.ScoreResult{}, errors.New("not used")
}

func (s *scriptedLLM) PrefilterJob(context.Context, model.Job, string) (bool, error) {
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func items(contents ...string) []model.RawItem {
	out := make([]model.RawItem, len(contents))
	for i, c := range contents {
		out[i] = model.RawItem{ID: "id-" + c, Content: c, URL: "https://example.com/" + c, Timestamp: time.Unix(1700000000, 0)}
	}
	return out
}

func TestExtract_DropsPersistentFailureKeepsOrder(t *testing.T) {
	llm := newScriptedLLM(map[string]int{"two": -1})

	got := NewStage(llm, discardLogger()).Extract(context.Background(), items("one", "two", "three"), true)

	if len(got) != 2 {
		t.Fatalf("got %d jobs, want 2", len(got))
	}
	if got[0].ID != "id-one" || got[1].ID != "id-three" {
		t.Errorf("order = [%s %s], want [id-one id-three]", got[0].ID, got[1].ID)
	}
	if llm.calls["two"] != 2 {
		t.Errorf("failing item attempted %d times, want 2 (one retry)", llm.calls["two"])
	}
}

func TestExtract_RetryRecoversTransientFailure(t *testing.T) {
	llm := newScriptedLLM(map[string]int{"flaky": 1})

	got := NewStage(llm, discardLogger()).Extract(context.Background(), items("flaky"), true)
	if len(got) != 1 {
		t.Fatalf("got %d jobs, want 1", len(got))
	}
}

func TestExtract_NoRetryGivesUpImmediately(t *testing.T) {
	llm := newScriptedLLM(map[string]int{"flaky": 1})

	got := NewStage(llm, discardLogger()).Extract(context.Background(), items("flaky"), false)
	if len(got) != 0 {
		t.Errorf("got %d jobs, want 0", len(got))
	}
	if llm.calls["flaky"] != 1 {
		t.Errorf("calls = %d, want 1", llm.calls["flaky"])
	}
}

func TestExtract_FillsMetadataFromItem(t *testing.T) {
	llm := newScriptedLLM(nil)
	in := []model.RawItem{{Content: "text", URL: "https://example.com/view/42", Source: "linkedin", CriteriaID: "c1", Timestamp: time.Unix(1700000000, 0)}}

	got := NewStage(llm, discardLogger()).Extract(context.Background(), in, false)
	if len(got) != 1 {
		t.Fatalf("got %d jobs, want 1", len(got))
	}
	j := got[0]
	if j.ID == "" || j.ApplyURL != in[0].URL || j.Source != "linkedin" || j.CriteriaID != "c1" {
		t.Errorf("metadata not merged: %+v", j)
	}
	if j.PostedAt == nil || !j.PostedAt.Equal(in[0].Timestamp) {
		t.Errorf("PostedAt = %v, want item timestamp", j.PostedAt)
	}
	if j.TechStack == nil || j.Languages == nil {
		t.Error("list fields must be non-nil")
	}

	// Same URL → same id across runs.
	again := NewStage(llm, discardLogger()).Extract(context.Background(), in, false)
	if again[0].ID != j.ID {
		t.Errorf("id not deterministic: %s vs %s", again[0].ID, j.ID)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	got := NewStage(newScriptedLLM(nil), discardLogger()).Extract(context.Background(), nil, true)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

// fixedLLM returns the same extracted job for every item.
type fixedLLM struct {
	scriptedLLM
	job model.Job
}

func (f *fixedLLM) ExtractJobData(context.Context, string) (model.Job, error) {
	return f.job, nil
}

func TestExtract_ScrapedURLAndDescriptionWin(t *testing.T) {
	full := "Build Go services for payments. You will own the ledger and the settlement pipeline end to end."

	cases := []struct {
		name     string
		model    model.Job
		item     model.RawItem
		wantURL  string
		wantDesc string
	}{
		{
			name:     "model link ignored when scraped link exists",
			model:    model.Job{Title: "Go Dev", Company: "Acme", ApplyURL: "https://evil.example/apply"},
			item:     model.RawItem{ID: "li-1", URL: "https://www.linkedin.com/jobs/view/1", Description: full},
			wantURL:  "https://www.linkedin.com/jobs/view/1",
			wantDesc: full,
		},
		{
			name:     "model link used when nothing was scraped",
			model:    model.Job{Title: "Go Dev", Company: "Acme", ApplyURL: "https://acme.example/jobs/1"},
			item:     model.RawItem{ID: "li-2", Content: "raw text"},
			wantURL:  "https://acme.example/jobs/1",
			wantDesc: "raw text",
		},
		{
			name:     "truncated description replaced by scraped one",
			model:    model.Job{Title: "Go Dev", Company: "Acme", Description: full[:30]},
			item:     model.RawItem{ID: "li-3", URL: "https://www.linkedin.com/jobs/view/3", Description: full},
			wantURL:  "https://www.linkedin.com/jobs/view/3",
			wantDesc: full,
		},
		{
			name:     "rewritten description kept",
			model:    model.Job{Title: "Go Dev", Company: "Acme", Description: "Payments backend role."},
			item:     model.RawItem{ID: "li-4", URL: "https://www.linkedin.com/jobs/view/4", Description: full},
			wantURL:  "https://www.linkedin.com/jobs/view/4",
			wantDesc: "Payments backend role.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fixedLLM{job: tc.model}
			got := NewStage(llm, discardLogger()).Extract(context.Background(), []model.RawItem{tc.item}, false)
			if len(got) != 1 {
				t.Fatalf("got %d jobs, want 1", len(got))
			}
			if got[0].ApplyURL != tc.wantURL {
				t.Errorf("ApplyURL = %q, want %q", got[0].ApplyURL, tc.wantURL)
			}
			if got[0].Description != tc.wantDesc {
				t.Errorf("Description = %q, want %q", got[0].Description, tc.wantDesc)
			}
		})
	}
}
