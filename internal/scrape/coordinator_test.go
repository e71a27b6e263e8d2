package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/store"
)

// --- Mock/Fake Implementations ---

// MockScraper returns a canned slice of jobs or an error.
type MockScraper struct {
	Jobs  []model.Job
	Err   error
	Calls int
}

func (m *MockScraper) CheckAuth(context.Context) (bool, error) { return true, nil }
func (m *MockScraper) Login(context.Context) (model.AuthSession, error) {
	return model.AuthSession{}, nil
}
func (m *MockScraper) IsLoggedIn(context.Context, model.AuthSession) (bool, error) { return true, nil }

func (m *MockScraper) ScrapeJobs(_ context.Context, _ model.JobCriteria, _ model.AuthSession) ([]model.Job, error) {
	m.Calls++
	return m.Jobs, m.Err
}

// flakyStore fails MarkSeen for one id.
type flakyStore struct {
	*store.Store
	failSeen string
}

func (s *flakyStore) MarkSeen(ctx context.Context, id string) error {
	if id == s.failSeen {
		return errors.New("disk full")
	}
	return s.Store.MarkSeen(ctx, id)
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeJobs(ids ...string) []model.Job {
	jobs := make([]model.Job, len(ids))
	for i, id := range ids {
		jobs[i] = model.Job{
			ID:       id,
			Company:  "testco",
			Title:    "Software Engineer",
			Location: "Berlin",
			ApplyURL: "https://example.com/" + id,
		}
	}
	return jobs
}

func timePtr(t time.Time) *time.Time { return &t }

var criteria = model.JobCriteria{ID: "go-berlin", Keywords: []string{"golang"}, Enabled: true}

func newCoordinator(sc model.Scraper, st Store) *Coordinator {
	return NewCoordinator(sc, st, nil, "linkedin", nil, discardLogger())
}

// --- Tests ---

func TestScrape_SkipsSeenJobs(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	st.MarkSeen(ctx, "job-1")

	c := newCoordinator(&MockScraper{Jobs: makeJobs("job-1", "job-2")}, st)
	got, err := c.Scrape(ctx, criteria, model.AuthSession{}, "run-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "job-2" {
		t.Fatalf("new jobs = %+v, want only job-2", got)
	}
	if _, ok, _ := st.GetJob(ctx, "job-1"); ok {
		t.Error("job-1 was already seen and must not be persisted again")
	}
	stored, ok, _ := st.GetJob(ctx, "job-2")
	if !ok {
		t.Fatal("job-2 should be persisted")
	}
	if stored.CriteriaID != "go-berlin" || stored.Source != "linkedin" {
		t.Errorf("stored job = %+v, want criteria and source tags", stored)
	}
}

func TestScrape_SecondPassFindsNothingNew(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	sc := &MockScraper{Jobs: makeJobs("a", "b", "c")}
	c := newCoordinator(sc, st)
	since := time.Now().Add(-time.Hour)

	first, err := c.Scrape(ctx, criteria, model.AuthSession{}, "run-1", since)
	if err != nil || len(first) != 3 {
		t.Fatalf("first pass = %d jobs, err %v; want 3", len(first), err)
	}
	second, err := c.Scrape(ctx, criteria, model.AuthSession{}, "run-2", since)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second pass = %d new jobs, want 0", len(second))
	}
	if second == nil {
		t.Error("empty result should be an empty list, not nil")
	}
}

func TestScrape_ShortCircuitsWithoutCutoff(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	st.SaveJob(ctx, model.Job{ID: "stored", CriteriaID: criteria.ID})
	sc := &MockScraper{Jobs: makeJobs("fresh")}

	got, err := newCoordinator(sc, st).Scrape(ctx, criteria, model.AuthSession{}, "run-1", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Calls != 0 {
		t.Errorf("scraper called %d times, want 0", sc.Calls)
	}
	if len(got) != 1 || got[0].ID != "stored" {
		t.Errorf("got %+v, want stored job", got)
	}
}

func TestScrape_NoCutoffAndNothingStoredScrapes(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemoryKV())
	sc := &MockScraper{Jobs: makeJobs("fresh")}

	got, err := newCoordinator(sc, st).Scrape(ctx, criteria, model.AuthSession{}, "run-1", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Calls != 1 || len(got) != 1 {
		t.Errorf("calls=%d got=%d, want 1/1", sc.Calls, len(got))
	}
}

func TestScrape_FreshnessSkipsOldPostings(t *testing.T) {
	ctx := context.Background()
	jobs := []model.Job{
		{ID: "old", Title: "Engineer", PostedAt: timePtr(time.Now().Add(-2 * time.Hour))},
		{ID: "fresh", Title: "Engineer", PostedAt: timePtr(time.Now().Add(-5 * time.Minute))},
		{ID: "no-ts", Title: "Engineer"},
	}
	st := store.New(store.NewMemoryKV())

	got, err := newCoordinator(&MockScraper{Jobs: jobs}, st).Scrape(ctx, criteria, model.AuthSession{}, "run-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "fresh" || got[1].ID != "no-ts" {
		t.Errorf("got %+v, want fresh and no-ts", got)
	}
}

func TestScrape_ScraperErrorIsTyped(t *testing.T) {
	scrapeErr := model.NewError(model.StageScrape, model.KindCaptcha, "captcha wall", nil)
	st := store.New(store.NewMemoryKV())

	_, err := newCoordinator(&MockScraper{Err: scrapeErr}, st).Scrape(context.Background(), criteria, model.AuthSession{}, "run-1", time.Now())
	if model.KindOf(err) != model.KindCaptcha {
		t.Errorf("kind = %q, want captcha-required", model.KindOf(err))
	}
}

func TestScrape_CrashBetweenWritesKeepsEarlierJobs(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Store: store.New(store.NewMemoryKV()), failSeen: "b"}

	got, err := newCoordinator(&MockScraper{Jobs: makeJobs("a", "b", "c")}, st).Scrape(ctx, criteria, model.AuthSession{}, "run-1", time.Now().Add(-time.Hour))
	if err == nil {
		t.Fatal("expected error from MarkSeen")
	}
	if model.StageOf(err) != model.StageStorage {
		t.Errorf("stage = %q, want storage", model.StageOf(err))
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("returned %+v, want job a", got)
	}
	if _, ok, _ := st.GetJob(ctx, "b"); !ok {
		t.Error("job b was persisted before the failed MarkSeen and must stay")
	}

	// Retrying picks up b again; a is not duplicated.
	st.failSeen = ""
	again, err := newCoordinator(&MockScraper{Jobs: makeJobs("a", "b", "c")}, st).Scrape(ctx, criteria, model.AuthSession{}, "run-2", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(again) != 2 || again[0].ID != "b" || again[1].ID != "c" {
		t.Errorf("retry = %+v, want b and c", again)
	}
}

func TestScrape_DuplicateIDsInOneResult(t *testing.T) {
	st := store.New(store.NewMemoryKV())
	got, err := newCoordinator(&MockScraper{Jobs: makeJobs("x", "x")}, st).Scrape(context.Background(), criteria, model.AuthSession{}, "run-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d jobs, want 1", len(got))
	}
}
