package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/filter"
	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Store is the part of the persistence layer the coordinator writes to.
type Store interface {
	model.JobStore
	model.SeenStore
}

// Coordinator owns one discovery pass for a criteria:
// fetch → criteria filter → freshness → dedup → persist → mark seen.
type Coordinator struct {
	scraper       model.Scraper
	store         Store
	excludeTitles []string
	source        string
	now           model.Clock
	logger        *slog.Logger
}

// NewCoordinator creates a coordinator wired with all its dependencies.
// source tags every persisted job (e.g. "linkedin").
func NewCoordinator(
	scraper model.Scraper,
	store Store,
	excludeTitles []string,
	source string,
	now model.Clock,
	logger *slog.Logger,
) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		scraper:       scraper,
		store:         store,
		excludeTitles: excludeTitles,
		source:        source,
		now:           now,
		logger:        logger,
	}
}

// Scrape runs one pass and returns the jobs persisted by it. A zero since
// means no cutoff: if jobs for the criteria are already stored they are
// returned without contacting the site. With a cutoff, postings published
// before it are skipped; postings without a timestamp pass.
//
// Each new job is persisted before its id is marked seen, so a crash between
// the two writes leaves the job stored and merely eligible again next pass.
func (c *Coordinator) Scrape(ctx context.Context, criteria model.JobCriteria, session model.AuthSession, runID string, since time.Time) ([]model.Job, error) {
	log := c.logger.With("run_id", runID, "criteria", criteria.ID)

	if since.IsZero() {
		stored, err := c.store.ListJobs(ctx, criteria.ID)
		if err != nil {
			return nil, model.Wrap(model.StageStorage, model.KindDatabase, "listing stored jobs", err)
		}
		if len(stored) > 0 {
			log.Info("using stored jobs, scrape skipped", "stored", len(stored))
			return stored, nil
		}
	}

	scraped, err := c.scraper.ScrapeJobs(ctx, criteria, session)
	if err != nil {
		return nil, model.Wrap(model.StageScrape, model.KindUnknown, "scraping "+criteria.ID, err)
	}

	jobFilter := filter.NewCriteriaFilter(criteria, c.excludeTitles)
	var matched []model.Job
	stale := 0
	for _, job := range scraped {
		if !jobFilter.Match(job) {
			continue
		}
		if !since.IsZero() && job.PostedAt != nil && job.PostedAt.Before(since) {
			stale++
			continue
		}
		matched = append(matched, job)
	}

	seen, err := c.store.SeenIDs(ctx)
	if err != nil {
		return nil, model.Wrap(model.StageStorage, model.KindDatabase, "loading seen set", err)
	}

	newJobs := []model.Job{}
	batch := make(map[string]struct{}, len(matched))
	for _, job := range matched {
		if job.ID == "" {
			log.Warn("scraped posting without id, skipping", "title", job.Title)
			continue
		}
		if _, ok := seen[job.ID]; ok {
			continue
		}
		// The site can list the same posting twice in one result set.
		if _, ok := batch[job.ID]; ok {
			continue
		}
		batch[job.ID] = struct{}{}

		job.CriteriaID = criteria.ID
		if job.Source == "" {
			job.Source = c.source
		}
		job.Normalize()
		now := c.now()
		job.CreatedAt = now
		job.UpdatedAt = now

		if err := c.store.SaveJob(ctx, job); err != nil {
			return newJobs, model.Wrap(model.StageStorage, model.KindDatabase, "saving job "+job.ID, err)
		}
		if err := c.store.MarkSeen(ctx, job.ID); err != nil {
			return newJobs, model.Wrap(model.StageStorage, model.KindDatabase, "marking seen "+job.ID, err)
		}
		newJobs = append(newJobs, job)
	}

	log.Info("scraped criteria",
		"fetched", len(scraped),
		"matched", len(matched),
		"stale", stale,
		"new", len(newJobs),
	)
	return newJobs, nil
}
