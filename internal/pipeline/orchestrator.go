// Package pipeline sequences the stages into one auditable run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// DefaultFreshWindow is how far back a run looks for new postings.
const DefaultFreshWindow = time.Hour

// Authenticator yields a session the site accepts (session.Manager).
type Authenticator interface {
	Authenticate(ctx context.Context, forceReauth bool) (model.AuthSession, error)
}

// Coordinator discovers and persists new jobs (scrape.Coordinator).
type Coordinator interface {
	Scrape(ctx context.Context, criteria model.JobCriteria, session model.AuthSession, runID string, since time.Time) ([]model.Job, error)
}

// Extractor structures raw items (extract.Stage).
type Extractor interface {
	Extract(ctx context.Context, items []model.RawItem, retryFailed bool) []model.Job
}

// Scorer rates jobs against the profile (scoring.Stage).
type Scorer interface {
	Score(ctx context.Context, jobs []model.Job, profileText, profileVersion string, minScore int, usePrefilter bool) ([]model.Job, error)
}

// Dispatcher sends the digest and alerts (notifier.Dispatcher).
type Dispatcher interface {
	Notify(ctx context.Context, jobs []model.Job, runID, criteriaLabel string, sendAlerts bool, alertThreshold int) error
}

// Store is the persistence the orchestrator writes to directly.
type Store interface {
	model.JobStore
	model.RunStore
}

// ProfileFunc returns the candidate profile text and its version tag.
type ProfileFunc func() (text, version string, err error)

// Stages bundles the collaborators of a run.
type Stages struct {
	Auth       Authenticator
	Scrape     Coordinator
	Extract    Extractor
	Score      Scorer
	Notify     Dispatcher
	Store      Store
	Profile    ProfileFunc
	Clock      model.Clock
	NewID      func() string
	FreshSince time.Duration
}

// Settings are the per-run knobs taken from configuration.
type Settings struct {
	MinScore       int
	UsePrefilter   bool
	SendAlerts     bool
	AlertThreshold int
}

// RunOptions alter a single run.
type RunOptions struct {
	// DryRun stops after scraping: no extraction, scoring or notification.
	DryRun bool
}

// Orchestrator owns the JobRun lifecycle.
type Orchestrator struct {
	stages   Stages
	settings Settings
	logger   *slog.Logger
}

// New creates an orchestrator. Zero Clock, NewID and FreshSince take defaults.
func New(stages Stages, settings Settings, logger *slog.Logger) *Orchestrator {
	if stages.Clock == nil {
		stages.Clock = time.Now
	}
	if stages.NewID == nil {
		stages.NewID = uuid.NewString
	}
	if stages.FreshSince <= 0 {
		stages.FreshSince = DefaultFreshWindow
	}
	return &Orchestrator{stages: stages, settings: settings, logger: logger}
}

// Run executes one pipeline run for criteria. The returned JobRun is the
// last persisted state; on failure it is FAILED with the counts reached so
// far and the error is returned unchanged.
func (o *Orchestrator) Run(ctx context.Context, criteria model.JobCriteria, opts RunOptions) (run model.JobRun, err error) {
	s := o.stages
	run = model.NewJobRun(s.NewID(), criteria.ID, s.Clock())
	log := o.logger.With("run_id", run.ID, "criteria", criteria.ID)

	if err := s.Store.SaveRun(ctx, run); err != nil {
		return run, model.Wrap(model.StageStorage, model.KindDatabase, "creating run", err)
	}
	log.Info("run started", "dry_run", opts.DryRun)

	defer func() {
		if p := recover(); p != nil {
			o.fail(ctx, &run, fmt.Errorf("panic: %v", p), log)
			panic(p)
		}
		if err != nil {
			o.fail(ctx, &run, err, log)
		}
	}()

	var profileText, profileVersion string
	if !opts.DryRun {
		profileText, profileVersion, err = s.Profile()
		if err != nil {
			return run, err
		}
	}

	session, err := s.Auth.Authenticate(ctx, false)
	if err != nil {
		return run, err
	}

	since := s.Clock().Add(-s.FreshSince)
	found, err := s.Scrape.Scrape(ctx, criteria, session, run.ID, since)
	if err != nil {
		return run, err
	}
	run.JobsFound = len(found)
	if err := o.checkpoint(ctx, run); err != nil {
		return run, err
	}
	log.Info("scrape complete", "jobs_found", run.JobsFound)

	if opts.DryRun {
		return o.complete(ctx, run, log)
	}

	items := make([]model.RawItem, len(found))
	for i, j := range found {
		items[i] = model.RawItemFromJob(j)
	}
	extracted := s.Extract.Extract(ctx, items, true)
	if err := ctx.Err(); err != nil {
		return run, model.NewError(model.StageExtract, model.KindTimeout, "extraction interrupted", err)
	}
	if err := o.saveJobs(ctx, extracted); err != nil {
		return run, err
	}
	run.JobsProcessed = len(extracted)
	if err := o.checkpoint(ctx, run); err != nil {
		return run, err
	}
	log.Info("extraction complete", "jobs_processed", run.JobsProcessed)

	scored, err := s.Score.Score(ctx, extracted, profileText, profileVersion, o.settings.MinScore, o.settings.UsePrefilter)
	if err != nil {
		return run, err
	}
	if err := o.saveJobs(ctx, scored); err != nil {
		return run, err
	}
	run.JobsScored = len(scored)
	if err := o.checkpoint(ctx, run); err != nil {
		return run, err
	}
	log.Info("scoring complete", "jobs_scored", run.JobsScored, "profile_version", profileVersion)

	if err := s.Notify.Notify(ctx, scored, run.ID, criteria.DisplayName(), o.settings.SendAlerts, o.settings.AlertThreshold); err != nil {
		return run, err
	}

	return o.complete(ctx, run, log)
}

func (o *Orchestrator) checkpoint(ctx context.Context, run model.JobRun) error {
	if err := o.stages.Store.SaveRun(ctx, run); err != nil {
		return model.Wrap(model.StageStorage, model.KindDatabase, "saving run progress", err)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, run model.JobRun, log *slog.Logger) (model.JobRun, error) {
	run.Complete(o.stages.Clock())
	if err := o.checkpoint(ctx, run); err != nil {
		return run, err
	}
	log.Info("run completed",
		"jobs_found", run.JobsFound,
		"jobs_processed", run.JobsProcessed,
		"jobs_scored", run.JobsScored,
		"duration", run.Duration(o.stages.Clock()).Round(time.Millisecond),
	)
	return run, nil
}

// fail records err on a still-running run. The write ignores cancellation so
// an interrupted run still ends FAILED.
func (o *Orchestrator) fail(ctx context.Context, run *model.JobRun, err error, log *slog.Logger) {
	if !run.Fail(o.stages.Clock(), err) {
		return
	}
	if serr := o.stages.Store.SaveRun(context.WithoutCancel(ctx), *run); serr != nil {
		log.Error("could not persist failed run", "error", serr)
	}
	log.Error("run failed",
		"stage", model.StageOf(err),
		"kind", model.KindOf(err),
		"jobs_found", run.JobsFound,
		"jobs_processed", run.JobsProcessed,
		"jobs_scored", run.JobsScored,
		"error", err,
	)
}

func (o *Orchestrator) saveJobs(ctx context.Context, jobs []model.Job) error {
	for _, j := range jobs {
		if err := o.stages.Store.SaveJob(ctx, j); err != nil {
			return model.Wrap(model.StageStorage, model.KindDatabase, "saving job "+j.ID, err)
		}
	}
	return nil
}
