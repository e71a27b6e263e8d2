package pipeline

import (
	"context"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// ScoreStored scores the jobs already stored for criteria without scraping.
// Cached scores are reused; jobs that no longer reach the minimum score lose
// their stale annotation. It returns the jobs that passed.
func (o *Orchestrator) ScoreStored(ctx context.Context, criteria model.JobCriteria) ([]model.Job, error) {
	s := o.stages
	log := o.logger.With("criteria", criteria.ID)

	text, version, err := s.Profile()
	if err != nil {
		return nil, err
	}
	jobs, err := s.Store.ListJobs(ctx, criteria.ID)
	if err != nil {
		return nil, model.Wrap(model.StageStorage, model.KindDatabase, "listing stored jobs", err)
	}
	if len(jobs) == 0 {
		log.Info("no stored jobs to score")
		return []model.Job{}, nil
	}

	scored, err := s.Score.Score(ctx, jobs, text, version, o.settings.MinScore, o.settings.UsePrefilter)
	if err != nil {
		return nil, err
	}
	if err := o.saveJobs(ctx, scored); err != nil {
		return nil, err
	}

	kept := make(map[string]struct{}, len(scored))
	for _, j := range scored {
		kept[j.ID] = struct{}{}
	}
	var cleared []model.Job
	for _, j := range jobs {
		if _, ok := kept[j.ID]; ok || j.Score == nil {
			continue
		}
		j.Score, j.Rationale, j.Gaps = nil, "", nil
		cleared = append(cleared, j)
	}
	if err := o.saveJobs(ctx, cleared); err != nil {
		return nil, err
	}

	log.Info("stored jobs scored", "stored", len(jobs), "passed", len(scored), "cleared", len(cleared))
	return scored, nil
}

// SendStored notifies the stored jobs of criteria that carry a score at or
// above the minimum. Each call is its own dispatch id.
func (o *Orchestrator) SendStored(ctx context.Context, criteria model.JobCriteria) ([]model.Job, error) {
	s := o.stages
	jobs, err := s.Store.ListJobs(ctx, criteria.ID)
	if err != nil {
		return nil, model.Wrap(model.StageStorage, model.KindDatabase, "listing stored jobs", err)
	}
	matches := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Score != nil && *j.Score >= o.settings.MinScore {
			matches = append(matches, j)
		}
	}

	id := s.NewID()
	if err := s.Notify.Notify(ctx, matches, id, criteria.DisplayName(), o.settings.SendAlerts, o.settings.AlertThreshold); err != nil {
		return nil, err
	}
	o.logger.Info("stored jobs sent", "criteria", criteria.ID, "dispatch_id", id, "jobs", len(matches))
	return matches, nil
}
