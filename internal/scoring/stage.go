// Package scoring rates jobs against the candidate profile, reusing recent scores.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// DefaultCacheTTL is how long a score stays reusable for the same profile version.
const DefaultCacheTTL = 24 * time.Hour

// Stage scores jobs one at a time. Unlike extraction, a failed scoring call
// aborts the batch: it points at configuration or quota problems.
type Stage struct {
	llm      model.LLM
	scores   model.ScoreStore
	cacheTTL time.Duration
	now      model.Clock
	logger   *slog.Logger
}

// NewStage creates a scoring stage. cacheTTL <= 0 uses DefaultCacheTTL.
func NewStage(llm model.LLM, scores model.ScoreStore, cacheTTL time.Duration, now model.Clock, logger *slog.Logger) *Stage {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Stage{llm: llm, scores: scores, cacheTTL: cacheTTL, now: now, logger: logger}
}

// Score returns the jobs scoring at least minScore, annotated with their
// score. Every fresh score is recorded, including those below the threshold,
// so a later call with a lower threshold hits the cache.
func (s *Stage) Score(ctx context.Context, jobs []model.Job, profileText, profileVersion string, minScore int, usePrefilter bool) ([]model.Job, error) {
	out := make([]model.Job, 0, len(jobs))
	var cached, fresh, rejected, below int

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return out, model.NewError(model.StageScore, model.KindTimeout, "scoring interrupted", err)
		}
		log := s.logger.With("job_id", job.ID)

		result, hit, err := s.lookup(ctx, job.ID, profileVersion)
		if err != nil {
			return out, err
		}

		if hit {
			cached++
			log.Debug("reusing cached score", "score", result.Score)
		} else {
			if usePrefilter && !s.prefilter(ctx, job, profileText, log) {
				rejected++
				continue
			}

			result, err = s.llm.ScoreJob(ctx, job, profileText)
			if err != nil && ctx.Err() != nil {
				return out, model.NewError(model.StageScore, model.KindTimeout, "scoring interrupted", errors.Join(ctx.Err(), err))
			}
			if err != nil {
				return out, model.Wrap(model.StageScore, model.KindAPIError, "scoring job "+job.ID, err)
			}
			if result.Score < 0 || result.Score > 100 {
				return out, model.NewError(model.StageScore, model.KindInvalidResponse,
					fmt.Sprintf("score %d for job %s outside 0-100", result.Score, job.ID), nil)
			}
			if result.Gaps == nil {
				result.Gaps = []string{}
			}

			record := model.JobScore{
				JobID:          job.ID,
				Score:          result.Score,
				Rationale:      result.Rationale,
				Gaps:           result.Gaps,
				ProfileVersion: profileVersion,
				ScoredAt:       s.now(),
			}
			if err := s.scores.AppendScore(ctx, record); err != nil {
				return out, model.Wrap(model.StageStorage, model.KindDatabase, "recording score for "+job.ID, err)
			}
			fresh++
			log.Debug("scored job", "score", result.Score)
		}

		if result.Score < minScore {
			below++
			continue
		}
		out = append(out, job.WithScore(result))
	}

	s.logger.Info("scoring complete",
		"input", len(jobs),
		"cached", cached,
		"scored", fresh,
		"prefiltered", rejected,
		"below_threshold", below,
		"kept", len(out),
	)
	return out, nil
}

// lookup returns the newest score for (jobID, profileVersion) younger than the TTL.
func (s *Stage) lookup(ctx context.Context, jobID, profileVersion string) (model.ScoreResult, bool, error) {
	history, err := s.scores.ListScores(ctx, jobID)
	if err != nil {
		return model.ScoreResult{}, false, model.Wrap(model.StageStorage, model.KindDatabase, "loading scores for "+jobID, err)
	}
	now := s.now()
	var best *model.JobScore
	for i := range history {
		h := &history[i]
		if !h.FreshFor(profileVersion, now, s.cacheTTL) {
			continue
		}
		if best == nil || h.ScoredAt.After(best.ScoredAt) {
			best = h
		}
	}
	if best == nil {
		return model.ScoreResult{}, false, nil
	}
	return best.Result(), true, nil
}

// prefilter fails open: only an explicit "not relevant" drops the job.
func (s *Stage) prefilter(ctx context.Context, job model.Job, profileText string, log *slog.Logger) bool {
	relevant, err := s.llm.PrefilterJob(ctx, job, profileText)
	if err != nil {
		log.Warn("prefilter failed, scoring anyway", "error", err)
		return true
	}
	if !relevant {
		log.Debug("prefilter rejected job")
	}
	return relevant
}
