// Package extract turns raw scraped text into structured jobs.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// jobNamespace seeds deterministic ids for items that arrive without one.
var jobNamespace = uuid.MustParse("6f1d8c52-41a9-4a3e-9a53-7d1c2f0b5e11")

// Stage calls the LLM once per item. Failures are expected (scraped text is
// noisy): a failing item is dropped and logged, never returned as an error.
type Stage struct {
	llm    model.LLM
	logger *slog.Logger
}

func NewStage(llm model.LLM, logger *slog.Logger) *Stage {
	return &Stage{llm: llm, logger: logger}
}

// Extract processes items sequentially. With retryFailed an item gets one
// more attempt after a failure. The output keeps input order and holds only
// the items that were extracted.
func (s *Stage) Extract(ctx context.Context, items []model.RawItem, retryFailed bool) []model.Job {
	out := make([]model.Job, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			s.logger.Warn("extraction interrupted", "remaining", len(items)-i, "error", ctx.Err())
			break
		}

		job, err := s.llm.ExtractJobData(ctx, item.Content)
		if err != nil && retryFailed && ctx.Err() == nil {
			s.logger.Debug("retrying extraction", "item", item.ID, "error", err)
			job, err = s.llm.ExtractJobData(ctx, item.Content)
		}
		if err != nil {
			s.logger.Warn("extraction failed, dropping item",
				"item", item.ID,
				"url", item.URL,
				"kind", model.KindOf(err),
				"error", err,
			)
			continue
		}

		out = append(out, merge(job, item))
	}

	s.logger.Info("extraction complete", "input", len(items), "extracted", len(out))
	return out
}

// description keeps the scraped text when the model returned none or only a
// cut-down copy of it.
func description(extracted string, item model.RawItem) string {
	raw := strings.TrimSpace(item.Description)
	switch {
	case extracted == "" && raw != "":
		return raw
	case extracted == "":
		return item.Content
	case raw != "" && strings.HasPrefix(raw, strings.TrimSpace(extracted)):
		return raw
	}
	return extracted
}

// merge fills what the model did not return from the raw item's metadata.
// The item's id always wins so the job stays keyed like its seen-set entry.
func merge(job model.Job, item model.RawItem) model.Job {
	switch {
	case item.ID != "":
		job.ID = item.ID
	case job.ID == "" && item.URL != "":
		job.ID = uuid.NewSHA1(jobNamespace, []byte(strings.TrimSpace(item.URL))).String()
	case job.ID == "":
		job.ID = uuid.NewString()
	}
	// The scraped link is authoritative; the model's is only a fallback.
	if item.URL != "" {
		job.ApplyURL = item.URL
	}
	if job.Source == "" {
		job.Source = item.Source
	}
	if job.CriteriaID == "" {
		job.CriteriaID = item.CriteriaID
	}
	if job.PostedAt == nil && !item.Timestamp.IsZero() {
		ts := item.Timestamp
		job.PostedAt = &ts
	}
	job.Description = description(job.Description, item)
	job.Score = nil
	job.Normalize()
	return job
}
