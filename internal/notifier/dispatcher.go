package notifier

import (
	"context"
	"log/slog"
	"sort"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

const (
	// HighScoreThreshold marks a job as a strong match in the digest.
	HighScoreThreshold = 80
	// DigestTopN is how many jobs the digest highlights.
	DigestTopN = 5
)

// Dispatcher sends one digest per run plus optional per-job alerts.
type Dispatcher struct {
	notifier model.Notifier
	logger   *slog.Logger
}

func NewDispatcher(n model.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, logger: logger}
}

// Notify sends the digest for jobs. A digest failure is returned. When
// sendAlerts is set each job at or above alertThreshold also gets an alert;
// alert failures are logged and skipped.
func (d *Dispatcher) Notify(ctx context.Context, jobs []model.Job, runID, criteriaLabel string, sendAlerts bool, alertThreshold int) error {
	digest := BuildDigest(jobs, runID, criteriaLabel)
	if err := d.notifier.SendJobDigest(ctx, digest); err != nil {
		return model.Wrap(model.StageNotify, model.KindAPIError, "sending digest", err)
	}
	if len(jobs) == 0 || !sendAlerts {
		return nil
	}

	sent, failed := 0, 0
	for _, j := range jobs {
		score := j.ScoreValue()
		if score < alertThreshold {
			continue
		}
		if err := d.notifier.SendJobAlert(ctx, j, score); err != nil {
			failed++
			d.logger.Warn("job alert failed", "run_id", runID, "job_id", j.ID, "error", err)
			continue
		}
		sent++
	}
	d.logger.Info("notifications complete", "run_id", runID, "jobs", len(jobs), "alerts_sent", sent, "alerts_failed", failed)
	return nil
}

// BuildDigest summarises jobs: total, strong matches, average score and the best few.
// Unscored jobs count towards the total but not the average.
func BuildDigest(jobs []model.Job, runID, criteriaLabel string) model.Digest {
	d := model.Digest{RunID: runID, CriteriaLabel: criteriaLabel, Total: len(jobs), Top: []model.Job{}}
	if len(jobs) == 0 {
		return d
	}

	sum, scored := 0, 0
	for _, j := range jobs {
		s := j.ScoreValue()
		if s < 0 {
			continue
		}
		sum += s
		scored++
		if s >= HighScoreThreshold {
			d.HighScore++
		}
	}
	if scored > 0 {
		d.Average = float64(sum) / float64(scored)
	}

	ranked := append([]model.Job(nil), jobs...)
	sort.SliceStable(ranked, func(i, k int) bool { return ranked[i].ScoreValue() > ranked[k].ScoreValue() })
	if len(ranked) > DigestTopN {
		ranked = ranked[:DigestTopN]
	}
	d.Top = ranked
	return d
}
