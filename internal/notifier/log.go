package notifier

import (
	"context"
	"log/slog"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes notifications to the given logger as structured messages.
// It never fails, which makes it the dry-run and local-development sink.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendJobDigest(_ context.Context, d model.Digest) error {
	n.logger.Info("job digest",
		"run_id", d.RunID,
		"criteria", d.CriteriaLabel,
		"total", d.Total,
		"high_score", d.HighScore,
		"average", d.Average,
	)
	for i, j := range d.Top {
		n.logger.Info("digest entry", "rank", i+1, "score", j.ScoreValue(), "company", j.Company, "title", j.Title, "url", j.ApplyURL)
	}
	return nil
}

func (n *LogNotifier) SendJobAlert(_ context.Context, j model.Job, score int) error {
	args := []any{"score", score, "company", j.Company, "title", j.Title, "location", j.Location, "url", j.ApplyURL}
	if j.PostedAt != nil {
		args = append(args, "posted_at", *j.PostedAt)
	}
	n.logger.Info("job alert", args...)
	return nil
}

func (n *LogNotifier) SendStatusUpdate(_ context.Context, text string) error {
	n.logger.Info("status update", "text", text)
	return nil
}

func (n *LogNotifier) SendErrorAlert(_ context.Context, text string, fields map[string]string) error {
	args := []any{"text", text}
	for k, v := range fields {
		args = append(args, k, v)
	}
	n.logger.Error("error alert", args...)
	return nil
}
