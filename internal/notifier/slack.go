package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends digests and alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts Block Kit messages to webhookURL.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (s *SlackNotifier) SendJobDigest(ctx context.Context, d model.Digest) error {
	return s.send(ctx, digestBlocks(d))
}

func (s *SlackNotifier) SendJobAlert(ctx context.Context, job model.Job, score int) error {
	return s.send(ctx, alertBlocks(job, score))
}

func (s *SlackNotifier) SendStatusUpdate(ctx context.Context, text string) error {
	return s.send(ctx, []slackBlock{{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "ℹ️ " + text}}})
}

func (s *SlackNotifier) SendErrorAlert(ctx context.Context, text string, fields map[string]string) error {
	blocks := []slackBlock{{Type: "header", Text: &slackText{Type: "plain_text", Text: "⚠️ " + text}}}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		section := slackBlock{Type: "section"}
		for _, k := range keys {
			section.Fields = append(section.Fields, slackText{Type: "mrkdwn", Text: "*" + k + ":*\n" + fields[k]})
		}
		blocks = append(blocks, section)
	}
	return s.send(ctx, blocks)
}

func (s *SlackNotifier) send(ctx context.Context, blocks []slackBlock) error {
	body, err := json.Marshal(slackPayload{Blocks: blocks})
	if err != nil {
		return model.NewError(model.StageNotify, model.KindAPIError, "marshal slack payload", err)
	}

	retryAfter, err := s.post(ctx, body)
	if err == nil || retryAfter <= 0 {
		return err
	}

	s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
	select {
	case <-ctx.Done():
		return model.NewError(model.StageNotify, model.KindRateLimited, "waiting for slack rate limit", ctx.Err())
	case <-time.After(retryAfter):
	}
	_, err = s.post(ctx, body)
	return err
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, model.NewError(model.StageNotify, model.KindAPIError, "create slack request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, model.NewError(model.StageNotify, model.KindNetwork, "post to slack", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return 0, nil
	case http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		wait := time.Duration(secs) * time.Second
		return wait, model.NewError(model.StageNotify, model.KindRateLimited, "slack webhook",
			&model.HTTPError{StatusCode: resp.StatusCode, RetryAfter: wait})
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return 0, model.NewError(model.StageNotify, model.KindInvalidToken, "slack webhook",
			&model.HTTPError{StatusCode: resp.StatusCode})
	default:
		return 0, model.NewError(model.StageNotify, model.KindAPIError, "slack webhook",
			&model.HTTPError{StatusCode: resp.StatusCode})
	}
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url,omitempty"`
	Style string    `json:"style,omitempty"`
}

func digestBlocks(d model.Digest) []slackBlock {
	if d.Total == 0 {
		return []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("📭 *No new jobs* for _%s_ (run `%s`)", d.CriteriaLabel, shortID(d.RunID))}},
		}
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("📬 %d new job(s): %s", d.Total, d.CriteriaLabel)}},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*High scores (≥%d):*\n%d", HighScoreThreshold, d.HighScore)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Average:*\n%.0f", d.Average)},
			},
		},
	}

	var lines []string
	for i, j := range d.Top {
		title := j.Title
		if link := linkURL(j.ApplyURL); link != "" {
			title = fmt.Sprintf("<%s|%s>", link, j.Title)
		}
		lines = append(lines, fmt.Sprintf("%d. %s *%d* %s @ %s", i+1, scoreBadge(j.ScoreValue()), j.ScoreValue(), title, j.Company))
	}
	if rest := d.Total - len(d.Top); rest > 0 {
		lines = append(lines, fmt.Sprintf("…and %d more", rest))
	}
	if len(lines) > 0 {
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")}})
	}
	return append(blocks, slackBlock{Type: "divider"})
}

func alertBlocks(j model.Job, score int) []slackBlock {
	postedText := "Unknown"
	if j.PostedAt != nil {
		postedText = j.PostedAt.UTC().Format(time.RFC1123)
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("%s %d/100 %s: %s", scoreBadge(score), score, j.Company, j.Title)},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Location:*\n" + j.Location},
				{Type: "mrkdwn", Text: "*Remote:*\n" + strings.ToLower(string(j.Remote))},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Posted:*\n" + postedText},
				{Type: "mrkdwn", Text: "*Stack:*\n" + strings.Join(j.TechStack, ", ")},
			},
		},
	}

	if j.Rationale != "" {
		text := "_" + j.Rationale + "_"
		if len(j.Gaps) > 0 {
			text += "\n*Gaps:* " + strings.Join(j.Gaps, "; ")
		}
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}})
	}

	if link := linkURL(j.ApplyURL); link != "" {
		blocks = append(blocks, slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Apply Now"},
					URL:   link,
					Style: "primary",
				},
			},
		})
	}
	return append(blocks, slackBlock{Type: "divider"})
}
