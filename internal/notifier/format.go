package notifier

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Messages are rendered as Telegram-flavoured HTML; the log and Slack
// notifiers strip or reuse the plain parts.

// linkURL returns raw if it is an absolute http(s) URL, and "" otherwise.
// Only such links are rendered as anchors or buttons.
func linkURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	}
	return ""
}

func scoreBadge(score int) string {
	switch {
	case score >= 85:
		return "🔥"
	case score >= HighScoreThreshold:
		return "⭐"
	case score >= 60:
		return "👍"
	default:
		return "•"
	}
}

func formatDigestHTML(d model.Digest) string {
	var b strings.Builder
	label := html.EscapeString(d.CriteriaLabel)
	if d.Total == 0 {
		fmt.Fprintf(&b, "<b>📭 No new jobs</b> for <i>%s</i>\n", label)
		fmt.Fprintf(&b, "Run <code>%s</code>", html.EscapeString(shortID(d.RunID)))
		return b.String()
	}

	fmt.Fprintf(&b, "<b>📬 %d new job(s)</b> for <i>%s</i>\n", d.Total, label)
	fmt.Fprintf(&b, "High scores (≥%d): <b>%d</b> · Average: <b>%.0f</b>\n\n", HighScoreThreshold, d.HighScore, d.Average)
	for i, j := range d.Top {
		title := html.EscapeString(j.Title)
		if link := linkURL(j.ApplyURL); link != "" {
			title = fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(link), title)
		}
		fmt.Fprintf(&b, "%d. %s <b>%d</b> — %s @ %s\n",
			i+1, scoreBadge(j.ScoreValue()), j.ScoreValue(), title, html.EscapeString(j.Company))
	}
	if rest := d.Total - len(d.Top); rest > 0 {
		fmt.Fprintf(&b, "…and %d more\n", rest)
	}
	fmt.Fprintf(&b, "\nRun <code>%s</code>", html.EscapeString(shortID(d.RunID)))
	return b.String()
}

func formatAlertHTML(j model.Job, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%d/100</b> — <b>%s</b>\n", scoreBadge(score), score, html.EscapeString(j.Title))
	fmt.Fprintf(&b, "🏢 %s\n", html.EscapeString(j.Company))
	if j.Location != "" {
		fmt.Fprintf(&b, "📍 %s", html.EscapeString(j.Location))
		if j.Remote != "" && j.Remote != model.RemoteUnknown {
			fmt.Fprintf(&b, " (%s)", strings.ToLower(string(j.Remote)))
		}
		b.WriteString("\n")
	}
	if j.Salary != "" {
		fmt.Fprintf(&b, "💰 %s\n", html.EscapeString(j.Salary))
	}
	if len(j.TechStack) > 0 {
		fmt.Fprintf(&b, "🛠 %s\n", html.EscapeString(strings.Join(j.TechStack, ", ")))
	}
	if j.Rationale != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>\n", html.EscapeString(j.Rationale))
	}
	if len(j.Gaps) > 0 {
		fmt.Fprintf(&b, "Gaps: %s\n", html.EscapeString(strings.Join(j.Gaps, "; ")))
	}
	if link := linkURL(j.ApplyURL); link != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Apply</a>", html.EscapeString(link))
	}
	return b.String()
}

func formatStatusHTML(text string) string {
	return "ℹ️ " + html.EscapeString(text)
}

func formatErrorHTML(text string, fields map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>⚠️ %s</b>", html.EscapeString(text))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n<code>%s</code>: %s", html.EscapeString(k), html.EscapeString(fields[k]))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
