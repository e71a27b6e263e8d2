package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	sectionStyle     = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

// SessionInfo is what the status screen shows about authentication.
type SessionInfo struct {
	Present   bool
	Usable    bool
	ExpiresAt time.Time
	Age       time.Duration
}

// LockInfo describes the current lock holder, if any.
type LockInfo struct {
	Held      bool
	PID       int
	StartedAt time.Time
}

// StatusReport is everything `jobagent status` prints.
type StatusReport struct {
	Session  SessionInfo
	Lock     LockInfo
	Counts   model.StoreStats
	Runs     []model.JobRun
	Criteria []model.JobCriteria
	Now      time.Time
}

// RenderStatus draws the status screen.
func RenderStatus(r StatusReport) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Session") + "\n")
	b.WriteString(renderSession(r.Session, r.Now) + "\n")

	b.WriteString(sectionStyle.Render("Lock") + "\n")
	if r.Lock.Held {
		fmt.Fprintf(&b, "held by pid %d for %s\n", r.Lock.PID, r.Now.Sub(r.Lock.StartedAt).Round(time.Second))
	} else {
		b.WriteString("free\n")
	}

	b.WriteString(sectionStyle.Render("Store") + "\n")
	b.WriteString(CountsTable(r.Counts) + "\n")

	b.WriteString(sectionStyle.Render("Criteria") + "\n")
	b.WriteString(CriteriaTable(r.Criteria) + "\n")

	b.WriteString(sectionStyle.Render("Recent runs") + "\n")
	if len(r.Runs) == 0 {
		b.WriteString(hintStyle.Render("no runs yet") + "\n")
	} else {
		b.WriteString(RunsTable(r.Runs, r.Now) + "\n")
	}
	return b.String()
}

func renderSession(s SessionInfo, now time.Time) string {
	switch {
	case !s.Present:
		return errorStyle.Render("not authenticated") + hintStyle.Render("  run `jobagent auth`")
	case !s.Usable:
		return errorStyle.Render("expired "+s.ExpiresAt.Local().Format(time.DateTime)) + hintStyle.Render("  run `jobagent auth --force`")
	default:
		return lipgloss.NewStyle().Foreground(green).Render("valid") +
			fmt.Sprintf(" until %s (%s left, created %s ago)",
				s.ExpiresAt.Local().Format(time.DateTime),
				s.ExpiresAt.Sub(now).Round(time.Minute),
				s.Age.Round(time.Minute))
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(dim)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

// RunsTable lists runs as given (newest first from the store).
func RunsTable(runs []model.JobRun, now time.Time) string {
	t := newTable("Run", "Criteria", "Started", "Duration", "Found", "Processed", "Scored", "Status")
	for _, r := range runs {
		status := string(r.Status)
		if len(r.Errors) > 0 {
			status += ": " + truncate(r.Errors[len(r.Errors)-1], 40)
		}
		t.Row(
			shortRunID(r.ID),
			r.CriteriaID,
			r.StartedAt.Local().Format("01-02 15:04"),
			r.Duration(now).Round(time.Second).String(),
			strconv.Itoa(r.JobsFound),
			strconv.Itoa(r.JobsProcessed),
			strconv.Itoa(r.JobsScored),
			status,
		)
	}
	return t.String()
}

// CountsTable shows how many records each namespace holds.
func CountsTable(st model.StoreStats) string {
	t := newTable("Jobs", "Runs", "Scores", "Seen")
	t.Row(strconv.Itoa(st.Jobs), strconv.Itoa(st.Runs), strconv.Itoa(st.Scores), strconv.Itoa(st.Seen))
	return t.String()
}

// CriteriaTable lists the configured searches.
func CriteriaTable(criteria []model.JobCriteria) string {
	t := newTable("ID", "Label", "Keywords", "Location", "Enabled")
	for _, c := range criteria {
		enabled := "yes"
		if !c.Enabled {
			enabled = "no"
		}
		t.Row(c.ID, c.DisplayName(), strings.Join(c.Keywords, ", "), c.Location, enabled)
	}
	return t.String()
}

// JobsTable lists jobs with their scores, for `score` and `send` output.
func JobsTable(jobs []model.Job) string {
	t := newTable("Score", "Title", "Company", "Location", "Remote")
	for _, j := range jobs {
		score := "-"
		if j.Score != nil {
			score = strconv.Itoa(*j.Score)
		}
		t.Row(score, truncate(j.Title, 48), truncate(j.Company, 28), truncate(j.Location, 24), string(j.Remote))
	}
	return t.String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
