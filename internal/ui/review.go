package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Lines per job in a list pane (title, subtitle, blank separator).
const jobItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(accent)

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(dim)

	paneHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	jobTitleStyle    = lipgloss.NewStyle().Bold(true)
	jobSubtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accent).
				Width(12)

	dividerStyle = lipgloss.NewStyle().Foreground(dim)
	bodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// reviewModel shows stored jobs in two panes: matches (score at or above
// the minimum) and everything stored for the criteria. Enter opens a
// read-only detail view.
type reviewModel struct {
	title    string
	minScore int
	panes    [2][]model.Job // 0 = matches, 1 = all
	cursors  [2]int
	vps      [2]viewport.Model
	active   int
	width    int
	height   int
	ready    bool

	view            viewState
	detail          model.Job
	detailViewport  viewport.Model
	showDescription bool

	quit bool
}

func newReviewModel(title string, jobs []model.Job, minScore int) reviewModel {
	all := append([]model.Job(nil), jobs...)
	sortByScore(all)
	var matches []model.Job
	for _, j := range all {
		if j.ScoreValue() >= minScore {
			matches = append(matches, j)
		}
	}
	m := reviewModel{title: title, minScore: minScore}
	m.panes[0] = matches
	m.panes[1] = all
	return m
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil
	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m reviewModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quit = true
		return m, tea.Quit
	case "tab", "left", "right", "h", "l":
		m.active = 1 - m.active
		m.refresh()
		return m, nil
	case "up", "k":
		m.move(-1)
		return m, nil
	case "down", "j":
		m.move(1)
		return m, nil
	case "enter":
		return m.openDetail()
	}

	var cmd tea.Cmd
	m.vps[m.active], cmd = m.vps[m.active].Update(msg)
	return m, cmd
}

func (m reviewModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detail.ApplyURL)
		return m, nil
	case "r":
		if m.detail.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *reviewModel) move(delta int) {
	jobs := m.panes[m.active]
	m.cursors[m.active] = clamp(m.cursors[m.active]+delta, 0, max(len(jobs)-1, 0))
	m.refresh()

	vp := &m.vps[m.active]
	top := m.cursors[m.active] * jobItemHeight
	bottom := top + jobItemHeight - 1
	if top < vp.YOffset {
		vp.SetYOffset(top)
	} else if bottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(bottom - vp.Height + 1)
	}
}

func (m reviewModel) openDetail() (tea.Model, tea.Cmd) {
	jobs := m.panes[m.active]
	if len(jobs) == 0 {
		return m, nil
	}
	m.view = viewDetail
	m.detail = jobs[m.cursors[m.active]]
	m.showDescription = false
	m.detailViewport = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) layout() {
	// Two bordered panes with a one-column gap.
	paneWidth := max((m.width-5)/2, 20)
	// Header, borders and status bar take four lines.
	paneHeight := max(m.height-4, 5)

	for i := range m.vps {
		if !m.ready {
			m.vps[i] = viewport.New(paneWidth, paneHeight)
			continue
		}
		m.vps[i].Width = paneWidth
		m.vps[i].Height = paneHeight
	}
	m.ready = true
	m.refresh()
}

func (m *reviewModel) refresh() {
	for i := range m.vps {
		m.vps[i].SetContent(renderJobList(m.panes[i], m.cursors[i], m.active == i))
	}
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m reviewModel) viewList() string {
	paneWidth := m.vps[0].Width
	labels := [2]string{
		fmt.Sprintf("Matches ≥ %d (%d)", m.minScore, len(m.panes[0])),
		fmt.Sprintf("All stored (%d)", len(m.panes[1])),
	}

	var headers, panes [2]string
	for i := range labels {
		header := paneHeaderStyle.Foreground(dim)
		border := inactiveBorderStyle
		if i == m.active {
			header = paneHeaderStyle.Foreground(accent)
			border = activeBorderStyle
		}
		headers[i] = lipgloss.NewStyle().Width(paneWidth + 2).Render(header.Render(labels[i]))
		panes[i] = border.Width(paneWidth).Render(m.vps[i].View())
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top, headers[0], " ", headers[1])
	paneRow := lipgloss.JoinHorizontal(lipgloss.Top, panes[0], " ", panes[1])
	status := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("%s   tab switch  ↑/↓ move  enter detail  q quit", m.title))

	return headerRow + "\n" + paneRow + "\n" + status
}

func (m reviewModel) viewDetail() string {
	title := titleStyle.Render(m.detail.Title)
	content := activeBorderStyle.Width(max(m.width-2, 20)).Render(m.detailViewport.View())
	hint := " o open apply URL  esc back  ↑/↓ scroll  q quit"
	if m.detail.Description != "" {
		hint = " o open apply URL  r description  esc back  ↑/↓ scroll  q quit"
	}
	return title + "\n" + content + "\n" + statusBarStyle.Width(m.width).Render(hint)
}

func (m reviewModel) renderDetail() string {
	j := m.detail
	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label) + value + "\n")
	}

	score := "unscored"
	if j.Score != nil {
		score = scoreStyle(*j.Score).Render(strconv.Itoa(*j.Score))
	}
	field("Score", score)
	field("Company", j.Company)
	field("Location", j.Location)
	field("Remote", string(j.Remote))
	field("Seniority", string(j.Seniority))
	field("Type", string(j.Employment))
	field("Salary", j.Salary)
	if j.PostedAt != nil {
		field("Posted", j.PostedAt.Local().Format("2006-01-02 15:04"))
	}
	field("Stack", strings.Join(j.TechStack, ", "))
	field("Languages", strings.Join(j.Languages, ", "))
	field("Job ID", j.ID)
	field("Apply", j.ApplyURL)

	wrap := max(m.width-8, 20)
	divider := func(label string) string {
		return dividerStyle.Render(label + strings.Repeat("─", max(wrap-len(label), 3)))
	}

	if j.Rationale != "" || len(j.Gaps) > 0 {
		b.WriteString("\n" + divider("── Fit ") + "\n\n")
		if j.Rationale != "" {
			b.WriteString(bodyStyle.Render(wordWrap(j.Rationale, wrap)) + "\n")
		}
		for _, g := range j.Gaps {
			b.WriteString(errorStyle.Render("  ✗ ") + g + "\n")
		}
	}

	if j.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(j.Description, wrap)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the description") + "\n")
		}
	}
	return b.String()
}

func renderJobList(jobs []model.Job, cursor int, active bool) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}
	var b strings.Builder
	for i, j := range jobs {
		title, sub, prefix := jobTitleStyle, jobSubtitleStyle, "  "
		if active && i == cursor {
			title, sub, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		score := " --"
		if j.Score != nil {
			score = fmt.Sprintf("%3d", *j.Score)
		}
		b.WriteString(prefix + scoreStyle(j.ScoreValue()).Render(score) + " " + title.Render(j.Title) + "\n")

		posted := "n/a"
		if j.PostedAt != nil {
			posted = j.PostedAt.Format(time.DateOnly)
		}
		b.WriteString(prefix + "    " + sub.Render(fmt.Sprintf("%s · %s · %s", j.Company, j.Location, posted)) + "\n")
		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// sortByScore orders jobs best first; unscored jobs go last, newest first.
func sortByScore(jobs []model.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		sa, sb := jobs[a].ScoreValue(), jobs[b].ScoreValue()
		if sa != sb {
			return sa > sb
		}
		pa, pb := jobs[a].PostedAt, jobs[b].PostedAt
		switch {
		case pa == nil:
			return false
		case pb == nil:
			return true
		default:
			return pa.After(*pb)
		}
	})
}

func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunReview opens the review browser on the alt screen.
func RunReview(title string, jobs []model.Job, minScore int) error {
	_, err := tea.NewProgram(newReviewModel(title, jobs, minScore), tea.WithAltScreen()).Run()
	return err
}
