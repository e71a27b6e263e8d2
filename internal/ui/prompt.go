package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

var promptBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(accent).
	Padding(0, 1)

type promptModel struct {
	loginURL   string
	cookieName string
	input      textinput.Model
	value      string
	cancelled  bool
}

func newPromptModel(loginURL, cookieName string) promptModel {
	ti := textinput.New()
	ti.Placeholder = cookieName + " value"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 4096
	ti.Focus()
	return promptModel{loginURL: loginURL, cookieName: cookieName, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.value = strings.TrimSpace(m.input.Value())
			if m.value == "" {
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Login required") + "\n\n")
	fmt.Fprintf(&b, "1. Open %s in your browser and sign in.\n", m.loginURL)
	fmt.Fprintf(&b, "2. Copy the %q cookie from the browser's developer tools.\n", m.cookieName)
	b.WriteString("3. Paste it below.\n\n")
	b.WriteString(m.input.View() + "\n\n")
	b.WriteString(hintStyle.Render("enter submit  esc cancel"))
	return promptBoxStyle.Render(b.String()) + "\n"
}

// CookiePrompt returns an interactive prompt for the site's session cookie.
// The prompt gives up when ctx ends and returns ctx.Err().
func CookiePrompt(loginURL, cookieName string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if !Interactive() {
			return "", model.NewError(model.StageAuth, model.KindAuthFailed,
				"interactive login needs a terminal; run `jobagent auth` from a shell first", nil)
		}
		result, err := tea.NewProgram(newPromptModel(loginURL, cookieName), tea.WithContext(ctx)).Run()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		final := result.(promptModel)
		if final.cancelled {
			return "", ErrCancelled
		}
		return final.value, nil
	}
}
