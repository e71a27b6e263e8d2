package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the operator aborts an interactive view.
var ErrCancelled = errors.New("cancelled by user")

type spinDoneMsg struct{ err error }

type spinModel struct {
	label   string
	spinner spinner.Model
	run     func() error
	cancel  context.CancelFunc
	err     error
	done    bool
}

func (m spinModel) Init() tea.Cmd {
	run := m.run
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return spinDoneMsg{err: run()}
	})
}

func (m spinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.label + "\n"
}

// Spin runs fn while showing an inline spinner. ctrl+c cancels fn's context
// and returns ErrCancelled. Without a terminal it just runs fn.
func Spin(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	if !Interactive() {
		return fn(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := spinModel{
		label:   label,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(accent))),
		run:     func() error { return fn(ctx) },
		cancel:  cancel,
	}
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	return result.(spinModel).err
}
