// Package tui is the interactive terminal chat over a document.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/util"
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Info describes the session in the header.
type Info struct {
	Document string
	Backend  string
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleError
)

type entry struct {
	role    role
	content string
}

// answerMsg carries the reply for the question asked at the same seq.
type answerMsg struct {
	seq     int
	text    string
	err     error
	elapsed time.Duration
}

type tickMsg time.Time

// model is the Bubble Tea model for the chat screen.
type model struct {
	ctx       context.Context
	asker     Asker
	info      Info
	textArea  textarea.Model
	viewport  viewport.Model
	spinner   spinner.Model
	history   []entry
	isLoading bool
	seq       int
	lastTook  time.Duration
	started   time.Time
	width     int
	height    int
}

func newModel(ctx context.Context, asker Asker, info Info) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask about the document..."
	ta.Focus()
	ta.Prompt = "Question: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &model{
		ctx:      ctx,
		asker:    asker,
		info:     info,
		textArea: ta,
		viewport: viewport.New(100, 5),
		spinner:  s,
	}
}

func askCmd(ctx context.Context, asker Asker, seq int, question string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		logging.LogEvent("[TUI] Asking: %s", util.Snippet(question, 120))
		text, err := asker.Ask(ctx, question)
		return answerMsg{seq: seq, text: text, err: err, elapsed: time.Since(start)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.isLoading {
				return m, nil
			}
			question := strings.TrimSpace(m.textArea.Value())
			if question == "" {
				return m, nil
			}
			m.history = append(m.history, entry{role: roleUser, content: question})
			m.textArea.Reset()
			m.isLoading = true
			m.seq++
			m.started = time.Now()
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, tickCmd(), askCmd(m.ctx, m.asker, m.seq, question))
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := 3
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.refresh()

	case answerMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.isLoading = false
		m.lastTook = msg.elapsed
		if msg.err != nil {
			m.history = append(m.history, entry{role: roleError, content: msg.err.Error()})
		} else {
			m.history = append(m.history, entry{role: roleAssistant, content: msg.text})
		}
		m.textArea.Focus()
		m.refresh()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.isLoading {
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// refresh re-renders the transcript into the viewport.
func (m *model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *model) transcript() string {
	userStyle := lipgloss.NewStyle().Bold(true)
	assistantStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	errorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	var b strings.Builder
	for i, e := range m.history {
		var label string
		switch e.role {
		case roleUser:
			label = userStyle.Render("You: ")
		case roleAssistant:
			label = assistantStyle.Render("Assistant: ")
		default:
			label = errorStyle.Render("Error: ")
		}
		width := m.width - lipgloss.Width(label) - 2
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, util.WrapToWidth(e.content, width)))
		if i < len(m.history)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("RAG Bot:"),
		headerStyle.Render(fmt.Sprintf("Document: %s", m.info.Document)),
		headerStyle.MarginLeft(1).Render(fmt.Sprintf("Backend: %s", m.info.Backend)),
	)
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(" (enter to ask, esc to quit)")

	var b strings.Builder
	b.WriteString(header + help + "\n\n")
	b.WriteString(m.viewport.View())

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.started).Seconds())
		b.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Searching the document... %ss", timer))
	} else {
		b.WriteString("\n" + m.textArea.View())
		if m.lastTook > 0 {
			b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(fmt.Sprintf("  >>> [Answered in %.1fs]", m.lastTook.Seconds())))
		}
	}
	return b.String()
}

// Run starts the chat UI and blocks until the user quits.
func Run(ctx context.Context, asker Asker, info Info) error {
	m := newModel(ctx, asker, info)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
