package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github/itish2003/studybuddy/services"
)

// Asker is the TUI-facing subset of the pipeline, bound to one session.
type Asker interface {
	Ask(ctx context.Context, question string) (*services.Answer, error)
}

type turn struct {
	question string
	answer   *services.Answer
	err      error
}

type answerMsg struct {
	question string
	answer   *services.Answer
	err      error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	asker    Asker
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	history  []turn
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model. summary is shown under the header, e.g. how
// many chunks were indexed.
func New(asker Asker, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your material and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		asker:    asker,
		timeout:  timeout,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready. Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		answer, err := m.asker.Ask(ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	case answerMsg:
		m.busy = false
		m.history = append(m.history, turn{question: msg.question, answer: msg.answer, err: msg.err})
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered using %d source(s).", len(msg.answer.RetrievedChunks))
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.input.Reset()
			return m, m.ask(q)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, conversation, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Study Buddy")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.question))
		b.WriteString("\n")
		if t.err != nil {
			b.WriteString(errorStyle.Render(t.err.Error()))
			continue
		}
		b.WriteString(t.answer.Text)
		for _, rc := range t.answer.RetrievedChunks {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render(fmt.Sprintf("  [%.3f] %s #%d", rc.Score, rc.Chunk.Source, rc.Chunk.Index)))
		}
	}
	return b.String()
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
