package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiagent/internal/domain"
)

// queryTimeout bounds one question end to end, sandbox run included.
const queryTimeout = 3 * time.Minute

// AgentPort is the TUI-facing subset of the agent.
type AgentPort interface {
	Mode() string
	Query(ctx context.Context, question string) (domain.QueryResponse, error)
}

// exchange is one answered question kept in the history.
type exchange struct {
	question string
	response domain.QueryResponse
}

// answerMsg carries the result of a query command back to Update.
type answerMsg struct {
	question string
	response domain.QueryResponse
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	agent    AgentPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	cursor   int
	summary  string
	status   string
	pending  bool
	ready    bool
}

// New creates a TUI over an agent whose corpus was already ingested.
func New(agent AgentPort, ingest domain.IngestResult) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the API and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	summary := ingest.Message
	if ingest.Summary != "" {
		summary += " " + ingest.Summary
	}
	return Model{
		agent:    agent,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   fmt.Sprintf("Ready (%s mode). Type a question.", agent.Mode()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.history = append(m.history, exchange{question: msg.question, response: msg.response})
		m.cursor = len(m.history) - 1
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.viewport.SetContent(m.renderCurrent())
		m.viewport.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = fmt.Sprintf("Asking %q", q)
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "up":
			if len(m.history) > 0 {
				m.cursor = (m.cursor - 1 + len(m.history)) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "down":
			if len(m.history) > 0 {
				m.cursor = (m.cursor + 1) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
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

func (m Model) ask(question string) tea.Cmd {
	agent := m.agent
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		resp, err := agent.Query(ctx, question)
		return answerMsg{question: question, response: resp, err: err}
	}
}

// View renders the TUI layout and the selected answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("API Documentation Agent")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.history) == 0 {
		return "No answers yet."
	}
	ex := m.history[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Answer %d/%d  %s\n\n", m.cursor+1, len(m.history), questionStyle.Render(ex.question))
	b.WriteString(ex.response.Explanation)
	if ex.response.GeneratedCode != "" {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Code"))
		b.WriteString("\n")
		b.WriteString(codeStyle.Render(ex.response.GeneratedCode))
	}
	if ex.response.ExecutionResult != nil {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Output"))
		b.WriteString("\n")
		b.WriteString(*ex.response.ExecutionResult)
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	codeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)
