// ABOUTME: Bubbletea model for the decode server dashboard
// ABOUTME: Tracks live sessions and renders their formats and counters
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sendspin/packetdec/internal/version"
	"github.com/Sendspin/packetdec/pkg/server"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("220"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// StatusMsg carries a snapshot of the server
type StatusMsg struct {
	Codecs   []string
	Sessions []server.SessionInfo
}

type tickMsg time.Time

// Model represents the dashboard state
type Model struct {
	name      string
	port      int
	codecs    []string
	sessions  []server.SessionInfo
	startTime time.Time

	// Totals over sessions that have since closed are not kept
	decoded uint64
	failed  uint64

	showDebug bool
	quitting  bool
	quit      chan<- struct{}

	width  int
	height int
}

// NewModel creates a dashboard model
func NewModel(name string, port int, quit chan<- struct{}) Model {
	return Model{
		name:     name,
		port:     port,
		quit:     quit,
		sessions: []server.SessionInfo{},
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quit != nil {
			select {
			case m.quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}
	return m, nil
}

// applyStatus replaces the session snapshot
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Codecs != nil {
		m.codecs = msg.Codecs
	}
	m.sessions = msg.Sessions

	m.decoded, m.failed = 0, 0
	for _, s := range m.sessions {
		m.decoded += s.Stats.Decoded
		m.failed += s.Stats.Failed
	}
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version)))
	b.WriteString("\n\n")

	m.renderField(&b, "Server: ", m.name)
	m.renderField(&b, "Port: ", fmt.Sprintf("%d", m.port))
	if !m.startTime.IsZero() {
		m.renderField(&b, "Uptime: ", time.Since(m.startTime).Round(time.Second).String())
	}
	m.renderField(&b, "Codecs: ", strings.Join(m.codecs, ", "))
	m.renderField(&b, "Frames: ", fmt.Sprintf("%d decoded, %d failed", m.decoded, m.failed))
	b.WriteString("\n")

	b.WriteString(sessionHeaderStyle.Render(fmt.Sprintf("Sessions (%d)", len(m.sessions))))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(valueStyle.Render("  No sessions open"))
		b.WriteString("\n")
	}
	for _, s := range m.sessions {
		b.WriteString(m.renderSession(s))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit  d: toggle session IDs"))

	return b.String()
}

func (m Model) renderField(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderSession renders one session line
func (m Model) renderSession(s server.SessionInfo) string {
	line := fmt.Sprintf("  • %s ", s.Client)
	line += valueStyle.Render(fmt.Sprintf("(%s %dHz/%dch) decoded %d, queued %d",
		s.Codec, s.SampleRate, s.Channels, s.Stats.Decoded, s.Pending))

	if s.Stats.Failed > 0 {
		line += " " + failStyle.Render(fmt.Sprintf("failed %d", s.Stats.Failed))
	}
	if m.showDebug {
		line += helpStyle.Render(fmt.Sprintf("  [%s, open %s]", s.ID, time.Since(s.Opened).Round(time.Second)))
	}
	return line
}
