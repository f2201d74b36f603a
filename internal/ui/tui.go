// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the decode server dashboard
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run creates the dashboard program. The caller runs it and feeds it StatusMsg
// values; quit receives a value when the user asks to stop.
func Run(name string, port int, quit chan<- struct{}) (*tea.Program, error) {
	m := NewModel(name, port, quit)
	m.startTime = time.Now()
	return tea.NewProgram(m, tea.WithAltScreen()), nil
}
