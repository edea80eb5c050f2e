package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/derickschaefer/nimbus/internal/model"
)

// stateMsg carries a view state published by the orchestrator.
type stateMsg struct {
	state model.ViewState
}

// closedMsg is sent when the state subscription ends.
type closedMsg struct{}

// clockMsg refreshes relative times such as "5m ago".
type clockMsg time.Time

// waitForState blocks on the next published state.
func waitForState(ch <-chan model.ViewState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg{state: s}
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}
