// Package tui is the interactive terminal presenter for the weather view.
// It renders the orchestrator's published states and forwards key presses
// back to it as intents.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/derickschaefer/nimbus/internal/model"
	"github.com/derickschaefer/nimbus/internal/util"
)

// Engine is the part of the orchestrator the presenter drives.
type Engine interface {
	SelectLocation(sel model.Selector)
	Retry()
	RequestLocationPermission()
	Selected() model.Selector
	AvailableLocations() []model.Selector
}

// Permissions answers a pending location access request.
type Permissions interface {
	Grant()
	Deny()
}

// Model is the bubbletea model for `nimbus watch`.
type Model struct {
	engine    Engine
	perms     Permissions
	states    <-chan model.ViewState
	locations []model.Selector
	now       func() time.Time

	state    model.ViewState
	selected model.Selector
	spinner  spinner.Model
	width    int
	height   int
}

// NewModel creates a presenter reading states from the given subscription.
// perms may be nil when location access cannot be changed interactively.
func NewModel(engine Engine, perms Permissions, states <-chan model.ViewState) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		engine:    engine,
		perms:     perms,
		states:    states,
		locations: engine.AvailableLocations(),
		now:       time.Now,
		state:     model.StateIdle{},
		selected:  engine.Selected(),
		spinner:   s,
	}
}

// Init starts listening for states.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states), tickClock())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		m.state = msg.state
		m.selected = m.engine.Selected()
		return m, waitForState(m.states)

	case closedMsg:
		return m, tea.Quit

	case clockMsg:
		return m, tickClock()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "r":
		m.engine.Retry()
	case "p":
		m.engine.RequestLocationPermission()
	case "g":
		if m.perms != nil {
			m.perms.Grant()
		}
	case "d":
		if m.perms != nil {
			m.perms.Deny()
		}
	case "left", "h":
		m.selectAt(m.indexOf(m.selected) - 1)
	case "right", "l", "tab":
		m.selectAt(m.indexOf(m.selected) + 1)
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			i := int(key[0] - '1')
			if i < len(m.locations) {
				m.selectAt(i)
			}
		}
	}
	return m, nil
}

func (m *Model) selectAt(i int) {
	n := len(m.locations)
	if n == 0 {
		return
	}
	i = ((i % n) + n) % n
	m.selected = m.locations[i]
	m.engine.SelectLocation(m.selected)
}

func (m Model) indexOf(sel model.Selector) int {
	for i, s := range m.locations {
		if s == sel {
			return i
		}
	}
	return 0
}

// View renders the UI
func (m Model) View() string {
	var body string
	switch st := m.state.(type) {
	case model.StateLoading:
		body = fmt.Sprintf("%s Fetching weather for %s...", m.spinner.View(), m.selected.DisplayName())
	case model.StateLoaded:
		body = m.viewSnapshot(st)
	case model.StateError:
		body = m.viewError(st)
	default:
		body = mutedStyle.Render("Select a location to see its weather.")
	}

	pane := paneStyle
	if m.width > 4 {
		pane = pane.Width(m.width - 4)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("nimbus"),
		m.viewTabs(),
		pane.Render(body),
		m.viewHelp(),
	)
}

func (m Model) viewTabs() string {
	tabs := make([]string, 0, len(m.locations))
	for i, sel := range m.locations {
		label := fmt.Sprintf("%d %s %s", i+1, sel.Flag(), sel.DisplayName())
		if sel == m.selected {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

const maxConditionWidth = 32

func (m Model) viewSnapshot(st model.StateLoaded) string {
	s := st.Snapshot
	now := m.now()
	daytime := s.IsDaytime(now)
	cat := s.Category()

	place := s.Place
	if s.Country != "" {
		place += ", " + s.Country
	}
	header := accentStyle(cat, daytime).Render(
		fmt.Sprintf("%s  %s  %s", conditionIcon(cat, daytime), place, util.FormatTemp(s.Temp)))

	rows := [][2]string{
		{"Conditions", util.Truncate(util.Title(s.Description), maxConditionWidth)},
		{"Feels like", util.FormatTemp(s.FeelsLike)},
		{"Low / High", util.FormatTemp(s.TempMin) + " / " + util.FormatTemp(s.TempMax)},
		{"Humidity", fmt.Sprintf("%d%%", s.Humidity)},
		{"Pressure", fmt.Sprintf("%d hPa", s.Pressure)},
		{"Wind", util.FormatWind(s.WindSpeed)},
		{"Sunrise", util.FormatClock(s.Sunrise, s.TimezoneOffset)},
		{"Sunset", util.FormatClock(s.Sunset, s.TimezoneOffset)},
	}
	lines := []string{header, ""}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+valueStyle.Render(r[1]))
	}

	updated := "Updated " + util.FormatAge(now, s.FetchedAt)
	if st.Stale {
		lines = append(lines, "", staleStyle.Render(m.spinner.View()+" "+updated+", refreshing"))
	} else {
		lines = append(lines, "", mutedStyle.Render(updated))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewError(st model.StateError) string {
	lines := []string{
		errorStyle.Render(st.Message),
		mutedStyle.Render(st.Reason.Suggestion()),
	}
	if st.Reason == model.ReasonLocationDenied && m.perms != nil {
		lines = append(lines, "", "Press g to grant location access.")
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewHelp() string {
	keys := []string{"1-4/←→ location", "r retry"}
	if m.selected == model.CurrentPosition {
		keys = append(keys, "p request location")
		if m.perms != nil {
			keys = append(keys, "g/d grant/deny")
		}
	}
	keys = append(keys, "q quit")
	return helpStyle.Render(strings.Join(keys, " • "))
}
