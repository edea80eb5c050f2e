package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/derickschaefer/nimbus/internal/model"
)

var (
	// Color palette
	colorPrimary = lipgloss.Color("#00BFFF") // Deep sky blue
	colorDanger  = lipgloss.Color("#FF6B6B") // Red for errors
	colorWarning = lipgloss.Color("#FFD93D") // Yellow for stale data
	colorMuted   = lipgloss.Color("#6C757D") // Gray
	colorBorder  = lipgloss.Color("#4A90E2") // Border blue

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colorMuted)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	staleStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(1, 0)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// categoryColors is the accent per condition family, split by day and night.
var categoryColors = map[model.Category][2]lipgloss.Color{
	model.CategoryThunderstorm: {"#7B68EE", "#483D8B"},
	model.CategoryDrizzle:      {"#87CEEB", "#4682B4"},
	model.CategoryRain:         {"#4A90E2", "#27408B"},
	model.CategorySnow:         {"#F0F8FF", "#B0C4DE"},
	model.CategoryAtmosphere:   {"#C0C0C0", "#808080"},
	model.CategoryClear:        {"#FFD93D", "#191970"},
	model.CategoryClouds:       {"#B0BEC5", "#546E7A"},
	model.CategoryUnknown:      {"#6C757D", "#6C757D"},
}

var categoryIcons = map[model.Category][2]string{
	model.CategoryThunderstorm: {"⛈", "⛈"},
	model.CategoryDrizzle:      {"🌦", "🌧"},
	model.CategoryRain:         {"🌧", "🌧"},
	model.CategorySnow:         {"❄", "❄"},
	model.CategoryAtmosphere:   {"🌫", "🌫"},
	model.CategoryClear:        {"☀", "☾"},
	model.CategoryClouds:       {"☁", "☁"},
	model.CategoryUnknown:      {"?", "?"},
}

func dayIndex(daytime bool) int {
	if daytime {
		return 0
	}
	return 1
}

// accentStyle returns the title style for a snapshot's conditions.
func accentStyle(c model.Category, daytime bool) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(categoryColors[c][dayIndex(daytime)])
}

func conditionIcon(c model.Category, daytime bool) string {
	return categoryIcons[c][dayIndex(daytime)]
}
