package tui

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#1F4E79", Dark: "#7AB8F5"}
	OnColor      = lipgloss.AdaptiveColor{Light: "#1E7B34", Dark: "#5FD068"}
	OffColor     = lipgloss.AdaptiveColor{Light: "#A61B1B", Dark: "#F25F5C"}
	SubtleColor  = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#8A8F98"}
	BorderColor  = lipgloss.AdaptiveColor{Light: "#B0B7C3", Dark: "#3B4252"}

	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(12)

	OnStyle = lipgloss.NewStyle().
		Foreground(OnColor).
		Bold(true)

	OffStyle = lipgloss.NewStyle().
			Foreground(OffColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(OffColor)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			PaddingTop(1)
)
