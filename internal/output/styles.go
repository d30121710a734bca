package output

import "github.com/charmbracelet/lipgloss"

// Shared lipgloss styles for user-facing text.
var (
	BoldStyle   = lipgloss.NewStyle().Bold(true)
	CyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	BrandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	GreenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	YellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	DimStyle    = lipgloss.NewStyle().Faint(true)
)
