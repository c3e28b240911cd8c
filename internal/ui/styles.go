package ui

import "github.com/charmbracelet/lipgloss"

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	titleStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true)
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			PaddingLeft(1)
	sidebarHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	priceStyle         = lipgloss.NewStyle().Bold(true)
	upStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	errorToastStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	infoToastStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)
