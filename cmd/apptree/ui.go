package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	dim    = lipgloss.Color("243")
	faded  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	faintStyle   = lipgloss.NewStyle().Foreground(faded)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

func bold(s string) string  { return boldStyle.Render(s) }
func muted(s string) string { return mutedStyle.Render(s) }
func faint(s string) string { return faintStyle.Render(s) }

func modeLabel(mode string) string {
	if mode == "thread" {
		return accentStyle.Render("[" + mode + "]")
	}
	return successStyle.Render("[" + mode + "]")
}

func successMsg(format string, a ...any) string {
	return successStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func errorMsg(format string, a ...any) string {
	return errorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}
