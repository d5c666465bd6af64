package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

type field struct {
	label string
	value any
}

func renderPanel(title string, fields []field) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(f.label))
		b.WriteString(valueStyle.Render(fmt.Sprint(f.value)))
	}

	return panelStyle.Render(b.String())
}

func renderStatus(ok bool, text string) string {
	if ok {
		return okStyle.Render("✓ " + text)
	}

	return warnStyle.Render("! " + text)
}
