package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"termsense/internal/monitor"
)

var (
	separator   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")).Render(" · ")
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#61afef"))
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98c379"))
	unseenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e5c07b")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#23d18b"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f14c4c"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func colored(hex, text string) string {
	if hex == "" {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(text)
}

// renderStatus formats a session view as a one-line status.
func renderStatus(v monitor.View) string {
	var parts []string

	if v.Assistant != "" {
		name := strings.TrimSpace(v.AssistantIcon + " " + v.AssistantName)
		state := strings.TrimSpace(v.StateIcon + " " + v.StateLabel)
		parts = append(parts, colored(v.AssistantColor, name), colored(v.StateColor, state))
	}

	activity := v.ActivityLabel
	if v.Intensity > 0 {
		activity = fmt.Sprintf("%s %d%%", activity, v.Intensity)
	}
	parts = append(parts, colored(v.ActivityColor, activity))

	if v.OutputLabel != "" {
		parts = append(parts, colored(v.OutputColor, v.OutputLabel))
	}

	if v.ShortCwd != "" {
		cwd := pathStyle.Render(v.ShortCwd)
		if v.GitBranch != "" {
			branch := v.GitBranch
			if v.GitDirty > 0 {
				branch = fmt.Sprintf("%s *%d", branch, v.GitDirty)
			}
			cwd += " " + branchStyle.Render("("+branch+")")
		}
		parts = append(parts, cwd)
	}

	line := strings.Join(parts, separator)
	if v.Unseen {
		line = unseenStyle.Render("●") + " " + line
	}
	return line
}

func mark(ok bool) string {
	if ok {
		return okStyle.Render("✓")
	}
	return failStyle.Render("✗")
}
