// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veloxar/arxval/services/validator/validate"
)

// =============================================================================
// Model
// =============================================================================

// findingsModel is the bubbletea model for browsing validation findings.
//
// Single-threaded: all state lives inside the bubbletea event loop.
type findingsModel struct {
	scriptName string
	result     *validate.Result

	cursor int

	viewport viewport.Model
	width    int
	height   int

	ready    bool
	quitting bool
}

func newFindingsModel(scriptName string, result *validate.Result) findingsModel {
	return findingsModel{
		scriptName: scriptName,
		result:     result,
	}
}

// Init implements tea.Model.
func (m findingsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m findingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}

		m.updateViewportContent()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "j", "down":
			if m.cursor < len(m.result.Findings)-1 {
				m.cursor++
				m.updateViewportContent()
			}

		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
				m.updateViewportContent()
			}

		case "g", "home":
			m.cursor = 0
			m.updateViewportContent()
			m.viewport.GotoTop()

		case "G", "end":
			if len(m.result.Findings) > 0 {
				m.cursor = len(m.result.Findings) - 1
			}
			m.updateViewportContent()
			m.viewport.GotoBottom()

		case "ctrl+d":
			m.viewport.HalfViewDown()

		case "ctrl+u":
			m.viewport.HalfViewUp()
		}
	}

	// Update viewport
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m findingsModel) View() string {
	if m.quitting {
		return ""
	}

	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// =============================================================================
// Rendering
// =============================================================================

func (m findingsModel) renderHeader() string {
	title := browserTitleStyle.Render(fmt.Sprintf("Findings: %s", m.scriptName))
	counts := browserCountStyle.Render(fmt.Sprintf(
		"%d errors, %d warnings, %d fixed",
		m.result.ErrorCount(), m.result.WarningCount(), m.result.FixedCount()))

	position := ""
	if n := len(m.result.Findings); n > 0 {
		position = browserCountStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, n))
	}

	return title + "\n" + counts + position + "\n"
}

func (m findingsModel) renderFooter() string {
	return browserHelpStyle.Render("j/k navigate  g/G first/last  ctrl+d/u scroll  q quit")
}

func (m *findingsModel) updateViewportContent() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for i, f := range m.result.Findings {
		marker := "  "
		if i == m.cursor {
			marker = browserCursorStyle.Render("> ")
		}

		line := fmt.Sprintf("%s%s %s %s",
			marker,
			severityBadge(f.Severity),
			browserLineStyle.Render(fmt.Sprintf("L%d", f.Line)),
			f.Message)
		b.WriteString(line)
		b.WriteString("\n")

		if i == m.cursor {
			b.WriteString(m.renderDetail(f))
		}
	}

	m.viewport.SetContent(b.String())
}

// renderDetail expands the selected finding below its list row.
func (m findingsModel) renderDetail(f validate.Finding) string {
	var b strings.Builder

	b.WriteString(browserDetailStyle.Render(fmt.Sprintf("    category: %s", f.Category)))
	b.WriteString("\n")

	if f.Class != "" || f.Method != "" {
		b.WriteString(browserDetailStyle.Render(fmt.Sprintf("    call:     %s.%s", f.Class, f.Method)))
		b.WriteString("\n")
	}
	if f.Suggestion != "" {
		b.WriteString(browserSuggestStyle.Render(fmt.Sprintf("    hint:     %s", f.Suggestion)))
		b.WriteString("\n")
	}
	if f.Span != "" && f.Replacement != "" {
		b.WriteString(browserDetailStyle.Render(fmt.Sprintf("    rewrite:  %s -> %s", f.Span, f.Replacement)))
		b.WriteString("\n")
	}

	return b.String()
}

func severityBadge(s validate.Severity) string {
	switch s {
	case validate.SeverityError:
		return errorBadgeStyle.Render("ERROR")
	case validate.SeverityWarning:
		return warnBadgeStyle.Render("WARN ")
	case validate.SeverityFixed:
		return fixedBadgeStyle.Render("FIXED")
	default:
		return s.String()
	}
}

// =============================================================================
// Entry Point
// =============================================================================

// browseFindings runs the interactive findings browser until the user
// quits. The pass result is not modified.
func browseFindings(scriptName string, result *validate.Result) error {
	m := newFindingsModel(scriptName, result)

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running findings browser: %w", err)
	}
	return nil
}

// =============================================================================
// Styles
// =============================================================================

var (
	browserTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	browserCountStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	browserCursorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	browserLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Width(5)

	browserDetailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250"))

	browserSuggestStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	browserHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	errorBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warnBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	fixedBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)
