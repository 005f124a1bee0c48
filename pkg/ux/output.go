// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the arxval CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// arxval color palette - wiring-harness coppers over graphite
var (
	// Primary palette (brightest to darkest)
	ColorAmberBright  = lipgloss.Color("#FFB454") // Bright amber - highlights
	ColorAmberPrimary = lipgloss.Color("#E8913A") // Primary amber - brand color
	ColorCopper       = lipgloss.Color("#C26E33") // Copper - interactive elements
	ColorCopperDeep   = lipgloss.Color("#9A5420") // Deep copper - borders, accents
	ColorRust         = lipgloss.Color("#7A431C") // Rust - subtle accents

	// Dark palette (backgrounds, muted elements)
	ColorGraphite = lipgloss.Color("#3B4252") // Graphite - muted text, borders
	ColorCharcoal = lipgloss.Color("#2E3440") // Charcoal - deep backgrounds
	ColorDarkest  = lipgloss.Color("#1B1F27") // Darkest - near black

	// Semantic colors (standard conventions)
	ColorSuccess = lipgloss.Color("#8CC265") // Green for valid scripts
	ColorWarning = lipgloss.Color("#F4D03F") // Gold for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorFixed   = lipgloss.Color("#5AB2C9") // Cyan for applied fixes
	ColorMuted   = lipgloss.Color("#3B4252") // Graphite for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Fixed     lipgloss.Style
	Highlight lipgloss.Style
	Code      lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style

	// Status indicators
	StatusOK      lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
	StatusPending lipgloss.Style
}{
	// Text styles
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAmberBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAmberPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorGraphite),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Fixed:     lipgloss.NewStyle().Foreground(ColorFixed),
	Highlight: lipgloss.NewStyle().Foreground(ColorAmberBright).Bold(true),
	Code:      lipgloss.NewStyle().Foreground(ColorCopper),

	// Box styles
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorCopperDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),

	// Status indicators
	StatusOK:      lipgloss.NewStyle().SetString("✓").Foreground(ColorSuccess),
	StatusWarning: lipgloss.NewStyle().SetString("⚠").Foreground(ColorWarning),
	StatusError:   lipgloss.NewStyle().SetString("✗").Foreground(ColorError),
	StatusPending: lipgloss.NewStyle().SetString("○").Foreground(ColorGraphite),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconFixed   Icon = "✎"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconFixed:
		return Styles.Fixed.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Println(text)
	default:
		fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(72)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// FindingLine prints one finding with its line number, severity icon,
// message, and optional suggestion.
func FindingLine(line int, severity string, message, suggestion string) {
	var icon Icon
	var style lipgloss.Style
	switch severity {
	case "error":
		icon, style = IconError, Styles.Error
	case "warning":
		icon, style = IconWarning, Styles.Warning
	case "fixed":
		icon, style = IconFixed, Styles.Fixed
	default:
		icon, style = IconBullet, Styles.Muted
	}

	p := GetPersonality()
	if p.Level == PersonalityMachine {
		if suggestion != "" {
			fmt.Printf("%s\tline %d\t%s\tsuggestion: %s\n", severity, line, message, suggestion)
		} else {
			fmt.Printf("%s\tline %d\t%s\n", severity, line, message)
		}
		return
	}

	lineTag := Styles.Muted.Render(fmt.Sprintf("line %-4d", line))
	fmt.Printf("%s %s %s\n", icon.Render(), lineTag, style.Render(message))
	if suggestion != "" {
		fmt.Printf("  %s %s\n", Styles.Muted.Render("↳"), Styles.Code.Render(suggestion))
	}
}

// Summary prints the finding counts for a completed pass
func Summary(errors, warnings, fixed int) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Printf("SUMMARY: errors=%d warnings=%d fixed=%d\n", errors, warnings, fixed)
	default:
		fmt.Printf("\n%s %s  %s %s  %s %s\n",
			Styles.Error.Render(fmt.Sprintf("%d", errors)), Styles.Muted.Render("errors"),
			Styles.Warning.Render(fmt.Sprintf("%d", warnings)), Styles.Muted.Render("warnings"),
			Styles.Fixed.Render(fmt.Sprintf("%d", fixed)), Styles.Muted.Render("fixed"),
		)
	}
}

// ProgressBar renders a simple progress bar
func ProgressBar(current, total int, width int) string {
	if GetPersonality().Level == PersonalityMachine {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))
	empty := width - filled

	bar := Styles.Success.Render(repeatChar('█', filled)) +
		Styles.Muted.Render(repeatChar('░', empty))

	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}

func repeatChar(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = c
	}
	return string(result)
}
