// Package tui provides the terminal front ends for audiobrief: a full-screen
// Bubble Tea app and a line-oriented console presenter, both built on Charm
// libraries.
package tui

import (
	"fmt"
	"strings"

	"audiobrief/session"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - Catppuccin Mocha inspired
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"} // Violet
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"}

	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}

	ColorBrand = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	FocusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeSuccessStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorSuccess).
				Foreground(lipgloss.Color("#FFFFFF"))

	BadgeWarningStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorWarning).
				Foreground(lipgloss.Color("#000000"))

	BadgeErrorStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorError).
			Foreground(lipgloss.Color("#FFFFFF"))
)

var BrandASCII = `
    _   _   _ ___ ___ ___  ___ ___ ___ ___
   /_\ | | | |   \_ _/ _ \| _ ) _ \_ _| __|
  / _ \| |_| | |) | | (_) | _ \   /| || _|
 /_/ \_\\___/|___/___\___/|___/_|_\___|_|
`

// GetHeader returns the styled application header
func GetHeader() string {
	return lipgloss.NewStyle().
		Foreground(ColorBrand).
		Bold(true).
		Render(BrandASCII)
}

// SenderBadge labels a chat message by its author
func SenderBadge(sender session.Sender) string {
	if sender == session.SenderUser {
		return BadgeStyle.Render("You")
	}
	return BadgeSuccessStyle.Render("AI")
}

// KindBadge labels an error by its kind
func KindBadge(kind session.Kind) string {
	switch kind {
	case session.Validation:
		return BadgeWarningStyle.Render("Check input")
	case session.Timeout:
		return BadgeWarningStyle.Render("Timeout")
	case session.Network:
		return BadgeErrorStyle.Render("Network")
	case session.JobAbandoned:
		return BadgeErrorStyle.Render("Job lost")
	default:
		return BadgeErrorStyle.Render("Error")
	}
}

// ProgressBar renders a block progress bar for percent in [0, 100]
func ProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	bar := lipgloss.NewStyle().Foreground(ColorPrimary).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("░", width-filled))

	percentText := lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(fmt.Sprintf(" %3d%%", int(percent)))

	return bar + percentText
}

// Card renders a titled box
func Card(title, content string, width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	cardStyle := BoxStyle.Width(width)

	return cardStyle.Render(titleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// KeyHelp renders keyboard shortcut help from key/description pairs
func KeyHelp(pairs ...string) string {
	keyStyle := lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+" "+descStyle.Render(pairs[i+1]))
	}

	sep := lipgloss.NewStyle().Foreground(ColorBorder).Render("  |  ")
	return strings.Join(parts, sep)
}
