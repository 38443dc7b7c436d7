// Package styles provides the shared palette and styles for the chat widget UI.
package styles

import (
	"charm.land/lipgloss/v2"
)

// Color palette - ANSI 256 colors used throughout the application
var (
	// Primary accent color (purple)
	ColorAccent = lipgloss.Color("141")

	// Text colors
	ColorText       = lipgloss.Color("252") // Primary text
	ColorTextMuted  = lipgloss.Color("245") // Secondary/muted text
	ColorTextBright = lipgloss.Color("15")  // Bright/highlighted text

	// Semantic colors
	ColorError   = lipgloss.Color("196")
	ColorWarning = lipgloss.Color("214")
	ColorSuccess = lipgloss.Color("42")

	// Border color
	ColorBorderMuted = lipgloss.Color("62")
)

// Header styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	// LiveBadgeStyle marks a widget backed by the chat service
	LiveBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorSuccess).
			Padding(0, 1).
			Bold(true)

	// OfflineBadgeStyle marks a widget answering from its catalog only
	OfflineBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#D0D0D0")).
				Background(lipgloss.Color("#3C3C3C")).
				Padding(0, 1)
)

// Message styles
var (
	UserLabelStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	AssistantLabelStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	UserTextStyle = lipgloss.NewStyle().
			Foreground(ColorTextBright)

	AssistantTextStyle = lipgloss.NewStyle().
				Foreground(ColorText)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	TypingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)
)

// Input styles
var (
	ChipStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderMuted).
			Padding(0, 1)

	SelectedChipStyle = lipgloss.NewStyle().
				Foreground(ColorTextBright).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorAccent).
				Padding(0, 1).
				Bold(true)

	ChipKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true)

	// FooterStyle for footer/help text
	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(ColorBorderMuted)
)
