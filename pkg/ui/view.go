package ui

import (
	"fmt"
	"strings"

	"chatwidget/pkg/chat"
	"chatwidget/pkg/ui/components/utils"
	"chatwidget/pkg/ui/styles"

	"charm.land/lipgloss/v2"
)

const (
	headerTitle    = "Kunal's AI Assistant"
	headerSubtitle = "Ask about expertise, projects, or anything fun"
	footerLabel    = "Enter Send | Tab Suggest, then 1-4 Ask | Ctrl+Y Copy | Up/Down Scroll | Esc Quit"
	emptyAnswer    = "…"
	typingLabel    = "typing…"
)

// Render builds the full screen as a string.
func (m Model) Render() string {
	width := m.contentWidth()

	header := m.renderHeader(width)
	footer := m.renderFooter(width)

	m.textarea.SetWidth(width)
	input := m.textarea.View()

	var chips string
	if m.chipsVisible() {
		chips = renderChips(m.chips, m.chipIndex, width)
	}

	log := renderMessages(m.state.Messages, width)
	if m.state.Typing {
		log = append(log, styles.TypingStyle.Render(typingLabel))
	}

	logHeight := len(log)
	if m.height > 0 {
		fixed := lipgloss.Height(header) + lipgloss.Height(input) + lipgloss.Height(footer) + 1
		if chips != "" {
			fixed += lipgloss.Height(chips)
		}
		logHeight = max(1, m.height-fixed)
	}
	visible := visibleWindow(log, logHeight, m.scrollBack)
	for len(visible) < logHeight {
		visible = append(visible, "")
	}

	sections := []string{header, strings.Join(visible, "\n")}
	if chips != "" {
		sections = append(sections, chips)
	}
	sections = append(sections, styles.SeparatorStyle.Render(strings.Repeat("─", width)), input, footer)
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader(width int) string {
	badge := styles.LiveBadgeStyle.Render("LIVE")
	if m.widget.Offline() {
		badge = styles.OfflineBadgeStyle.Render("OFFLINE")
	}
	title := styles.TitleStyle.Render(headerTitle)
	gap := width - lipgloss.Width(title) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	top := title + strings.Repeat(" ", gap) + badge
	sub := styles.SubtitleStyle.Render(utils.TruncateToWidth(headerSubtitle, width))
	return top + "\n" + sub + "\n" + styles.SeparatorStyle.Render(strings.Repeat("─", width))
}

func (m Model) renderFooter(width int) string {
	if m.notice != "" {
		return styles.NoticeStyle.Render(utils.TruncateToWidth(m.notice, width))
	}
	return styles.FooterStyle.Render(utils.TruncateToWidth(footerLabel, width))
}

// renderMessages lays out the conversation: assistant messages on the left,
// user messages right-aligned, one blank line between messages.
func renderMessages(msgs []chat.Message, width int) []string {
	bodyWidth := width * 4 / 5
	if bodyWidth < 10 {
		bodyWidth = width
	}

	var lines []string
	for i, msg := range msgs {
		if i > 0 {
			lines = append(lines, "")
		}

		content := msg.Content
		if content == "" && msg.Role == chat.RoleAssistant {
			content = emptyAnswer
		}
		wrapped := utils.Wrap(content, bodyWidth)

		switch msg.Role {
		case chat.RoleUser:
			lines = append(lines, utils.AlignRight(styles.UserLabelStyle.Render("You"), width))
			for _, l := range wrapped {
				lines = append(lines, utils.AlignRight(styles.UserTextStyle.Render(l), width))
			}
		default:
			lines = append(lines, styles.AssistantLabelStyle.Render("Assistant"))
			textStyle := styles.AssistantTextStyle
			if msg.Error {
				textStyle = styles.ErrorStyle
			}
			for _, l := range wrapped {
				lines = append(lines, textStyle.Render(l))
			}
		}
	}
	return lines
}

func renderChips(chips []string, selected, width int) string {
	rendered := make([]string, 0, len(chips))
	for i, chip := range chips {
		label := fmt.Sprintf("%s %s", styles.ChipKeyStyle.Render(fmt.Sprintf("%d", i+1)), utils.TruncateToWidth(chip, width-8))
		style := styles.ChipStyle
		if i == selected {
			style = styles.SelectedChipStyle
		}
		rendered = append(rendered, style.Render(label))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

// visibleWindow returns the height lines ending scrollBack lines above the
// bottom of lines.
func visibleWindow(lines []string, height, scrollBack int) []string {
	if height <= 0 {
		return nil
	}
	end := len(lines) - scrollBack
	if end > len(lines) {
		end = len(lines)
	}
	if end < min(height, len(lines)) {
		end = min(height, len(lines))
	}
	start := end - height
	if start < 0 {
		start = 0
	}
	out := make([]string, end-start)
	copy(out, lines[start:end])
	return out
}
