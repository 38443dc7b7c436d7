package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"chatwidget/pkg/chat"

	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

const (
	inputHeight  = 3
	scrollStep   = 1
	pageStep     = 10
	defaultWidth = 80
)

// stateChangedMsg is delivered after the conversation store changes.
type stateChangedMsg struct{}

// copiedMsg reports the outcome of a clipboard copy.
type copiedMsg struct {
	err error
}

// Model is the Bubble Tea model rendering a chat.Widget.
type Model struct {
	ctx    context.Context
	widget *chat.Widget
	chips  []string

	textarea textarea.Model
	state    chat.State

	width  int
	height int

	// scrollBack counts lines scrolled up from the bottom of the log
	scrollBack int
	chipIndex  int
	notice     string

	clipboard io.Writer
}

// NewModel creates the UI for w. ctx bounds the goroutine that watches the
// conversation store.
func NewModel(ctx context.Context, w *chat.Widget) Model {
	cat := w.Catalog()

	ta := textarea.New()
	ta.Placeholder = cat.Placeholder
	if ta.Placeholder == "" {
		ta.Placeholder = "Type your message..."
	}
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth)
	ta.Focus()

	return Model{
		ctx:       ctx,
		widget:    w,
		chips:     cat.Questions(),
		textarea:  ta,
		state:     w.Store().Snapshot(),
		width:     defaultWidth,
		chipIndex: -1,
		clipboard: os.Stdout,
	}
}

// Init starts watching the conversation store.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) waitForChange() tea.Cmd {
	ctx := m.ctx
	changes := m.widget.Store().Changes()
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			return stateChangedMsg{}
		}
	}
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(m.contentWidth())
		return m, nil

	case stateChangedMsg:
		m.state = m.widget.Store().Snapshot()
		return m, m.waitForChange()

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed"
			slog.Warn("copy_answer_failed", "error", msg.err)
		} else {
			m.notice = "Copied last answer"
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	key := msg.String()

	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.chipFocused() {
			m.chipIndex = -1
			m.setInput("")
			return m, nil
		}
		return m, tea.Quit
	case "enter":
		return m.submit(m.textarea.Value())
	case "ctrl+y":
		return m, m.copyLastAnswer()
	case "tab":
		if m.chipsVisible() && (m.chipFocused() || m.textarea.Value() == "") {
			m.chipIndex = (m.chipIndex + 1) % len(m.chips)
			m.setInput(m.chips[m.chipIndex])
		}
		return m, nil
	case "up":
		m.scrollBack += scrollStep
		return m, nil
	case "down":
		m.scrollBack = max(0, m.scrollBack-scrollStep)
		return m, nil
	case "pgup":
		m.scrollBack += pageStep
		return m, nil
	case "pgdown":
		m.scrollBack = max(0, m.scrollBack-pageStep)
		return m, nil
	}

	if m.chipFocused() {
		if i, ok := chipKey(key, len(m.chips)); ok {
			return m.submit(m.chips[i])
		}
	}

	if m.state.Busy {
		return m, nil
	}

	// Typing edits the selected suggestion as ordinary text.
	m.chipIndex = -1
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.widget.Store().SetInput(m.textarea.Value())
	return m, cmd
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(text) == "" || m.state.Busy {
		return m, nil
	}
	if !m.widget.Submit(text) {
		return m, nil
	}
	m.textarea.Reset()
	m.chipIndex = -1
	m.scrollBack = 0
	m.state = m.widget.Store().Snapshot()
	return m, nil
}

func (m *Model) setInput(text string) {
	m.textarea.SetValue(text)
	m.widget.Store().SetInput(text)
}

func (m Model) copyLastAnswer() tea.Cmd {
	answer, ok := m.state.LastAnswer()
	if !ok {
		return nil
	}
	out := m.clipboard
	text := answer.Content
	return func() tea.Msg {
		_, err := fmt.Fprint(out, osc52.New(text))
		return copiedMsg{err: err}
	}
}

// chipsVisible reports whether suggestion chips are offered: only before the
// first exchange, when the log holds at most the greeting.
func (m Model) chipsVisible() bool {
	return len(m.chips) > 0 && len(m.state.Messages) <= 1 && !m.state.Busy
}

// chipFocused reports whether Tab has put a suggestion in the input. Only then
// do digit keys pick a chip instead of typing.
func (m Model) chipFocused() bool {
	return m.chipIndex >= 0 && m.chipsVisible()
}

// chipKey maps "1".."9" to a chip index.
func chipKey(key string, n int) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	i := int(key[0] - '1')
	return i, i < n
}

// View renders the UI.
func (m Model) View() tea.View {
	v := tea.NewView(m.Render())
	v.AltScreen = true
	return v
}

func (m Model) contentWidth() int {
	if m.width < 10 {
		return 10
	}
	return m.width - 2
}
