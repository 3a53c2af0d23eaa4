package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/asmgallery/internal/events"
	runprogress "github.com/aristath/asmgallery/internal/progress"
)

const inFlightWidth = 40

// inFlight is an item a worker is currently resolving.
type inFlight struct {
	label   string
	started time.Time
	retries int
}

// ActivityPaneModel lists in-flight items and keeps a scrollable log of
// retries and failures.
type ActivityPaneModel struct {
	active    map[string]*inFlight // item key -> state
	log       []string
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	updateTag int // for debouncing
}

// NewActivityPaneModel creates a new activity pane.
func NewActivityPaneModel() ActivityPaneModel {
	vp := viewport.New(0, 0)
	vp.SetContent("No retries or failures yet.")
	return ActivityPaneModel{
		active:   make(map[string]*inFlight),
		viewport: vp,
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the activity pane.
func (m ActivityPaneModel) Update(msg tea.Msg) (ActivityPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		// The viewport keymap already scrolls on j/k and the arrows.
		m.viewport, cmd = m.viewport.Update(msg)

	case events.ItemStartedEvent:
		m.active[msg.Key] = &inFlight{label: msg.Label, started: msg.Timestamp}

	case events.ItemRetryEvent:
		label := msg.Key
		if item, ok := m.active[msg.Key]; ok {
			item.retries++
			label = item.label
		}
		m.appendLog(fmt.Sprintf("%s %s %s attempt %d failed, retrying in %s: %v",
			StyleStatusRunning.Render("↻"), label, msg.Endpoint, msg.Attempt,
			runprogress.FormatDuration(msg.Wait), msg.Err))
		return m, m.scheduleRefresh()

	case events.ItemResolvedEvent:
		label := msg.Key
		if item, ok := m.active[msg.Key]; ok {
			label = item.label
			delete(m.active, msg.Key)
		}
		if msg.Reason != "" {
			kind := "permanent"
			if msg.Retriable {
				kind = "retriable"
			}
			m.appendLog(fmt.Sprintf("%s %s (%s): %s", StyleStatusFailed.Render("✗"), label, kind, msg.Reason))
			return m, m.scheduleRefresh()
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.viewport.SetContent(strings.Join(m.log, "\n"))
			m.viewport.GotoBottom()
		}
	}

	return m, cmd
}

func (m *ActivityPaneModel) appendLog(line string) {
	m.log = append(m.log, line)
}

func (m *ActivityPaneModel) scheduleRefresh() tea.Cmd {
	m.updateTag++
	tag := m.updateTag
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{tag: tag}
	})
}

// Active returns the number of items currently in flight.
func (m ActivityPaneModel) Active() int {
	return len(m.active)
}

// Log returns the retry and failure lines recorded so far.
func (m ActivityPaneModel) Log() []string {
	return m.log
}

// View renders the activity pane.
func (m ActivityPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - inFlightWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderInFlight(inFlightWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderInFlight renders the in-flight column, oldest first.
func (m ActivityPaneModel) renderInFlight(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("In flight")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.active) == 0 {
		b.WriteString(StyleStatusCached.Render("Idle"))
	} else {
		items := make([]*inFlight, 0, len(m.active))
		for _, item := range m.active {
			items = append(items, item)
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].started.Equal(items[j].started) {
				return items[i].label < items[j].label
			}
			return items[i].started.Before(items[j].started)
		})

		for _, item := range items {
			name := item.label
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}
			line := fmt.Sprintf("%s %s", StyleStatusRunning.Render("●"), name)
			if item.retries > 0 {
				line += StyleStatusPartial.Render(fmt.Sprintf(" ×%d", item.retries))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *ActivityPaneModel) resizeViewport() {
	viewportWidth := m.width - inFlightWidth - 4
	viewportHeight := m.height - 4 // account for borders

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *ActivityPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *ActivityPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
