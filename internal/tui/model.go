// Package tui renders a live terminal view of a gallery run.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/asmgallery/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneProgress PaneID = iota
	PaneActivity
	paneCount
)

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	progressPane ProgressPaneModel
	activityPane ActivityPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	cancel       context.CancelFunc
	width        int
	height       int
	quitting     bool
	finished     bool
}

// New creates a new TUI model subscribed to every topic on the bus.
// cancel stops the run when the user quits early; it may be nil.
func New(eventBus *events.EventBus, cancel context.CancelFunc) Model {
	m := Model{
		progressPane: NewProgressPaneModel(),
		activityPane: NewActivityPaneModel(),
		focusedPane:  PaneActivity,
		eventSub:     eventBus.SubscribeAll(1024),
		cancel:       cancel,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// busClosedMsg ends the program if the run-finished event was dropped.
type busClosedMsg struct{}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneActivity
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneActivity {
				var cmd tea.Cmd
				m.activityPane, cmd = m.activityPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case tickMsg:
		var cmd tea.Cmd
		m.activityPane, cmd = m.activityPane.Update(msg)
		cmds = append(cmds, cmd)

	case events.RunStartedEvent:
		m.progressPane, _ = m.progressPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.ItemStartedEvent, events.ItemRetryEvent, events.ItemResolvedEvent:
		// Both panes track items
		var cmd tea.Cmd
		m.progressPane, _ = m.progressPane.Update(msg)
		m.activityPane, cmd = m.activityPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case busClosedMsg:
		return m, tea.Quit

	case events.RunFinishedEvent:
		m.progressPane, _ = m.progressPane.Update(msg)
		m.finished = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Stopping run...\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	mainContent := lipgloss.JoinVertical(lipgloss.Left, m.progressPane.View(), m.activityPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// Finished reports whether the run-finished event was seen.
func (m Model) Finished() bool {
	return m.finished
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 1 // reserve 1 line for help bar
	progressHeight := min(16, availableHeight/2)

	m.progressPane.SetSize(m.width, progressHeight)
	m.activityPane.SetSize(m.width, availableHeight-progressHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
	m.activityPane.SetFocused(m.focusedPane == PaneActivity)
}
