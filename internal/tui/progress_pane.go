package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/asmgallery/internal/events"
	runprogress "github.com/aristath/asmgallery/internal/progress"
	"github.com/aristath/asmgallery/internal/scheduler"
)

// ProgressPaneModel shows run counters, a progress bar and the ETA.
type ProgressPaneModel struct {
	bar       progress.Model
	runID     string
	total     int
	cached    int
	running   int
	succeeded int
	partial   int
	failed    int
	last      runprogress.Snapshot
	finished  bool
	elapsed   time.Duration
	cancelled bool
	width     int
	height    int
	focused   bool
}

// NewProgressPaneModel creates a new progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunStartedEvent:
		m.runID = msg.RunID
		m.total = msg.Total
		m.cached = msg.Cached

	case events.ItemStartedEvent:
		m.running++

	case events.ItemResolvedEvent:
		m.running = max(0, m.running-1)
		m.last = msg.Progress
		switch msg.Progress.Status {
		case scheduler.StatusSucceeded:
			m.succeeded++
		case scheduler.StatusPartial:
			m.partial++
		case scheduler.StatusFailed:
			m.failed++
		}

	case events.RunFinishedEvent:
		m.finished = true
		m.cancelled = msg.Cancelled
		m.elapsed = msg.Elapsed
		m.running = 0
	}

	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.runID != "" {
		b.WriteString(fmt.Sprintf("Run:       %s\n", m.runID))
	}
	b.WriteString(fmt.Sprintf("To run:    %d\n", m.total))
	b.WriteString(fmt.Sprintf("Cached:    %s\n", StyleStatusCached.Render(fmt.Sprintf("%d", m.cached))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Succeeded: %s\n", StyleStatusSucceeded.Render(fmt.Sprintf("%d", m.succeeded))))
	b.WriteString(fmt.Sprintf("Partial:   %s\n", StyleStatusPartial.Render(fmt.Sprintf("%d", m.partial))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString("\n")

	done := m.succeeded + m.partial + m.failed
	percent := 0.0
	if m.total > 0 {
		percent = float64(done) / float64(m.total)
	}
	b.WriteString(fmt.Sprintf("%s  %d/%d\n", m.bar.ViewAs(percent), done, m.total))

	switch {
	case m.cancelled:
		b.WriteString(StyleStatusFailed.Render("Cancelled"))
	case m.finished:
		b.WriteString(StyleStatusSucceeded.Render("Finished in " + runprogress.FormatDuration(m.elapsed)))
	case m.last.HasETA:
		b.WriteString(fmt.Sprintf("Elapsed: %s | ETA: %s",
			runprogress.FormatDuration(m.last.Elapsed), runprogress.FormatDuration(m.last.ETA)))
	default:
		b.WriteString("ETA: calculating...")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.bar.Width = min(max(w-14, 10), 60)
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
