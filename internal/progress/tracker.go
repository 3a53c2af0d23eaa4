// Package progress counts resolved work items and estimates time remaining.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// Snapshot is the tracker state right after one resolution.
type Snapshot struct {
	Item      scheduler.WorkItem
	Status    scheduler.Status
	Completed int
	Failed    int
	Total     int
	Elapsed   time.Duration
	ETA       time.Duration
	HasETA    bool // False until the first item resolves
	Percent   float64
}

// Tracker counts resolutions. Safe for concurrent use; it never influences
// scheduling.
type Tracker struct {
	total     int64
	completed atomic.Int64
	failed    atomic.Int64
	start     time.Time
	now       func() time.Time
}

// NewTracker starts a tracker for total items.
func NewTracker(total int) *Tracker {
	return newTracker(total, time.Now)
}

func newTracker(total int, now func() time.Time) *Tracker {
	return &Tracker{total: int64(total), start: now(), now: now}
}

// Record counts one resolved item. Every status counts as completed;
// StatusFailed is also counted as failed.
func (t *Tracker) Record(item scheduler.WorkItem, status scheduler.Status) Snapshot {
	if status == scheduler.StatusFailed {
		t.failed.Add(1)
	}
	completed := t.completed.Add(1)

	s := t.snapshot(completed)
	s.Item = item
	s.Status = status
	return s
}

// Snapshot returns the current counters without recording anything.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshot(t.completed.Load())
}

func (t *Tracker) snapshot(completed int64) Snapshot {
	elapsed := t.now().Sub(t.start)
	s := Snapshot{
		Completed: int(completed),
		Failed:    int(t.failed.Load()),
		Total:     int(t.total),
		Elapsed:   elapsed,
	}
	if t.total > 0 {
		s.Percent = float64(completed) / float64(t.total) * 100
	}
	if completed > 0 {
		remaining := t.total - completed
		if remaining < 0 {
			remaining = 0
		}
		s.ETA = time.Duration(float64(elapsed) * float64(remaining) / float64(completed))
		s.HasETA = true
	}
	return s
}

// Line renders the snapshot as a single progress line.
func (s Snapshot) Line() string {
	eta := "calculating..."
	if s.HasETA {
		eta = FormatDuration(s.ETA)
	}
	return fmt.Sprintf("[%s][%s][%s] %s (%d/%d) %5.1f%% | elapsed: %s | ETA: %s",
		s.Item.Compiler.ID, s.Item.Scenario.ID, s.Item.File.Category, s.Item.File.Stem,
		s.Completed, s.Total, s.Percent, FormatDuration(s.Elapsed), eta)
}

// FormatDuration renders d as "Ns", "Mm Ss" or "Hh Mm", truncating.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}
