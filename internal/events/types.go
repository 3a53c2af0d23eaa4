// Package events carries run and item notifications from the runner to
// observers such as the progress printer and the terminal UI.
package events

import (
	"time"

	"github.com/aristath/asmgallery/internal/progress"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	ItemKey() string // Empty for run-level events
}

// Topic constants
const (
	TopicItem Topic = "item"
	TopicRun  Topic = "run"
)

// Event type constants
const (
	EventTypeItemStarted  = "item.started"
	EventTypeItemRetry    = "item.retry"
	EventTypeItemResolved = "item.resolved"
	EventTypeRunStarted   = "run.started"
	EventTypeRunFinished  = "run.finished"
)

// ItemStartedEvent is published when a worker picks up an item.
type ItemStartedEvent struct {
	Key       string
	Label     string // "[compiler][scenario][category] stem"
	Timestamp time.Time
}

func (e ItemStartedEvent) EventType() string { return EventTypeItemStarted }
func (e ItemStartedEvent) ItemKey() string   { return e.Key }

// ItemRetryEvent is published before a transient failure is retried.
type ItemRetryEvent struct {
	Key       string
	Endpoint  string // "compile" or "explain"
	Attempt   int
	Wait      time.Duration
	Err       error
	Timestamp time.Time
}

func (e ItemRetryEvent) EventType() string { return EventTypeItemRetry }
func (e ItemRetryEvent) ItemKey() string   { return e.Key }

// ItemResolvedEvent is published once per item with the tracker state.
type ItemResolvedEvent struct {
	Key       string
	Reason    string // Failure reason, empty on success
	Retriable bool
	Duration  time.Duration
	Progress  progress.Snapshot
	Timestamp time.Time
}

func (e ItemResolvedEvent) EventType() string { return EventTypeItemResolved }
func (e ItemResolvedEvent) ItemKey() string   { return e.Key }

// RunStartedEvent is published after the cache filter, before dispatch.
type RunStartedEvent struct {
	RunID     string
	Total     int // Items to execute
	Cached    int // Items satisfied by earlier runs
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) ItemKey() string   { return "" }

// RunFinishedEvent is published when every dispatched item has resolved
// or the run was cancelled.
type RunFinishedEvent struct {
	RunID     string
	Succeeded int
	Partial   int
	Failed    int
	Cancelled bool
	Elapsed   time.Duration
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) ItemKey() string   { return "" }
