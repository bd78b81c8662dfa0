// Package importing defines the event vocabulary of the import flow.
package importing

import (
	appevents "github.com/arciva/importer/internal/events"
	"github.com/arciva/importer/pkg/pending"
	"github.com/arciva/importer/pkg/upload"
)

// --- App Events (from TUI to App) ---

// PauseTaskEvent suspends one task.
type PauseTaskEvent struct {
	appevents.Event
	TaskID string
}

// ResumeTaskEvent requeues one paused task.
type ResumeTaskEvent struct {
	appevents.Event
	TaskID string
}

// CancelTaskEvent abandons one task for good.
type CancelTaskEvent struct {
	appevents.Event
	TaskID string
}

// RetryTaskEvent requeues one failed or blocked task.
type RetryTaskEvent struct {
	appevents.Event
	TaskID string
}

// PauseAllEvent suspends every task that is not already settled.
type PauseAllEvent struct{ appevents.Event }

// ResumeAllEvent requeues every paused task.
type ResumeAllEvent struct{ appevents.Event }

// CancelAllEvent abandons the whole batch.
type CancelAllEvent struct{ appevents.Event }

var (
	_ appevents.AppEvent = (*PauseTaskEvent)(nil)
	_ appevents.AppEvent = (*ResumeTaskEvent)(nil)
	_ appevents.AppEvent = (*CancelTaskEvent)(nil)
	_ appevents.AppEvent = (*RetryTaskEvent)(nil)
	_ appevents.AppEvent = (*PauseAllEvent)(nil)
	_ appevents.AppEvent = (*ResumeAllEvent)(nil)
	_ appevents.AppEvent = (*CancelAllEvent)(nil)
)

// --- UI Messages (from App to TUI) ---

// BatchStartedMsg announces the submitted batch, including entries that were
// skipped at selection time.
type BatchStartedMsg struct {
	Tasks    []upload.Task
	Warnings []pending.Warning
}

// TaskUpdatedMsg reports one task transition or progress change.
type TaskUpdatedMsg struct {
	Old     upload.Task
	Current upload.Task
}

// SummaryMsg carries the recomputed aggregate after a batch mutation.
type SummaryMsg struct {
	Summary upload.Summary
}

// BatchSettledMsg signals that nothing will change without a user command.
type BatchSettledMsg struct {
	Summary upload.Summary
}
